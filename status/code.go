// Package status defines the process-wide status code enum used to report
// success and failure across every component of the daemon, per the error
// handling design: a single typed enum instead of ad hoc sentinel errors.
package status

import "sync"

// Code is a numeric status reported by library entry points. The zero value
// OK means success; any other value is an error and satisfies the error
// interface so call sites can return a Code directly.
type Code uint16

// Category partitions the Code space so callers can react to a class of
// failure (e.g. "retry on Socket category") without enumerating every code.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryResource
	CategoryProtocol
	CategorySocket
	CategoryPolicy
	CategoryConfiguration
	CategoryInfoQuery
)

// Well-known codes. Numbering groups by category in blocks of 100 so new
// codes can be inserted within a block without renumbering the others.
const (
	OK Code = 0

	// Resource-allocation failures.
	ErrPoolExhausted        Code = 100
	ErrLargeBufferExhausted Code = 101
	ErrResponseHeaderAlloc  Code = 102
	ErrConnectionAlloc      Code = 103
	ErrThreadLaunch         Code = 104

	// Protocol failures.
	ErrMalformedRequestLine     Code = 200
	ErrMalformedHeader          Code = 201
	ErrHeaderTooLarge           Code = 202
	ErrRequestTargetTooLarge    Code = 203
	ErrInvalidChunkedEncoding   Code = 204
	ErrBadContentType           Code = 205
	ErrMissingMultipartBoundary Code = 206
	ErrContentLengthAndChunked  Code = 207
	ErrUnsupportedMethod        Code = 208

	// Socket failures.
	ErrSocketNoMem            Code = 300
	ErrSocketRemoteDisconnect Code = 301
	ErrSocketConnReset        Code = 302
	ErrSocketConnBroken       Code = 303
	ErrSocketNotConnected     Code = 304
	ErrSocketTLS              Code = 305
	ErrSocketPipe             Code = 306
	ErrSocketOther            Code = 307

	// Policy failures.
	ErrConnectionLimitReached Code = 400
	ErrPerIPLimitReached      Code = 401
	ErrNonBlockingRequired    Code = 402

	// Configuration failures.
	ErrBadSockAddrSize Code = 500
	ErrFDOutOfRange    Code = 501
	ErrInvalidArgument Code = 502

	// Info-query failures.
	ErrTooEarly          Code = 600
	ErrTooLate           Code = 601
	ErrBuffTooSmall      Code = 602
	ErrTypeUnknown       Code = 603
	ErrFeatureDisabled   Code = 604
	ErrTypeNotApplicable Code = 605
)

var (
	mu       sync.RWMutex
	messages = map[Code]string{
		OK:                          "ok",
		ErrPoolExhausted:            "memory pool exhausted",
		ErrLargeBufferExhausted:     "large shared buffer exhausted",
		ErrResponseHeaderAlloc:      "could not allocate response header memory",
		ErrConnectionAlloc:         "could not allocate connection",
		ErrThreadLaunch:             "could not launch worker thread",
		ErrMalformedRequestLine:     "malformed request line",
		ErrMalformedHeader:          "malformed header field",
		ErrHeaderTooLarge:           "request header fields too large",
		ErrRequestTargetTooLarge:    "request-target too large",
		ErrInvalidChunkedEncoding:   "invalid chunked transfer encoding",
		ErrBadContentType:           "unparseable content-type",
		ErrMissingMultipartBoundary: "missing multipart boundary",
		ErrContentLengthAndChunked:  "content-length present with chunked transfer-encoding",
		ErrUnsupportedMethod:        "unsupported or unrecognized method",
		ErrSocketNoMem:              "socket operation failed: out of memory",
		ErrSocketRemoteDisconnect:   "remote end disconnected",
		ErrSocketConnReset:          "connection reset by peer",
		ErrSocketConnBroken:         "connection broken",
		ErrSocketNotConnected:       "socket not connected",
		ErrSocketTLS:                "tls error",
		ErrSocketPipe:               "broken pipe",
		ErrSocketOther:              "socket error",
		ErrConnectionLimitReached:   "total connection limit reached",
		ErrPerIPLimitReached:        "per-ip connection limit reached",
		ErrNonBlockingRequired:      "operation requires a non-blocking socket",
		ErrBadSockAddrSize:          "bad sockaddr size",
		ErrFDOutOfRange:             "file descriptor out of range",
		ErrInvalidArgument:          "invalid argument",
		ErrTooEarly:                 "information not yet available at this stage",
		ErrTooLate:                  "information no longer available at this stage",
		ErrBuffTooSmall:             "supplied buffer too small",
		ErrTypeUnknown:              "unknown info type",
		ErrFeatureDisabled:          "feature disabled",
		ErrTypeNotApplicable:        "info type not applicable to this request",
	}
	categories = map[Code]Category{}
)

func init() {
	for c := range messages {
		categories[c] = classify(c)
	}
}

func classify(c Code) Category {
	switch {
	case c == OK:
		return CategoryNone
	case c >= 100 && c < 200:
		return CategoryResource
	case c >= 200 && c < 300:
		return CategoryProtocol
	case c >= 300 && c < 400:
		return CategorySocket
	case c >= 400 && c < 500:
		return CategoryPolicy
	case c >= 500 && c < 600:
		return CategoryConfiguration
	case c >= 600 && c < 700:
		return CategoryInfoQuery
	default:
		return CategoryNone
	}
}

// RegisterMessage overrides or adds a message for a code, letting an
// embedder customize wording without forking this package.
func RegisterMessage(c Code, msg string) {
	mu.Lock()
	defer mu.Unlock()
	messages[c] = msg
	categories[c] = classify(c)
}

// Error implements the error interface so a Code can be returned directly
// from functions with a plain `error` signature.
func (c Code) Error() string {
	mu.RLock()
	defer mu.RUnlock()
	if msg, ok := messages[c]; ok {
		return msg
	}
	return "status: unknown code"
}

// Category reports which class of failure c belongs to.
func (c Code) Category() Category {
	mu.RLock()
	defer mu.RUnlock()
	if cat, ok := categories[c]; ok {
		return cat
	}
	return CategoryNone
}

// Ok reports whether c represents success.
func (c Code) Ok() bool { return c == OK }

func (cat Category) String() string {
	switch cat {
	case CategoryResource:
		return "resource"
	case CategoryProtocol:
		return "protocol"
	case CategorySocket:
		return "socket"
	case CategoryPolicy:
		return "policy"
	case CategoryConfiguration:
		return "configuration"
	case CategoryInfoQuery:
		return "info-query"
	default:
		return "none"
	}
}
