package parser

import (
	"strconv"
	"strings"

	"github.com/arlonet/httpd/status"
)

// DetermineFraming decides how req's body (if any) is delimited, filling
// in req.Content.TotalSize/Chunked, per RFC 9112 §6 and the teacher's
// fixLength/chunked/shouldClose logic in utils_transfer.go, generalized
// to the request-only case (this core never acts as an HTTP client, so
// there is no response-framing half to port).
//
// It rejects a request that carries both Transfer-Encoding: chunked and
// Content-Length, per RFC 9112 §6.3 ("a server MUST reject such a
// message"), returning status.ErrContentLengthAndChunked.
func DetermineFraming(req *Request) status.Code {
	te, hasTE := req.Headers.Get("Transfer-Encoding")
	isChunked := hasTE && tokenEqualFold(trimOWS(lastCommaElement(te)), "chunked")

	_, hasCL := req.Headers.Get("Content-Length")

	if isChunked && hasCL {
		return status.ErrContentLengthAndChunked
	}

	if isChunked {
		req.Content.Chunked = true
		req.Content.TotalSize = SizeUnknown
		return status.OK
	}

	if hasCL {
		values := req.Headers.Values("Content-Length")
		first := strings.TrimSpace(values[0])
		for _, v := range values[1:] {
			if strings.TrimSpace(v) != first {
				return status.ErrMalformedHeader
			}
		}
		n, err := strconv.ParseInt(first, 10, 64)
		if err != nil || n < 0 {
			return status.ErrMalformedHeader
		}
		req.Content.TotalSize = n
		return status.OK
	}

	if req.Method.usuallyLacksBody() {
		req.Content.TotalSize = 0
		return status.OK
	}

	// No Content-Length and no chunked encoding: per RFC 9112 §6.3, a
	// request body is only framed by one of those two mechanisms, so the
	// absence of both means no body, regardless of method.
	req.Content.TotalSize = 0
	return status.OK
}

// ShouldClose reports whether the connection must close after this
// request/response cycle, mirroring the teacher's shouldClose: versions
// below HTTP/1.0 always close; HTTP/1.0 closes unless Connection:
// keep-alive is present (and not overridden by close); HTTP/1.1 closes
// only if Connection: close is present.
func ShouldClose(major, minor int, headers *FieldList) bool {
	if major < 1 {
		return true
	}
	hasClose := headers.ContainsToken("Connection", "close")
	if major == 1 && minor == 0 {
		return hasClose || !headers.ContainsToken("Connection", "keep-alive")
	}
	return hasClose
}

// lastCommaElement returns the last comma-separated element of a header
// value, which is where RFC 9112 requires "chunked" to appear if present
// (it must be the final encoding in the Transfer-Encoding list).
func lastCommaElement(v string) string {
	if i := strings.LastIndexByte(v, ','); i >= 0 {
		return v[i+1:]
	}
	return v
}
