// Package response synthesizes the reply half of one request/response
// cycle: status line, header block, connection-close and framing
// decisions, and the four body-producer variants described in §4.K.
package response

import (
	"os"
	"sync/atomic"

	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/status"
)

// SizeUnknown mirrors parser.SizeUnknown for a response whose total body
// length cannot be determined in advance (callback bodies in particular).
const SizeUnknown = parser.SizeUnknown

// BodyKind selects which of the four body producer variants a Response
// carries.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyBuffer
	BodyFD
	BodyIOV
	BodyCallback
)

// BufferOwnership governs what happens to a buffer-body's backing array
// once the response has been fully sent, per §3's Response ownership
// rule.
type BufferOwnership int

const (
	// OwnershipPersistent means the caller guarantees the buffer outlives
	// the response; the engine never copies or frees it.
	OwnershipPersistent BufferOwnership = iota
	// OwnershipMustCopy means the engine copies the buffer immediately
	// because the caller cannot guarantee its lifetime.
	OwnershipMustCopy
	// OwnershipMustFree means the engine owns the buffer and is
	// responsible for returning it to its pool once sent.
	OwnershipMustFree
)

// CallbackBody is invoked by the response engine to produce the next
// chunk of a callback-driven body. pos is the number of bytes already
// produced. Returning done=true with n==0 signals a clean EOF; returning
// an error (via status.Code) aborts the response with an application
// error close, matching §4.K's "sentinel triggers APP_ERROR close".
type CallbackBody func(cls any, pos int64, buf []byte) (n int, done bool, code status.Code)

// Flags are the per-response settings flags named in §3.
type Flags uint8

const (
	FlagReusable Flags = 1 << iota
	FlagHeadOnly
	FlagChunkedEnc
	FlagConnClose
	FlagHTTP10Compatible
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Response is a status code, header list, and one body producer, shared
// (if FlagReusable) across every connection currently replying with it.
// A non-reusable response is for a single use; Retain/Release keep its
// use count but do not reject a second use.
type Response struct {
	Status  int
	Headers parser.FieldList
	Flags   Flags

	bodyKind BodyKind

	buf           []byte
	bufOwnership  BufferOwnership

	fd       *os.File
	fdOffset int64
	fdLength int64

	iov [][]byte

	callback    CallbackBody
	callbackCls any

	ContentLength int64 // SizeUnknown if not known up front

	frozen   bool
	useCount int32
}

// New returns an empty, non-reusable Response with the given status code
// and no body.
func New(statusCode int) *Response {
	return &Response{Status: statusCode, ContentLength: SizeUnknown, bodyKind: BodyNone}
}

// SetBuffer installs buf as a whole-buffer body with the given ownership
// rule. ContentLength is set to len(buf).
func (r *Response) SetBuffer(buf []byte, ownership BufferOwnership) status.Code {
	if r.frozen {
		return status.ErrTooLate
	}
	if ownership == OwnershipMustCopy {
		owned := make([]byte, len(buf))
		copy(owned, buf)
		buf = owned
	}
	r.bodyKind = BodyBuffer
	r.buf = buf
	r.bufOwnership = ownership
	r.ContentLength = int64(len(buf))
	return status.OK
}

// SetFD installs a regular file, read from offset for length bytes, as
// the body. The response engine uses pread/seek+read and treats a short
// read before length bytes as a hard I/O error (§4.K).
func (r *Response) SetFD(fd *os.File, offset, length int64) status.Code {
	if r.frozen {
		return status.ErrTooLate
	}
	r.bodyKind = BodyFD
	r.fd = fd
	r.fdOffset = offset
	r.fdLength = length
	r.ContentLength = length
	return status.OK
}

// SetIOV installs a pre-built iovec array as the body; total length is
// the sum of each element's length.
func (r *Response) SetIOV(iov [][]byte) status.Code {
	if r.frozen {
		return status.ErrTooLate
	}
	var total int64
	for _, v := range iov {
		total += int64(len(v))
	}
	r.bodyKind = BodyIOV
	r.iov = iov
	r.ContentLength = total
	return status.OK
}

// SetCallback installs a callback-driven body. length may be
// SizeUnknown, in which case the engine frames the body as chunked
// (or, on an HTTP/1.0 client, by closing the connection at EOF).
func (r *Response) SetCallback(cb CallbackBody, cls any, length int64) status.Code {
	if r.frozen {
		return status.ErrTooLate
	}
	r.bodyKind = BodyCallback
	r.callback = cb
	r.callbackCls = cls
	r.ContentLength = length
	return status.OK
}

// BodyKind reports which producer variant r carries.
func (r *Response) BodyKind() BodyKind { return r.bodyKind }

// Freeze marks r immutable and shareable; after Freeze, every Set* method
// returns status.ErrTooLate. Only a FlagReusable response should be
// frozen and handed to more than one connection.
func (r *Response) Freeze() { r.frozen = true }

// Retain increments r's use count; an Action calls this when it records
// r as its response.
func (r *Response) Retain() { atomic.AddInt32(&r.useCount, 1) }

// Release decrements r's use count, returning the count after the
// decrement. A non-reusable response reaching zero is done and may be
// discarded by its creator.
func (r *Response) Release() int32 { return atomic.AddInt32(&r.useCount, -1) }

// UseCount reports the current use count.
func (r *Response) UseCount() int32 { return atomic.LoadInt32(&r.useCount) }
