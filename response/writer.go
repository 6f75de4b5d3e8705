package response

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/status"
)

// Writer drives one Response's bytes onto a connection's buffered write
// side: status line, header block, then the body producer selected by
// r.BodyKind(), framed per ComputeFraming. One Writer is used for exactly
// one reply.
type Writer struct {
	w      *bufio.Writer
	r      *Response
	f      Framing
	pos    int64
	closed bool
}

// NewWriter returns a Writer for r replying to req, writing through w.
func NewWriter(w *bufio.Writer, r *Response, req *parser.Request) *Writer {
	return &Writer{w: w, r: r, f: ComputeFraming(r, req)}
}

// WriteHeader synthesizes the status line and header block, mirroring
// the teacher's chunkWriter.writeHeader: auto Date/Content-Length/
// Transfer-Encoding/Connection are added unless the application already
// set a conflicting header explicitly.
func (rw *Writer) WriteHeader(major, minor int) error {
	if _, err := fmt.Fprintf(rw.w, "HTTP/%d.%d %03d %s\r\n", major, minor, rw.r.Status, reasonOrUnknown(rw.r.Status)); err != nil {
		return err
	}

	suppressed := map[string]bool{}
	for _, name := range suppressedHeaders(rw.r.Status) {
		suppressed[name] = true
	}

	rw.r.Headers.Each(func(name, value string) {
		if suppressed[name] {
			return
		}
		fmt.Fprintf(rw.w, "%s: %s\r\n", name, value)
	})

	if !rw.r.Headers.Has("Date") {
		fmt.Fprintf(rw.w, "Date: %s\r\n", time.Now().UTC().Format(http1Date))
	}
	switch {
	case rw.f.Chunked && !rw.r.Headers.Has("Transfer-Encoding"):
		rw.w.WriteString("Transfer-Encoding: chunked\r\n")
	case rw.f.Known && !rw.f.Chunked && !rw.r.Headers.Has("Content-Length") && bodyAllowedForStatus(rw.r.Status):
		fmt.Fprintf(rw.w, "Content-Length: %d\r\n", rw.f.ContentLength)
	}
	if rw.f.Close && !rw.r.Headers.Has("Connection") {
		rw.w.WriteString("Connection: close\r\n")
	}

	_, err := rw.w.WriteString("\r\n")
	return err
}

const http1Date = "Mon, 02 Jan 2006 15:04:05 GMT"

func reasonOrUnknown(code int) string {
	if s := StatusText(code); s != "" {
		return s
	}
	return "Status"
}

// WriteBody drains the response's body producer onto rw's writer,
// respecting the framing decision (chunk-encoding the output when
// f.Chunked). It returns the number of bytes of raw body content written
// (not counting chunk framing overhead).
func (rw *Writer) WriteBody() (int64, status.Code) {
	if rw.f.SuppressBody {
		return 0, status.OK
	}
	switch rw.r.bodyKind {
	case BodyNone:
		return 0, status.OK
	case BodyBuffer:
		return rw.writeBuffer(rw.r.buf)
	case BodyFD:
		return rw.writeFD()
	case BodyIOV:
		return rw.writeIOV()
	case BodyCallback:
		return rw.writeCallback()
	default:
		return 0, status.OK
	}
}

func (rw *Writer) writeBuffer(p []byte) (int64, status.Code) {
	n, err := rw.writeChunk(p)
	if err != nil {
		return int64(n), status.ErrSocketOther
	}
	return int64(n), status.OK
}

func (rw *Writer) writeFD() (int64, status.Code) {
	buf := make([]byte, 32*1024)
	var written int64
	remaining := rw.r.fdLength
	offset := rw.r.fdOffset
	for remaining > 0 {
		want := int64(len(buf))
		if want > remaining {
			want = remaining
		}
		n, err := rw.r.fd.ReadAt(buf[:want], offset)
		if n > 0 {
			if _, werr := rw.writeChunk(buf[:n]); werr != nil {
				return written, status.ErrSocketOther
			}
			written += int64(n)
			offset += int64(n)
			remaining -= int64(n)
		}
		if err != nil {
			if err == io.EOF && remaining > 0 {
				return written, status.ErrBuffTooSmall
			}
			if err != io.EOF {
				return written, status.ErrSocketOther
			}
			break
		}
	}
	return written, status.OK
}

func (rw *Writer) writeIOV() (int64, status.Code) {
	var written int64
	for _, seg := range rw.r.iov {
		n, err := rw.writeChunk(seg)
		written += int64(n)
		if err != nil {
			return written, status.ErrSocketOther
		}
	}
	return written, status.OK
}

func (rw *Writer) writeCallback() (int64, status.Code) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, done, code := rw.r.callback(rw.r.callbackCls, written, buf)
		if n > 0 {
			if _, err := rw.writeChunk(buf[:n]); err != nil {
				return written, status.ErrSocketOther
			}
			written += int64(n)
		}
		if !code.Ok() {
			return written, code
		}
		if done {
			return written, status.OK
		}
	}
}

// writeChunk writes p as body content, applying chunk framing if the
// response is being sent chunked.
func (rw *Writer) writeChunk(p []byte) (int, error) {
	if rw.f.Chunked {
		if _, err := fmt.Fprintf(rw.w, "%x\r\n", len(p)); err != nil {
			return 0, err
		}
		n, err := rw.w.Write(p)
		if err == nil {
			_, err = rw.w.WriteString("\r\n")
		}
		return n, err
	}
	return rw.w.Write(p)
}

// Close finalizes the reply: for chunked framing this writes the
// terminal 0-length chunk (and any trailers); it then flushes the
// underlying bufio.Writer.
func (rw *Writer) Close(trailers *parser.FieldList) error {
	if rw.closed {
		return nil
	}
	rw.closed = true
	if rw.f.Chunked {
		if _, err := rw.w.WriteString("0\r\n"); err != nil {
			return err
		}
		if trailers != nil {
			trailers.Each(func(name, value string) {
				fmt.Fprintf(rw.w, "%s: %s\r\n", name, value)
			})
		}
		if _, err := rw.w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return rw.w.Flush()
}

// ShouldCloseConnection reports whether the connection must be closed
// after this reply, per the framing decision computed in NewWriter.
func (rw *Writer) ShouldCloseConnection() bool { return rw.f.Close }
