package parser

import "github.com/arlonet/httpd/status"

// MaxLineLength bounds any single request-line or header-line scan, as a
// backstop against a client that never sends a terminator; the caller's
// header-too-large accounting (HeaderBlockTooLarge) is the primary guard,
// this is the last line of defense against an unbounded scan.
const MaxLineLength = 64 * 1024

// scanLine looks for a line terminator in buf starting at offset 0 and
// returns the line content (without the terminator), how many bytes of
// buf the line plus terminator occupies, and whether a complete line was
// found at all. If buf contains no terminator yet, found is false and the
// caller should wait for more bytes.
//
// A bare LF is accepted only when s.AllowBareLF(); otherwise a LF not
// preceded by CR is a protocol error (status.ErrMalformedHeader).
func scanLine(buf []byte, s Strictness) (line []byte, consumed int, found bool, code status.Code) {
	limit := len(buf)
	if limit > MaxLineLength {
		limit = MaxLineLength
	}
	for i := 0; i < limit; i++ {
		if buf[i] != '\n' {
			continue
		}
		if i > 0 && buf[i-1] == '\r' {
			return buf[:i-1], i + 1, true, status.OK
		}
		if !s.AllowBareLF() {
			return nil, 0, false, status.ErrMalformedHeader
		}
		return buf[:i], i + 1, true, status.OK
	}
	if len(buf) > MaxLineLength {
		return nil, 0, false, status.ErrHeaderTooLarge
	}
	return nil, 0, false, status.OK
}
