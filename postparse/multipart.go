package postparse

import (
	"bytes"
	"mime"
	"strings"

	"github.com/arlonet/httpd/status"
)

// multipartDecoder incrementally splits a multipart/form-data body into
// parts as bytes arrive, adapting the teacher's scanUntilBoundary /
// matchAfterPrefix boundary-matching algorithm (mime/utils.go) from a
// bufio.Reader-driven pull model to a byte-slice-driven push model: Feed
// appends to an internal accumulation buffer and extracts every
// complete part it can find before returning.
type multipartDecoder struct {
	dashBoundary   []byte // "--boundary"
	nlDashBoundary []byte // "\r\n--boundary"
	autoStreamSize int64

	buf        []byte
	sawAnyPart bool
	done       bool

	curHeaderDone bool
	curName       string
	curFilename   string
	curType       string
	curEncoding   string
	curValue      []byte
	curTooLarge   bool
}

func newMultipartDecoder(boundary string, autoStreamSize int64) *multipartDecoder {
	full := []byte("\r\n--" + boundary)
	return &multipartDecoder{
		dashBoundary:   full[2:],
		nlDashBoundary: full,
		autoStreamSize: autoStreamSize,
	}
}

func (d *multipartDecoder) feed(data []byte) ([]Field, status.Code) {
	if d.done {
		return nil, status.OK
	}
	d.buf = append(d.buf, data...)
	return d.drain()
}

func (d *multipartDecoder) finish() ([]Field, status.Code) {
	if d.done {
		return nil, status.OK
	}
	fields, code := d.drain()
	if code != status.OK {
		return fields, code
	}
	d.done = true
	return fields, status.OK
}

// drain pulls as many complete header blocks / part bodies as are
// currently available out of d.buf, returning completed Fields.
func (d *multipartDecoder) drain() ([]Field, status.Code) {
	var out []Field
	for {
		if !d.curHeaderDone {
			consumed, ok, code := d.tryConsumeBoundaryOrHeaders()
			if code != status.OK {
				return out, code
			}
			if !ok {
				return out, status.OK
			}
			d.buf = d.buf[consumed:]
			continue
		}

		n, boundaryHit := scanUntilBoundary(d.buf, d.dashBoundary, d.nlDashBoundary)
		if n > 0 {
			d.curValue = appendBounded(d.curValue, d.buf[:n], d.autoStreamSize)
			if int64(len(d.curValue)) >= d.autoStreamSize && d.autoStreamSize > 0 {
				d.curTooLarge = true
			}
			d.buf = d.buf[n:]
		}
		if !boundaryHit {
			return out, status.OK
		}

		out = append(out, Field{
			Name:            d.curName,
			Value:           string(d.curValue),
			Filename:        d.curFilename,
			ContentType:     d.curType,
			ContentEncoding: d.curEncoding,
			TooLarge:        d.curTooLarge,
		})
		d.curHeaderDone = false
		d.curValue = nil
		d.curTooLarge = false
	}
}

// tryConsumeBoundaryOrHeaders looks for the next boundary delimiter line
// and, if found and it isn't the final boundary, parses the header block
// that follows it (name/filename/content-type/content-encoding). It
// returns ok=false if d.buf does not yet contain enough to decide.
func (d *multipartDecoder) tryConsumeBoundaryOrHeaders() (consumed int, ok bool, code status.Code) {
	start := 0
	if !d.sawAnyPart {
		if len(d.buf) < len(d.dashBoundary) {
			return 0, false, status.OK
		}
		if !bytes.Equal(d.buf[:len(d.dashBoundary)], d.dashBoundary) {
			return 0, false, status.ErrInvalidChunkedEncoding
		}
		start = len(d.dashBoundary)
	} else {
		idx := bytes.Index(d.buf, d.nlDashBoundary)
		if idx < 0 {
			return 0, false, status.OK
		}
		start = idx + len(d.nlDashBoundary)
	}

	if start+2 > len(d.buf) {
		return 0, false, status.OK
	}
	if d.buf[start] == '-' && start+1 < len(d.buf) && d.buf[start+1] == '-' {
		d.done = true
		return start + 2, true, status.OK
	}

	headerEnd := bytes.Index(d.buf[start:], []byte("\r\n\r\n"))
	if headerEnd < 0 {
		headerEnd = bytes.Index(d.buf[start:], []byte("\n\n"))
		if headerEnd < 0 {
			return 0, false, status.OK
		}
		headerEnd += start + 2
	} else {
		headerEnd += start + 4
	}

	headerBlock := d.buf[start : headerEnd]
	if err := d.parsePartHeaders(headerBlock); err != nil {
		return 0, false, status.ErrMalformedHeader
	}
	d.sawAnyPart = true
	d.curHeaderDone = true
	return headerEnd, true, status.OK
}

func (d *multipartDecoder) parsePartHeaders(block []byte) error {
	d.curName, d.curFilename, d.curType, d.curEncoding = "", "", "", ""
	for _, line := range bytes.Split(bytes.TrimRight(block, "\r\n"), []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		switch {
		case strings.EqualFold(name, "Content-Disposition"):
			_, params, err := mime.ParseMediaType(value)
			if err == nil {
				d.curName = params["name"]
				d.curFilename = params["filename"]
			}
		case strings.EqualFold(name, "Content-Type"):
			d.curType = value
		case strings.EqualFold(name, "Content-Transfer-Encoding"):
			d.curEncoding = value
		}
	}
	return nil
}

// scanUntilBoundary reports how many leading bytes of buf are safely
// part of the current part's body (not overlapping a possible boundary
// match), and whether a full boundary match was found at that point.
// Ported from the teacher's scanUntilBoundary, simplified for the
// push-model (no readErr/EOF half: Feed just waits for more bytes when
// the buffer ends mid-boundary).
func scanUntilBoundary(buf, dashBoundary, nlDashBoundary []byte) (n int, boundaryHit bool) {
	i := bytes.Index(buf, nlDashBoundary)
	if i < 0 {
		// No boundary found; hold back enough bytes that a boundary
		// straddling this chunk and the next one isn't missed.
		safe := len(buf) - len(nlDashBoundary)
		if safe < 0 {
			safe = 0
		}
		return safe, false
	}
	return i, true
}
