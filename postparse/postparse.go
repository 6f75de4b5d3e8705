// Package postparse implements the streaming POST body decoder described
// in §4.M: activated when the application's head-action is PostParse, it
// classifies the body by Content-Type and produces per-field records:
// multipart parts are decoded as bytes arrive, while urlencoded and
// text/plain bodies are accumulated (up to AutoStreamSize bytes when it is
// positive) and decoded at Finish.
package postparse

import (
	"mime"

	"github.com/arlonet/httpd/status"
)

// Encoding is the POST body format DetectEncoding classified from
// Content-Type.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingURLEncoded
	EncodingMultipart
	EncodingTextPlain
)

// Field is one decoded form field, matching §4.M's per-field record
// shape: {name, value, optional filename, optional Content-Type,
// optional Content-Encoding}.
type Field struct {
	Name            string
	Value           string
	Filename        string
	ContentType     string
	ContentEncoding string

	// TooLarge is set when the field's total size exceeded
	// Parser.AutoStreamSize: Value holds only what fit in the bounded
	// large-shared-buffer, per §4.M's "soft failure on exhaustion" — the
	// field is still delivered, just truncated, rather than aborting the
	// whole parse.
	TooLarge bool
}

// DetectEncoding classifies a Content-Type header value into one of the
// three encodings §4.M supports. For multipart it also returns the
// boundary parameter, unquoted; a multipart Content-Type with no
// boundary parameter is a status.ErrMissingMultipartBoundary error.
func DetectEncoding(contentType string) (Encoding, string, status.Code) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return EncodingUnknown, "", status.ErrBadContentType
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		return EncodingURLEncoded, "", status.OK
	case "multipart/form-data":
		boundary, ok := params["boundary"]
		if !ok || boundary == "" {
			return EncodingMultipart, "", status.ErrMissingMultipartBoundary
		}
		return EncodingMultipart, boundary, status.OK
	case "text/plain":
		return EncodingTextPlain, "", status.OK
	default:
		return EncodingUnknown, "", status.ErrBadContentType
	}
}

// Parser drives one POST body's incremental decode. AutoStreamSize bounds
// how much of any single field's value is buffered before TooLarge kicks
// in for that field; completed fields are returned by Feed (multipart, as
// each part closes) and by Finish (urlencoded/text-plain, which only
// complete at end-of-body, and a multipart body's final part).
type Parser struct {
	AutoStreamSize int64

	encoding Encoding
	boundary string

	urlBuf  []byte // urlencoded: accumulates until Finish
	textBuf []byte // text/plain: accumulates until Finish

	mp *multipartDecoder
}

// New returns a Parser for one POST body of the given encoding (and, for
// multipart, boundary), as classified by DetectEncoding.
func New(enc Encoding, boundary string, autoStreamSize int64) *Parser {
	p := &Parser{AutoStreamSize: autoStreamSize, encoding: enc, boundary: boundary}
	if enc == EncodingMultipart {
		p.mp = newMultipartDecoder(boundary, autoStreamSize)
	}
	return p
}

// Feed consumes as much of data as can be processed right now. For
// multipart bodies it may emit zero or more completed Fields as parts
// close; for urlencoded/text-plain bodies it only ever accumulates,
// emitting nothing until Finish.
func (p *Parser) Feed(data []byte) (fields []Field, code status.Code) {
	switch p.encoding {
	case EncodingURLEncoded:
		p.urlBuf = appendBounded(p.urlBuf, data, p.AutoStreamSize)
		return nil, status.OK
	case EncodingTextPlain:
		p.textBuf = appendBounded(p.textBuf, data, p.AutoStreamSize)
		return nil, status.OK
	case EncodingMultipart:
		return p.mp.feed(data)
	default:
		return nil, status.ErrBadContentType
	}
}

// Finish completes the parse once the request body has been fully fed,
// returning any fields that only become available at end-of-body
// (urlencoded's whole query string; text/plain's single field; a
// multipart body's in-flight final part, if any).
func (p *Parser) Finish() (fields []Field, code status.Code) {
	switch p.encoding {
	case EncodingURLEncoded:
		return parseURLEncoded(p.urlBuf, p.AutoStreamSize)
	case EncodingTextPlain:
		return []Field{{Name: "", Value: string(p.textBuf), TooLarge: p.AutoStreamSize > 0 && int64(len(p.textBuf)) >= p.AutoStreamSize}}, status.OK
	case EncodingMultipart:
		return p.mp.finish()
	default:
		return nil, status.ErrBadContentType
	}
}

// appendBounded appends src to dst, capping dst's growth at limit bytes
// (the bounded large-shared-buffer of §4.M); bytes beyond the limit are
// silently dropped rather than growing the buffer without bound.
func appendBounded(dst, src []byte, limit int64) []byte {
	if limit <= 0 {
		return append(dst, src...)
	}
	room := limit - int64(len(dst))
	if room <= 0 {
		return dst
	}
	if int64(len(src)) > room {
		src = src[:room]
	}
	return append(dst, src...)
}
