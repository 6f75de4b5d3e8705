package parser

import (
	"github.com/arlonet/httpd/status"
)

// HeaderBlockScanner drives incremental parsing of the header block that
// follows a request line: one call to Feed per available chunk of input,
// returning how many bytes were consumed and whether the blank line
// terminating the block was seen. Obsolete line folding (a continuation
// line starting with SP/HTAB) is collapsed into the previous field's value
// when s.AllowLineFolding(); otherwise it is rejected outright, matching
// RFC 9112 §5.2.
type HeaderBlockScanner struct {
	s        Strictness
	last     *Field // most recently added field, for fold continuation
	hostSeen bool
}

// NewHeaderBlockScanner returns a scanner for one header block; each Feed
// call adds fields to the FieldList it is given as they complete.
func NewHeaderBlockScanner(s Strictness) *HeaderBlockScanner {
	return &HeaderBlockScanner{s: s}
}

// Feed consumes as many complete lines from buf as are available, adding
// parsed fields to fl. It returns the number of bytes consumed, whether
// the header block's terminating blank line was reached, and a protocol
// status code on malformed input.
func (hs *HeaderBlockScanner) Feed(buf []byte, fl *FieldList) (consumed int, done bool, code status.Code) {
	total := 0
	for {
		line, n, found, code := scanLine(buf[total:], hs.s)
		if code != status.OK {
			return total, false, code
		}
		if !found {
			return total, false, status.OK
		}
		total += n

		if len(line) == 0 {
			return total, true, status.OK
		}

		if isOWSByte(line[0]) {
			if !hs.s.AllowLineFolding() || hs.last == nil {
				return total, false, status.ErrMalformedHeader
			}
			cont := trimOWSBytes(line)
			hs.last.Value = hs.last.Value + " " + string(cont)
			continue
		}

		colon := indexByte(line, ':')
		if colon <= 0 {
			return total, false, status.ErrMalformedHeader
		}
		name := line[:colon]
		if !allTokenBytes(name) {
			return total, false, status.ErrMalformedHeader
		}
		value := trimOWSBytes(line[colon+1:])

		nameStr := string(name)
		if CanonicalHeaderName(nameStr) == "Host" && fl.Has("Host") && !hs.s.AllowDuplicateHost() {
			return total, false, status.ErrMalformedHeader
		}
		hs.last = fl.Add(nameStr, string(value))
	}
}
