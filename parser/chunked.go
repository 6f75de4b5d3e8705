package parser

import "github.com/arlonet/httpd/status"

// chunkState is the chunked-transfer decoder's position within one chunk,
// mirroring net/http's chunkedReader state machine but driven
// incrementally off whatever bytes are currently buffered instead of a
// blocking io.Reader.
type chunkState int

const (
	chunkStateSize chunkState = iota
	chunkStateData
	chunkStateDataCRLF
	chunkStateTrailer
	chunkStateDone
)

// ChunkDecoder decodes an HTTP/1.1 chunked body incrementally, per RFC
// 9112 §7.1. One decoder instance lives for the duration of one request
// (or response) body.
type ChunkDecoder struct {
	s     Strictness
	state chunkState
	size  int64 // bytes remaining in the chunk currently being read
}

// NewChunkDecoder returns a decoder ready to read the first chunk's size
// line.
func NewChunkDecoder(s Strictness) *ChunkDecoder {
	return &ChunkDecoder{s: s}
}

// Feed consumes as much of buf as forms complete chunk framing and chunk
// payload bytes. Payload bytes are appended to out (the caller's
// accumulation buffer or pool allocation) as they are identified; consumed
// reports how many bytes of buf were processed. done is true once the
// terminal 0-length chunk and its trailing CRLF (not the trailer section,
// which is a separate header block handed to the caller once done) have
// been seen.
func (d *ChunkDecoder) Feed(buf []byte, out *[]byte) (consumed int, done bool, code status.Code) {
	total := 0
	for total < len(buf) {
		switch d.state {
		case chunkStateSize:
			line, n, found, errCode := scanLine(buf[total:], d.s)
			if errCode != status.OK {
				return total, false, errCode
			}
			if !found {
				return total, false, status.OK
			}
			size, ok := parseChunkSizeLine(line, d.s)
			if !ok {
				return total, false, status.ErrInvalidChunkedEncoding
			}
			total += n
			d.size = size
			if d.size == 0 {
				d.state = chunkStateDone
			} else {
				d.state = chunkStateData
			}

		case chunkStateData:
			avail := int64(len(buf) - total)
			take := d.size
			if avail < take {
				take = avail
			}
			if take > 0 {
				*out = append(*out, buf[total:total+int(take)]...)
				total += int(take)
				d.size -= take
			}
			if d.size == 0 {
				d.state = chunkStateDataCRLF
			} else {
				return total, false, status.OK
			}

		case chunkStateDataCRLF:
			line, n, found, errCode := scanLine(buf[total:], d.s)
			if errCode != status.OK {
				return total, false, errCode
			}
			if !found {
				return total, false, status.OK
			}
			if len(line) != 0 {
				return total, false, status.ErrInvalidChunkedEncoding
			}
			total += n
			d.state = chunkStateSize

		case chunkStateTrailer:
			// The terminal chunk's own CRLF: trailers (if any) are parsed
			// by the caller via a HeaderBlockScanner started at this
			// point, since they share the same header-line grammar.
			d.state = chunkStateDone
			return total, true, status.OK

		case chunkStateDone:
			return total, true, status.OK
		}
	}
	return total, d.state == chunkStateDone, status.OK
}

// Done reports whether the terminal chunk has been reached.
func (d *ChunkDecoder) Done() bool { return d.state == chunkStateDone }

// parseChunkSizeLine parses a chunk-size line (hex digits, optionally
// followed by a ';'-delimited chunk-extension which is discarded), per
// the teacher's removeChunkExtension/parseHexUint.
func parseChunkSizeLine(line []byte, s Strictness) (int64, bool) {
	if semi := indexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = trimOWSBytes(line)
	if len(line) == 0 || len(line) > s.MaxChunkSizeHexDigits() {
		return 0, false
	}
	var n uint64
	for _, b := range line {
		var digit uint64
		switch {
		case '0' <= b && b <= '9':
			digit = uint64(b - '0')
		case 'a' <= b && b <= 'f':
			digit = uint64(b-'a') + 10
		case 'A' <= b && b <= 'F':
			digit = uint64(b-'A') + 10
		default:
			return 0, false
		}
		n = n<<4 | digit
	}
	if n > 1<<62 {
		return 0, false
	}
	return int64(n), true
}
