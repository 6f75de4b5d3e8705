package parser

import "github.com/arlonet/httpd/status"

// MaxHeaderBlockSize bounds the total bytes a header block (all field
// lines plus the request line) may occupy before HeaderBlockTooLarge is
// set and the caller should respond 431, per §4.G's no-space policy.
const MaxHeaderBlockSize = 64 * 1024

// Parser drives one connection's request through the stage machine,
// buffering nothing itself: every Feed* call is handed a slice viewing
// into the connection's pool-allocated read buffer and reports how many
// bytes it consumed. One Parser is reused across a keep-alive
// connection's requests via Reset.
type Parser struct {
	stage      Stage
	strictness Strictness
	headerHS   *HeaderBlockScanner
	trailerHS  *HeaderBlockScanner
	chunks     *ChunkDecoder
	headerSize int
}

// New returns a Parser for one connection, reset to StageInit.
func New(s Strictness) *Parser {
	return &Parser{strictness: s, stage: StageInit}
}

// Reset prepares p to parse the next request on the same connection
// (keep-alive), per the stage-machine invariant that stage returns to
// StageInit between cycles.
func (p *Parser) Reset() {
	p.stage = StageInit
	p.headerHS = nil
	p.trailerHS = nil
	p.chunks = nil
	p.headerSize = 0
}

// Stage returns the parser's current position in the request cycle.
func (p *Parser) Stage() Stage { return p.stage }

// AdvanceReplyStage moves the stage machine into the reply-sending half
// of the cycle (StageStartReply through StageFullReplySent). Unlike the
// Feed* methods, it does not parse anything itself: the stream processor
// calls it as it composes and sends the response, since the Stage enum
// spans the whole request/reply cycle rather than just parsing.
func (p *Parser) AdvanceReplyStage(s Stage) {
	p.stage = s
}

// FeedRequestLine attempts to parse the request line out of buf. On
// success it advances the stage through StageRequestLineReceived to
// StageHeadersReceiving and returns how many bytes were consumed; if buf does not yet contain a complete
// line, it returns (0, status.OK) and the caller should supply more
// bytes on the next read.
func (p *Parser) FeedRequestLine(buf []byte, req *Request) (consumed int, code status.Code) {
	if p.stage != StageInit && p.stage != StageRequestLineReceiving {
		return 0, status.ErrTooLate
	}
	p.stage = StageRequestLineReceiving

	total := 0
	line, n, found, code := scanLine(buf, p.strictness)
	if code != status.OK {
		return 0, code
	}
	if !found {
		if len(buf) > MinReasonableReqTargetSize+256 {
			return 0, status.ErrRequestTargetTooLarge
		}
		return 0, status.OK
	}
	total += n

	// Tolerate a small number of leading blank lines before the request
	// line, per strictness (RFC 9112 §2.2's robustness allowance).
	blank := 0
	for len(line) == 0 && blank < p.strictness.MaxLeadingBlankLines() {
		blank++
		line, n, found, code = scanLine(buf[total:], p.strictness)
		if code != status.OK {
			return 0, code
		}
		if !found {
			return 0, status.OK
		}
		total += n
	}
	if len(line) == 0 {
		return 0, status.ErrMalformedRequestLine
	}

	if code := ParseRequestLine(line, p.strictness, req); code != status.OK {
		return 0, code
	}

	p.headerSize += total
	p.stage = StageRequestLineReceived
	p.headerHS = NewHeaderBlockScanner(p.strictness)
	p.stage = StageHeadersReceiving
	return total, status.OK
}

// FeedHeaders attempts to parse as much of the header block out of buf as
// is available, adding fields to req.Headers. Once the block's
// terminating blank line is seen it advances the stage to
// StageHeadersReceived, determines body framing via DetermineFraming, and
// then moves on to StageBodyReceiving, or straight to
// StageReqRecvFinished when there is no body.
func (p *Parser) FeedHeaders(buf []byte, req *Request) (consumed int, code status.Code) {
	if p.stage != StageHeadersReceiving {
		return 0, status.ErrTooLate
	}
	n, done, code := p.headerHS.Feed(buf, &req.Headers)
	p.headerSize += n
	if p.headerSize > MaxHeaderBlockSize {
		req.HeaderBlockTooLarge = true
		return n, status.ErrHeaderTooLarge
	}
	if code != status.OK {
		return n, code
	}
	if !done {
		return n, status.OK
	}

	p.stage = StageHeadersReceived
	if code := DetermineFraming(req); code != status.OK {
		return n, code
	}
	p.stage = StageHeadersProcessed
	if req.Content.Chunked {
		p.chunks = NewChunkDecoder(p.strictness)
	}
	if req.Content.Done() {
		// No body to receive (e.g. a GET, or Content-Length: 0): skip
		// straight to finished rather than waiting in StageBodyReceived
		// for a FeedBody call that will never come.
		p.stage = StageBodyReceived
		p.stage = StageReqRecvFinished
	} else {
		p.stage = StageBodyReceiving
	}
	return n, status.OK
}

// FeedBody consumes body bytes out of buf according to the framing
// DetermineFraming previously selected (fixed Content-Length or
// chunked), appending payload bytes to the Content's accumulation target
// out. Once a fixed-length body is fully consumed it advances the stage
// through StageBodyReceived to StageReqRecvFinished; once a chunked body's
// terminal chunk marker is consumed it advances to StageFootersReceiving
// for FeedTrailers.
func (p *Parser) FeedBody(buf []byte, req *Request, out *[]byte) (consumed int, code status.Code) {
	if p.stage != StageBodyReceiving {
		return 0, status.ErrTooLate
	}

	if req.Content.Chunked {
		n, done, code := p.chunks.Feed(buf, out)
		req.Content.Received += int64(n)
		if code != status.OK {
			return n, code
		}
		if done {
			p.stage = StageFootersReceiving
			p.trailerHS = NewHeaderBlockScanner(p.strictness)
		}
		return n, status.OK
	}

	remaining := req.Content.TotalSize - req.Content.Received
	take := int64(len(buf))
	if take > remaining {
		take = remaining
	}
	if take > 0 {
		*out = append(*out, buf[:take]...)
		req.Content.Received += take
	}
	if req.Content.Received >= req.Content.TotalSize {
		p.stage = StageBodyReceived
		p.stage = StageReqRecvFinished
	}
	return int(take), status.OK
}

// FeedTrailers parses the trailer header block that follows a chunked
// body's terminal chunk, per RFC 9112 §7.1.2. Only reachable when the
// request used chunked transfer encoding.
func (p *Parser) FeedTrailers(buf []byte, req *Request) (consumed int, code status.Code) {
	if p.stage != StageFootersReceiving {
		return 0, status.ErrTooLate
	}
	n, done, code := p.trailerHS.Feed(buf, &req.Trailers)
	if code != status.OK {
		return n, code
	}
	if done {
		p.stage = StageReqRecvFinished
	}
	return n, status.OK
}
