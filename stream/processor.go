package stream

import (
	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/action"
	"github.com/arlonet/httpd/clock"
	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/postparse"
	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/status"
)

// Handler is the application callback. It is invoked once a request's
// headers are fully processed, to decide the head-action (§4.L); for
// Upload and PostParse actions it is invoked a second time, once the
// body has been fully streamed through, so the application can produce
// the eventual response now that it has seen (or decoded) the body.
// Each invocation records exactly one Action before returning.
type Handler func(c *Connection, act *action.Action)

// Processor drives connections through the stage machine described in
// §4.H. One Processor is shared by every connection a worker owns; it
// holds no per-connection state itself.
type Processor struct {
	Handler Handler
	Clock   *clock.Clock
	Tracker *Tracker
}

// NewProcessor returns a Processor invoking handler for completed
// requests.
func NewProcessor(handler Handler) *Processor {
	return &Processor{Handler: handler, Clock: &clock.Clock{}, Tracker: NewTracker()}
}

// Tick processes one ready event for c: if recvReady, pulls and parses as
// many bytes as are available; if sendReady, drains the pending write
// buffer. It returns a non-ReasonNone CloseReason once c should be torn
// down (StartClosing has already been called for it), and drives the
// connection's tracker/activity bookkeeping for everything short of
// that.
func (p *Processor) Tick(c *Connection, recvReady, sendReady bool) CloseReason {
	if c.closing {
		return c.closeReason
	}

	if sendReady && c.writeBuf != nil && c.writePos < len(c.writeBuf) {
		if reason := p.drainWrite(c); reason != ReasonNone {
			return reason
		}
	}

	if recvReady && (c.writeBuf == nil || c.writePos >= len(c.writeBuf)) {
		if reason := p.pump(c); reason != ReasonNone {
			return reason
		}
	}

	return ReasonNone
}

// drainWrite sends as much of c's rendered reply as the socket accepts
// this tick.
func (p *Processor) drainWrite(c *Connection) CloseReason {
	for c.writePos < len(c.writeBuf) {
		n, code := c.io.Send(c.writeBuf[c.writePos:])
		if !code.Ok() {
			return p.StartClosing(c, reasonForSocketCode(code), "send failed")
		}
		if n < 0 {
			return ReasonNone // EAGAIN: try again next ready tick
		}
		if n == 0 {
			return p.StartClosing(c, ReasonClientShutdownEarly, "send returned zero")
		}
		c.writePos += n
		nowMs, _ := p.Clock.NowMillis()
		c.touch(nowMs)
		p.touchTracker(c, nowMs)
	}

	c.parser.AdvanceReplyStage(parser.StageFullReplySent)

	if c.closeAfterReply {
		return p.StartClosing(c, ReasonHTTPCompleted, "connection: close")
	}
	c.resetForNextRequest()
	return ReasonNone
}

// pump reads available bytes into c's read buffer and feeds the parser
// stage machine until no further progress is possible without more
// input, per §4.H's main loop.
func (p *Processor) pump(c *Connection) CloseReason {
	for {
		if c.readLen >= len(c.readBuf) {
			c.compact() // reclaim already-parsed prefix bytes before declaring no-space
			if c.readLen >= len(c.readBuf) {
				if reason := p.handleNoSpace(c); reason != ReasonNone {
					return reason
				}
				if c.readLen >= len(c.readBuf) {
					return ReasonNone // grew but still full; wait for a handler decision
				}
			}
		}

		n, code := c.io.Recv(c.readBuf[c.readLen:])
		if !code.Ok() {
			return p.StartClosing(c, reasonForSocketCode(code), "recv failed")
		}
		if n < 0 {
			return ReasonNone // EAGAIN: no more to read this tick
		}
		if n == 0 {
			return p.StartClosing(c, ReasonClientShutdownEarly, "remote half-close")
		}
		c.readLen += n
		nowMs, ok := p.Clock.NowMillis()
		if !ok {
			// Large backward clock jump: not fatal to this connection,
			// but worth surfacing to the embedder's log, per §4.H.
		}
		c.touch(nowMs)
		p.touchTracker(c, nowMs)

		progressed, reason := p.feed(c)
		if reason != ReasonNone {
			return reason
		}
		if !progressed {
			return ReasonNone
		}
		if c.parser.Stage() >= parser.StageStartReply {
			return ReasonNone
		}
	}
}

// feed drives the parser through as many stages as buf currently allows,
// returning progressed=true if any bytes were consumed or the stage
// advanced.
func (p *Processor) feed(c *Connection) (progressed bool, reason CloseReason) {
	for {
		view := c.readBuf[c.readStart:c.readLen]
		var consumed int
		var code status.Code

		switch {
		case c.parser.Stage() == parser.StageInit || c.parser.Stage() == parser.StageRequestLineReceiving:
			consumed, code = c.parser.FeedRequestLine(view, &c.req)
		case c.parser.Stage() == parser.StageHeadersReceiving:
			consumed, code = c.parser.FeedHeaders(view, &c.req)
			if code.Ok() && consumed > 0 && !c.actionDecided {
				switch c.parser.Stage() {
				case parser.StageBodyReceiving, parser.StageReqRecvFinished:
					if reason := p.decideAction(c); reason != ReasonNone {
						return true, reason
					}
				}
			}
		case c.parser.Stage() == parser.StageBodyReceiving:
			consumed, code = p.feedBody(c, view)
		case c.parser.Stage() == parser.StageFootersReceiving:
			consumed, code = c.parser.FeedTrailers(view, &c.req)
		default:
			return progressed, ReasonNone
		}

		if !code.Ok() {
			return progressed, p.StartClosing(c, ReasonClientHTTPError, code.Error())
		}
		if consumed == 0 {
			return progressed, ReasonNone
		}
		c.readStart += consumed
		progressed = true

		if c.parser.Stage() == parser.StageReqRecvFinished {
			return progressed, p.finishRequest(c)
		}
	}
}

// feedBody routes a single FeedBody call's worth of body bytes either to
// the ordinary whole-body accumulation (LargeBuffer) or, for an in-flight
// Upload/PostParse action, to that action's streaming machinery — driving
// body bytes through it mid-request rather than only once the whole body
// has arrived.
func (p *Processor) feedBody(c *Connection, view []byte) (int, status.Code) {
	switch c.Action.Kind() {
	case action.KindUpload:
		return p.feedUpload(c, view)
	case action.KindPostParse:
		return p.feedPostParse(c, view)
	default:
		return c.parser.FeedBody(view, &c.req, &c.req.Content.LargeBuffer)
	}
}

// feedUpload consumes one FeedBody call's worth of bytes and hands them
// to the Upload action's configured callback, per §4.L: a zero buffer
// size delivers every chunk as it arrives via the incremental callback;
// otherwise bytes accumulate until the configured buffer fills, at which
// point the full callback fires with final=false.
func (p *Processor) feedUpload(c *Connection, view []byte) (int, status.Code) {
	c.bodyScratch = c.bodyScratch[:0]
	consumed, code := c.parser.FeedBody(view, &c.req, &c.bodyScratch)
	if !code.Ok() || len(c.bodyScratch) == 0 {
		return consumed, code
	}

	if c.uploadBufferSize == 0 {
		if cbCode := c.uploadIncCB(c.uploadCls, c.bodyScratch); !cbCode.Ok() {
			return consumed, cbCode
		}
		return consumed, status.OK
	}

	c.uploadFullBuf = append(c.uploadFullBuf, c.bodyScratch...)
	for int64(len(c.uploadFullBuf)) >= c.uploadBufferSize {
		chunk := c.uploadFullBuf[:c.uploadBufferSize]
		if cbCode := c.uploadFullCB(c.uploadCls, chunk, false); !cbCode.Ok() {
			return consumed, cbCode
		}
		c.uploadFullBuf = append(c.uploadFullBuf[:0], c.uploadFullBuf[c.uploadBufferSize:]...)
	}
	return consumed, status.OK
}

// feedPostParse consumes one FeedBody call's worth of bytes and drives
// them through the connection's postparse.Parser, delivering whichever
// fields complete as a result (multipart parts close incrementally;
// urlencoded/text-plain only ever complete at Finish, in finishPostParse).
func (p *Processor) feedPostParse(c *Connection, view []byte) (int, status.Code) {
	c.bodyScratch = c.bodyScratch[:0]
	consumed, code := c.parser.FeedBody(view, &c.req, &c.bodyScratch)
	if !code.Ok() || len(c.bodyScratch) == 0 {
		return consumed, code
	}
	fields, pcode := c.postParser.Feed(c.bodyScratch)
	if !pcode.Ok() {
		return consumed, pcode
	}
	c.postFields = append(c.postFields, fields...)
	return consumed, status.OK
}

// decideAction invokes the application callback once a request's headers
// are fully processed, recording the head-action (§4.L). Upload and
// PostParse configure the streaming state feedBody drives for the rest
// of the body; Response/Suspend/Upgrade are acted on later, once the body
// (if any) has been fully received, in finishRequest.
func (p *Processor) decideAction(c *Connection) CloseReason {
	c.actionDecided = true
	p.Handler(c, &c.Action)

	switch c.Action.Kind() {
	case action.KindUpload:
		bufSize, incCB, fullCB, cls, _ := c.Action.Upload()
		c.uploadBufferSize = bufSize
		c.uploadIncCB = incCB
		c.uploadFullCB = fullCB
		c.uploadCls = cls
	case action.KindPostParse:
		cfg, _ := c.Action.PostParse()
		contentType, _ := c.req.Headers.Get("Content-Type")
		enc, boundary, code := postparse.DetectEncoding(contentType)
		if !code.Ok() {
			return p.StartClosing(c, ReasonAppError, code.Error())
		}
		c.postParseCfg = cfg
		c.postParser = postparse.New(enc, boundary, cfg.AutoStreamSize)
	}
	return ReasonNone
}

// finishRequest runs once a request (headers and, if present, its full
// body) has been fully received. Upload and PostParse actions are
// finalized first — flushing whatever the streaming machinery hasn't
// delivered yet — and then the application's Handler is invoked a second
// time, with a fresh Action, to decide the eventual response now that it
// has seen the whole body. Response/Suspend/Upgrade (whether decided in
// decideAction or by this second call) are then acted on per §4.L.
func (p *Processor) finishRequest(c *Connection) CloseReason {
	switch c.Action.Kind() {
	case action.KindUpload:
		if reason := p.finishUpload(c); reason != ReasonNone {
			return reason
		}
		c.Action.Reset()
		p.Handler(c, &c.Action)
	case action.KindPostParse:
		if reason := p.finishPostParse(c); reason != ReasonNone {
			return reason
		}
		c.Action.Reset()
		p.Handler(c, &c.Action)
	}

	switch c.Action.Kind() {
	case action.KindResponse:
		resp, _ := c.Action.Response()
		if code := c.beginReply(resp); !code.Ok() {
			return p.StartClosing(c, ReasonAppError, "failed to render response")
		}
	case action.KindSuspend:
		// Connection is parked; the embedder resumes it later by
		// supplying a Response through whatever resumption API the
		// daemon package exposes (outside stream's scope).
	case action.KindUpgrade:
		return p.StartClosing(c, ReasonUpgrade, "connection upgraded")
	default:
		return p.StartClosing(c, ReasonAppError, "handler set no usable action")
	}
	return ReasonNone
}

// finishUpload flushes whatever bytes the Upload action's full-buffer
// callback hasn't yet seen, with final=true, per §4.L ("invoked once the
// upload's configured buffer is full, or the upload completes, whichever
// comes first"). The incremental callback has already seen every byte as
// it arrived in feedUpload; there is nothing left to flush for it.
func (p *Processor) finishUpload(c *Connection) CloseReason {
	if c.uploadFullCB != nil {
		if cbCode := c.uploadFullCB(c.uploadCls, c.uploadFullBuf, true); !cbCode.Ok() {
			return p.StartClosing(c, ReasonAppError, "upload callback failed")
		}
	}
	c.uploadFullBuf = nil
	return ReasonNone
}

// finishPostParse completes the decode (urlencoded/text-plain's fields,
// and a multipart body's in-flight final part, only ever become available
// here) and invokes the application's required done-callback.
func (p *Processor) finishPostParse(c *Connection) CloseReason {
	fields, code := c.postParser.Finish()
	if !code.Ok() {
		return p.StartClosing(c, ReasonAppError, code.Error())
	}
	c.postFields = append(c.postFields, fields...)
	if cbCode := c.postParseCfg.DoneCallback(c.postParseCfg.Cls); !cbCode.Ok() {
		return p.StartClosing(c, ReasonAppError, "postparse done callback failed")
	}
	return ReasonNone
}

// handleNoSpace is invoked when the read buffer fills before the current
// stage completes. It tries to grow the buffer within the connection's
// pool first; if the pool itself is exhausted, it synthesizes the
// hint-tuned error response from NoSpaceStatusCode and starts closing.
func (p *Processor) handleNoSpace(c *Connection) CloseReason {
	grown, code := c.Pool.Reallocate(c.readBuf, len(c.readBuf)*2)
	if code.Ok() {
		c.readBuf = grown
		return ReasonNone
	}

	statusCode := NoSpaceStatusCode(c.parser.Stage(), len(c.req.MethodString), len(c.req.URL))
	resp := response.New(statusCode)
	resp.Headers.Add("Connection", "close")
	_ = resp.SetBuffer(nil, response.OwnershipPersistent)
	if beginCode := c.beginReply(resp); !beginCode.Ok() {
		return p.StartClosing(c, ReasonNoPoolMemory, "no space and reply render failed")
	}
	c.closeAfterReply = true
	return ReasonNone
}

// touchTracker moves c to the front of whichever timeout list applies.
func (p *Processor) touchTracker(c *Connection, nowMs int64) {
	if c.CustomTimeoutMs > 0 {
		p.Tracker.TouchCustom(c)
	} else {
		p.Tracker.TouchDefault(c)
	}
}

// StartClosing implements start_closing from §4.H: records the reason,
// half-closes the socket (or sends TLS close_notify) for a graceful
// close, detaches from the timeout lists, and marks c as closing. It
// returns reason for convenience at call sites that immediately return
// it.
func (p *Processor) StartClosing(c *Connection, reason CloseReason, logMsg string) CloseReason {
	if c.closing {
		return c.closeReason
	}
	c.closing = true
	c.closeReason = reason
	c.closeGraceful = reason.Graceful()

	if c.closeGraceful {
		if c.tls != nil {
			c.tls.Shutdown()
		} else if raw, ok := c.io.(*rawIO); ok {
			_ = unix.Shutdown(raw.fd, unix.SHUT_WR)
		}
	}
	p.Tracker.Untrack(c)
	return reason
}

// PreClean runs the second phase of the close procedure (§4.H
// pre_clean): releases the response's use-count and clears per-request
// state. It is idempotent.
func (c *Connection) PreClean() {
	if c.resp != nil {
		c.resp.Release()
		c.resp = nil
	}
	c.writeBuf = nil
}

// Dispose runs the stream side of conn_close_final: it deinits c's TLS
// session, if any. It does not close a plain connection's socket; the
// owning daemon does that through RawConn. Callers are responsible for
// removing c from a Registry and from the event loop backend before
// calling Dispose.
func (c *Connection) Dispose() {
	if c.tls != nil {
		c.tls.Deinit()
	}
}

func reasonForSocketCode(code status.Code) CloseReason {
	switch code {
	case status.ErrSocketConnReset, status.ErrSocketPipe, status.ErrSocketConnBroken,
		status.ErrSocketNotConnected, status.ErrSocketNoMem, status.ErrSocketOther:
		return ReasonSocketError
	case status.ErrSocketTLS:
		return ReasonSocketError
	default:
		return ReasonIntError
	}
}
