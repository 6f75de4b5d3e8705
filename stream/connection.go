package stream

import (
	"bufio"
	"bytes"

	"github.com/arlonet/httpd/action"
	"github.com/arlonet/httpd/eventloop"
	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/pool"
	"github.com/arlonet/httpd/postparse"
	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/status"
	"github.com/arlonet/httpd/tlsbridge"
)

// initialReadBufferSize is how much of the connection's pool is carved
// out for the read buffer up front; FeedRequestLine/FeedHeaders/FeedBody
// grow into it via readBuf's tail-allocation origin until the pool itself
// is exhausted, at which point NoSpaceStatusCode decides the reply.
const initialReadBufferSize = 4 * 1024

// Connection holds everything one HTTP/1.1 connection's stage machine
// needs across however many keep-alive requests it serves: its memory
// pool, wire I/O, parser, in-flight request/response/action, timeout
// list membership, and close bookkeeping. One Connection is created per
// accepted (or externally added) socket and freed when it's finally
// disposed of, per §4.H's conn_close_final.
type Connection struct {
	timeoutLink timeoutEntry
	allLink     allConnEntry

	io  IO
	tls tlsbridge.Session // nil for a plain connection

	Pool *pool.Pool

	parser *parser.Parser
	req    parser.Request
	resp   *response.Response
	Action action.Action

	// actionDecided is set once the head-action has been decided for the
	// in-flight request (§4.L): either right after headers are processed,
	// for a PostParse/Upload action that needs to drive body bytes as
	// they arrive, or as a side effect of finishRequest for everything
	// else.
	actionDecided bool

	// bodyScratch is a reused append target for FeedBody calls that must
	// see only the bytes consumed by a single call (Upload/PostParse
	// streaming), as opposed to LargeBuffer's whole-body accumulation.
	bodyScratch []byte

	postParser    *postparse.Parser
	postParseCfg  action.PostParseConfig
	postFields    []postparse.Field

	uploadBufferSize int64
	uploadIncCB      action.UploadIncrementalCallback
	uploadFullCB     action.UploadFullCallback
	uploadCls        any
	uploadFullBuf    []byte

	readBuf   []byte
	readStart int // consumed offset: unconsumed bytes are readBuf[readStart:readLen]
	readLen   int // valid bytes written so far

	writeBuf []byte
	writePos int

	lastActivityMs  int64
	CustomTimeoutMs int64 // 0 means "use the default timeout"

	RemoteAddr string

	// RawConn and ReleaseAdmission are bookkeeping slots for an owning
	// daemon: the underlying net.Conn (kept as `any` so this package
	// never imports net) to close once teardown reaches the socket, and
	// the admission controller's release callback for this connection's
	// slot. The stream package itself never reads either field.
	RawConn          any
	ReleaseAdmission func()

	closing         bool
	closeReason     CloseReason
	closeGraceful   bool
	closeAfterReply bool
}

// New allocates a Connection backed by p, communicating over io (and
// optionally a TLS session). strictness configures the request parser.
func New(p *pool.Pool, io IO, tls tlsbridge.Session, strictness parser.Strictness) (*Connection, status.Code) {
	buf, code := p.AllocateTail(initialReadBufferSize, true)
	if !code.Ok() {
		return nil, status.ErrPoolExhausted
	}
	c := &Connection{
		Pool:    p,
		io:      io,
		tls:     tls,
		parser:  parser.New(strictness),
		readBuf: buf,
	}
	c.timeoutLink.conn = c
	c.allLink.conn = c
	return c, status.OK
}

// Stage reports the connection's current position in the request cycle.
func (c *Connection) Stage() parser.Stage { return c.parser.Stage() }

// Request exposes the in-flight request for the application/handler
// layer (request introspection, per §6).
func (c *Connection) Request() *parser.Request { return &c.req }

// PostParseFields returns the fields decoded so far for an in-flight
// PostParse action (§4.M): multipart fields as their parts close, and
// urlencoded/text-plain fields once the body is fully received. An
// application's DoneCallback reads this once invoked.
func (c *Connection) PostParseFields() []postparse.Field { return c.postFields }

// touch records current activity, called after every successful I/O.
func (c *Connection) touch(nowMs int64) { c.lastActivityMs = nowMs }

// beginReply hands resp (already written exactly once via Action, per
// §4.L) to the response engine and renders it into the connection's
// write buffer. Rendering happens synchronously in memory — cheap,
// CPU-only work — so only the subsequent socket Send calls need to be
// non-blocking.
func (c *Connection) beginReply(resp *response.Response) status.Code {
	resp.Freeze()
	c.resp = resp
	c.parser.AdvanceReplyStage(parser.StageStartReply)

	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	w := response.NewWriter(bw, resp, &c.req)

	if err := w.WriteHeader(c.req.ProtoMajor, c.req.ProtoMinor); err != nil {
		return status.ErrSocketOther
	}
	if _, code := w.WriteBody(); !code.Ok() {
		return code
	}
	if err := w.Close(&c.req.Trailers); err != nil {
		return status.ErrSocketOther
	}
	if err := bw.Flush(); err != nil {
		return status.ErrSocketOther
	}

	c.writeBuf = out.Bytes()
	c.writePos = 0
	c.closeAfterReply = w.ShouldCloseConnection()
	c.parser.AdvanceReplyStage(parser.StageBodySending)
	return status.OK
}

// resetForNextRequest prepares c to parse the next pipelined/keep-alive
// request: the parser returns to StageInit (§3 invariant), the request
// value is cleared, and any bytes already read but not yet consumed (a
// pipelined next request) are shifted to the front of the read buffer.
func (c *Connection) resetForNextRequest() {
	c.compact()
	c.parser.Reset()
	c.req.Reset()
	if c.resp != nil {
		c.resp.Release()
		c.resp = nil
	}
	c.Action.Reset()
	c.actionDecided = false
	c.postParser = nil
	c.postParseCfg = action.PostParseConfig{}
	c.postFields = nil
	c.uploadBufferSize = 0
	c.uploadIncCB = nil
	c.uploadFullCB = nil
	c.uploadCls = nil
	c.uploadFullBuf = nil
	c.writeBuf = nil
	c.writePos = 0
	c.closeAfterReply = false
}

// compact shifts any unconsumed bytes to the front of the read buffer,
// reclaiming space occupied by already-parsed prefix bytes before
// resorting to growing (or failing to grow) the buffer.
func (c *Connection) compact() {
	if c.readStart == 0 {
		return
	}
	unconsumed := c.readLen - c.readStart
	if unconsumed > 0 {
		copy(c.readBuf, c.readBuf[c.readStart:c.readLen])
	}
	c.readLen = unconsumed
	c.readStart = 0
}

// Want reports which directions the event loop should currently watch
// this connection's fd for.
func (c *Connection) Want() eventloop.Want {
	if c.writeBuf != nil && c.writePos < len(c.writeBuf) {
		return eventloop.Want{Send: true}
	}
	return eventloop.Want{Recv: true}
}

// CloseReason reports why c was closed, valid once Closing() is true.
func (c *Connection) CloseReason() CloseReason { return c.closeReason }

// Closing reports whether the close procedure has begun for c.
func (c *Connection) Closing() bool { return c.closing }
