// Package parser implements the byte-level HTTP/1.1 request-line, header,
// and chunked-body parser together with the connection stage machine
// described in §4.G. Every parsing function here is non-blocking: it is
// handed whatever bytes are currently available in the connection's read
// buffer and reports how many it consumed, whether it completed the
// current stage, or a protocol error with a precise status-code hint.
package parser

// Stage is a connection's position within one request/response cycle.
// Values advance strictly monotonically within a cycle; on keep-alive the
// stage resets to StageInit (§3 invariant).
type Stage int

const (
	StageInit Stage = iota
	StageRequestLineReceiving
	StageRequestLineReceived
	StageHeadersReceiving
	StageHeadersReceived
	StageHeadersProcessed
	StageBodyReceiving
	StageBodyReceived
	StageFootersReceiving
	StageReqRecvFinished
	StageStartReply
	StageHeadersSending
	StageBodySending
	StageFootersSending
	StageFullReplySent
	StagePreClosing
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageRequestLineReceiving:
		return "req-line-receiving"
	case StageRequestLineReceived:
		return "req-line-received"
	case StageHeadersReceiving:
		return "headers-receiving"
	case StageHeadersReceived:
		return "headers-received"
	case StageHeadersProcessed:
		return "headers-processed"
	case StageBodyReceiving:
		return "body-receiving"
	case StageBodyReceived:
		return "body-received"
	case StageFootersReceiving:
		return "footers-receiving"
	case StageReqRecvFinished:
		return "req-recv-finished"
	case StageStartReply:
		return "start-reply"
	case StageHeadersSending:
		return "headers-sending"
	case StageBodySending:
		return "body-sending"
	case StageFootersSending:
		return "footers-sending"
	case StageFullReplySent:
		return "full-reply-sent"
	case StagePreClosing:
		return "pre-closing"
	case StageClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// HasBody reports whether s is at or beyond the point where a body (if
// any) has started arriving.
func (s Stage) HasBody() bool { return s >= StageBodyReceiving }
