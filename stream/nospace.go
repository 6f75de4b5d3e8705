package stream

import "github.com/arlonet/httpd/parser"

// NoSpaceStatusCode implements stream_get_no_space_err_status_code from
// §4.H: when the read buffer fills before the current header block
// finishes, it inspects which piece was still incomplete and returns the
// most specific hint: 414 for an oversized request-target, 431 for an
// oversized header block, 501 when even the method looks unparseable,
// and 413 once we're past headers and it's the body itself that's too
// large for this connection's fixed arena.
func NoSpaceStatusCode(stage parser.Stage, methodLen, targetLen int) int {
	switch {
	case stage <= parser.StageRequestLineReceiving:
		if methodLen > maxReasonableMethodLen {
			return 501
		}
		if targetLen > maxReasonableTargetLen {
			return 414
		}
		return 414
	case stage <= parser.StageHeadersReceived:
		return 431
	default:
		return 413
	}
}

const (
	maxReasonableMethodLen = 32
	maxReasonableTargetLen = 8 * 1024
)
