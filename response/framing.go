package response

import "github.com/arlonet/httpd/parser"

// Framing is the engine's decision on how a response's body is delimited
// on the wire, computed once per reply from the response, the request it
// answers, and whatever headers the application already set explicitly.
type Framing struct {
	Chunked       bool
	ContentLength int64 // meaningful only when !Chunked && Known
	Known         bool  // false means body runs to connection close
	Close         bool
	SuppressBody  bool // HEAD, or a status that forbids a body
}

// ComputeFraming implements §4.K's framing choice: HEAD suppresses the
// body but keeps any known Content-Length; a status that forbids a body
// frames as Content-Length 0; otherwise an explicit chunked flag wins;
// otherwise a known length frames as
// Content-Length/identity; an HTTP/1.0 client with unknown length framing
// falls back to close-delimited.
func ComputeFraming(r *Response, req *parser.Request) Framing {
	var f Framing

	suppress := req.Method == parser.MethodHead || !bodyAllowedForStatus(r.Status)
	f.SuppressBody = suppress

	f.Close = r.Flags.Has(FlagConnClose) ||
		req.Headers.ContainsToken("Connection", "close") ||
		(req.ProtoMajor == 1 && req.ProtoMinor == 0 && !req.Headers.ContainsToken("Connection", "keep-alive"))

	switch {
	case !bodyAllowedForStatus(r.Status):
		f.Known = true
		f.ContentLength = 0

	case r.Flags.Has(FlagChunkedEnc):
		f.Chunked = true

	case r.ContentLength != SizeUnknown:
		f.Known = true
		f.ContentLength = r.ContentLength

	case req.ProtoMajor == 1 && req.ProtoMinor >= 1 && !r.Flags.Has(FlagHTTP10Compatible):
		// HTTP/1.1 with unknown length: chunk rather than close, so the
		// connection can be reused (mirrors the teacher's chunk_writer
		// fallback for unknown-length bodies).
		f.Chunked = true

	default:
		// HTTP/1.0, or a caller explicitly opting into 1.0 compatibility,
		// with unknown length: the only framing left is connection close.
		f.Close = true
	}

	return f
}
