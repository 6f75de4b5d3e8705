package parser

// SizeUnknown marks a Content whose total size cannot be determined up
// front (chunked transfer). A request with neither Content-Length nor
// chunked encoding gets TotalSize 0, not SizeUnknown.
const SizeUnknown int64 = -1

// Content tracks how much of a request (or trailer/chunk) body has
// arrived and been handed to the application, per the Request data model
// in §3.
type Content struct {
	TotalSize int64 // SizeUnknown if not yet determined
	Received  int64 // bytes read off the wire so far
	Processed int64 // bytes handed to the application so far

	Chunked     bool
	ChunkSize   int64 // size of the chunk currently being read
	ChunkOffset int64 // bytes of the current chunk consumed so far

	// LargeBuffer accumulates body bytes beyond what fits in the
	// connection's read buffer (e.g. for ParsePost's auto_stream_size
	// threshold); nil until first needed.
	LargeBuffer []byte
}

// Done reports whether the full body (as far as TotalSize is known) has
// been received.
func (c *Content) Done() bool {
	if c.Chunked {
		return false // chunked completion is signaled explicitly by the chunk reader hitting the terminal 0-chunk
	}
	if c.TotalSize == SizeUnknown {
		return false
	}
	return c.Received >= c.TotalSize
}

// Request holds everything parsed from one HTTP/1.1 request line, header
// block, and body, per §3's Request data model.
type Request struct {
	Method       Method
	MethodString string // original bytes, even for interned methods

	URL         string // path component
	QueryString string // everything after the first '?', empty if none

	ProtoMajor, ProtoMinor int

	Headers FieldList
	Trailers FieldList

	Content Content

	HeaderBlockTooLarge bool

	// AppContext is an opaque slot the application may use to stash
	// per-request state across callback invocations; the core never
	// reads or writes it.
	AppContext any
}

// Reset clears r for reuse on the next pipelined/keep-alive request. The
// FieldList's backing list nodes are new Field values each time (they are
// small and short-lived; see SPEC_FULL.md §3 for why this is not
// pool-backed).
func (r *Request) Reset() {
	*r = Request{}
}

// SplitTarget splits a request-target on the first '?' into path and
// query, matching §3 ("split on first '?', both pool-allocated").
func SplitTarget(target string) (path, query string) {
	for i := 0; i < len(target); i++ {
		if target[i] == '?' {
			return target[:i], target[i+1:]
		}
	}
	return target, ""
}
