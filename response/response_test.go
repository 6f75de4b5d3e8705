package response

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/status"
)

func newReq(major, minor int, method parser.Method) *parser.Request {
	var req parser.Request
	req.Method = method
	req.ProtoMajor = major
	req.ProtoMinor = minor
	return &req
}

func TestSetBufferSetsContentLength(t *testing.T) {
	r := New(200)
	if code := r.SetBuffer([]byte("hello"), OwnershipPersistent); !code.Ok() {
		t.Fatalf("SetBuffer: %v", code)
	}
	if r.ContentLength != 5 {
		t.Fatalf("got content length %d", r.ContentLength)
	}
}

func TestFreezeRejectsFurtherMutation(t *testing.T) {
	r := New(200)
	r.Freeze()
	if code := r.SetBuffer([]byte("x"), OwnershipPersistent); code.Ok() {
		t.Fatal("expected frozen response to reject SetBuffer")
	}
}

func TestRetainRelease(t *testing.T) {
	r := New(200)
	r.Retain()
	r.Retain()
	if r.UseCount() != 2 {
		t.Fatalf("got use count %d", r.UseCount())
	}
	if left := r.Release(); left != 1 {
		t.Fatalf("got %d after release", left)
	}
}

func TestComputeFramingKnownLength(t *testing.T) {
	r := New(200)
	r.SetBuffer([]byte("hello"), OwnershipPersistent)
	req := newReq(1, 1, parser.MethodGet)
	f := ComputeFraming(r, req)
	if f.Chunked || !f.Known || f.ContentLength != 5 {
		t.Fatalf("got %+v", f)
	}
}

func TestComputeFramingChunkedUnknownLength11(t *testing.T) {
	r := New(200)
	r.SetCallback(func(cls any, pos int64, buf []byte) (int, bool, status.Code) { return 0, true, status.OK }, nil, SizeUnknown)
	req := newReq(1, 1, parser.MethodGet)
	f := ComputeFraming(r, req)
	if !f.Chunked {
		t.Fatalf("expected chunked framing for HTTP/1.1 unknown length, got %+v", f)
	}
}

func TestComputeFramingCloseOnHTTP10UnknownLength(t *testing.T) {
	r := New(200)
	r.Flags = FlagHTTP10Compatible
	req := newReq(1, 0, parser.MethodGet)
	f := ComputeFraming(r, req)
	if !f.Close || f.Chunked {
		t.Fatalf("expected close framing, got %+v", f)
	}
}

func TestWriteHeaderAndBody(t *testing.T) {
	r := New(200)
	r.SetBuffer([]byte("hi"), OwnershipPersistent)
	r.Headers.Add("Content-Type", "text/plain")
	req := newReq(1, 1, parser.MethodGet)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := NewWriter(bw, r, req)
	if err := w.WriteHeader(1, 1); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if _, code := w.WriteBody(); !code.Ok() {
		t.Fatalf("WriteBody: %v", code)
	}
	if err := w.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("HTTP/1.1 200 OK\r\n")) {
		t.Fatalf("missing status line: %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("Content-Length: 2\r\n")) {
		t.Fatalf("missing content-length: %q", out)
	}
	if !strings.HasSuffix(out, "hi") {
		t.Fatalf("missing body: %q", out)
	}
}

func TestWriteHeaderSuppressesBodyForHead(t *testing.T) {
	r := New(200)
	r.SetBuffer([]byte("hi"), OwnershipPersistent)
	req := newReq(1, 1, parser.MethodHead)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := NewWriter(bw, r, req)
	w.WriteHeader(1, 1)
	n, code := w.WriteBody()
	w.Close(nil)
	if !code.Ok() || n != 0 {
		t.Fatalf("expected suppressed body, got n=%d code=%v", n, code)
	}
}
