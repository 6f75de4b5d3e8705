package parser

import (
	"testing"

	"github.com/arlonet/httpd/status"
)

func TestParseRequestLineBasic(t *testing.T) {
	var req Request
	code := ParseRequestLine([]byte("GET /foo?bar=1 HTTP/1.1"), StrictnessDefault, &req)
	if !code.Ok() {
		t.Fatalf("unexpected code: %v", code)
	}
	if req.Method != MethodGet || req.URL != "/foo" || req.QueryString != "bar=1" {
		t.Fatalf("got method=%v url=%q query=%q", req.Method, req.URL, req.QueryString)
	}
	if req.ProtoMajor != 1 || req.ProtoMinor != 1 {
		t.Fatalf("got proto %d.%d", req.ProtoMajor, req.ProtoMinor)
	}
}

func TestParseRequestLineMalformed(t *testing.T) {
	var req Request
	code := ParseRequestLine([]byte("GET /foo"), StrictnessDefault, &req)
	if code != status.ErrMalformedRequestLine {
		t.Fatalf("expected malformed request line, got %v", code)
	}
}

func TestHeaderBlockScannerBasic(t *testing.T) {
	hs := NewHeaderBlockScanner(StrictnessDefault)
	var fl FieldList
	input := []byte("Host: example.com\r\nContent-Type: text/plain\r\n\r\nbody")
	n, done, code := hs.Feed(input, &fl)
	if !code.Ok() || !done {
		t.Fatalf("code=%v done=%v", code, done)
	}
	if n != len(input)-len("body") {
		t.Fatalf("consumed %d, want %d", n, len(input)-len("body"))
	}
	v, ok := fl.Get("Host")
	if !ok || v != "example.com" {
		t.Fatalf("got host=%q ok=%v", v, ok)
	}
}

func TestHeaderBlockScannerFolding(t *testing.T) {
	hs := NewHeaderBlockScanner(StrictnessLoose)
	var fl FieldList
	input := []byte("X-Long: first\r\n second\r\n\r\n")
	_, done, code := hs.Feed(input, &fl)
	if !code.Ok() || !done {
		t.Fatalf("code=%v done=%v", code, done)
	}
	v, _ := fl.Get("X-Long")
	if v != "first second" {
		t.Fatalf("got %q", v)
	}
}

func TestHeaderBlockScannerRejectsFoldingWhenStrict(t *testing.T) {
	hs := NewHeaderBlockScanner(StrictnessStrict)
	var fl FieldList
	input := []byte("X-Long: first\r\n second\r\n\r\n")
	_, _, code := hs.Feed(input, &fl)
	if code != status.ErrMalformedHeader {
		t.Fatalf("expected malformed header, got %v", code)
	}
}

func TestChunkDecoderBasic(t *testing.T) {
	d := NewChunkDecoder(StrictnessDefault)
	var out []byte
	input := []byte("4\r\nWiki\r\n5\r\npedia\r\n0\r\n")
	n, done, code := d.Feed(input, &out)
	if !code.Ok() || !done {
		t.Fatalf("code=%v done=%v", code, done)
	}
	if n != len(input) {
		t.Fatalf("consumed %d want %d", n, len(input))
	}
	if string(out) != "Wikipedia" {
		t.Fatalf("got %q", out)
	}
}

func TestChunkDecoderPartialFeed(t *testing.T) {
	d := NewChunkDecoder(StrictnessDefault)
	var out []byte
	n, done, code := d.Feed([]byte("4\r\nWi"), &out)
	if !code.Ok() || done {
		t.Fatalf("code=%v done=%v", code, done)
	}
	if string(out) != "Wi" {
		t.Fatalf("got %q", out)
	}
	_, done, code = d.Feed([]byte("ki\r\n0\r\n"), &out)
	if !code.Ok() || !done {
		t.Fatalf("code=%v done=%v", code, done)
	}
	if string(out) != "Wiki" {
		t.Fatalf("got %q", out)
	}
	_ = n
}

func TestDetermineFramingContentLength(t *testing.T) {
	var req Request
	req.Method = MethodPost
	req.Headers.Add("Content-Length", "42")
	code := DetermineFraming(&req)
	if !code.Ok() || req.Content.TotalSize != 42 || req.Content.Chunked {
		t.Fatalf("code=%v total=%d chunked=%v", code, req.Content.TotalSize, req.Content.Chunked)
	}
}

func TestDetermineFramingChunked(t *testing.T) {
	var req Request
	req.Method = MethodPost
	req.Headers.Add("Transfer-Encoding", "chunked")
	code := DetermineFraming(&req)
	if !code.Ok() || !req.Content.Chunked || req.Content.TotalSize != SizeUnknown {
		t.Fatalf("code=%v chunked=%v total=%d", code, req.Content.Chunked, req.Content.TotalSize)
	}
}

func TestDetermineFramingRejectsBoth(t *testing.T) {
	var req Request
	req.Method = MethodPost
	req.Headers.Add("Content-Length", "5")
	req.Headers.Add("Transfer-Encoding", "chunked")
	code := DetermineFraming(&req)
	if code != status.ErrContentLengthAndChunked {
		t.Fatalf("expected content-length-and-chunked error, got %v", code)
	}
}

func TestDetermineFramingNoBodyForGet(t *testing.T) {
	var req Request
	req.Method = MethodGet
	code := DetermineFraming(&req)
	if !code.Ok() || req.Content.TotalSize != 0 {
		t.Fatalf("code=%v total=%d", code, req.Content.TotalSize)
	}
}

func TestShouldCloseHTTP10Default(t *testing.T) {
	var fl FieldList
	if !ShouldClose(1, 0, &fl) {
		t.Fatal("expected HTTP/1.0 without keep-alive to close")
	}
}

func TestShouldCloseHTTP11Default(t *testing.T) {
	var fl FieldList
	if ShouldClose(1, 1, &fl) {
		t.Fatal("expected HTTP/1.1 without Connection: close to stay open")
	}
}

func TestShouldCloseHTTP11Explicit(t *testing.T) {
	var fl FieldList
	fl.Add("Connection", "close")
	if !ShouldClose(1, 1, &fl) {
		t.Fatal("expected HTTP/1.1 with Connection: close to close")
	}
}

func TestParserEndToEndContentLength(t *testing.T) {
	p := New(StrictnessDefault)
	var req Request

	reqLine := []byte("POST /upload HTTP/1.1\r\n")
	n, code := p.FeedRequestLine(reqLine, &req)
	if !code.Ok() || n != len(reqLine) {
		t.Fatalf("request line: n=%d code=%v", n, code)
	}

	headers := []byte("Host: example.com\r\nContent-Length: 5\r\n\r\nhello")
	n, code = p.FeedHeaders(headers, &req)
	if !code.Ok() {
		t.Fatalf("headers: code=%v", code)
	}
	if p.Stage() != StageBodyReceiving {
		t.Fatalf("expected body-receiving stage, got %v", p.Stage())
	}

	var body []byte
	bn, code := p.FeedBody(headers[n:], &req, &body)
	if !code.Ok() || bn != 5 || string(body) != "hello" {
		t.Fatalf("body: n=%d code=%v body=%q", bn, code, body)
	}
	if p.Stage() != StageReqRecvFinished {
		t.Fatalf("expected req-recv-finished stage, got %v", p.Stage())
	}
}
