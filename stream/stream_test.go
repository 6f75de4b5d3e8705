package stream

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/arlonet/httpd/action"
	"github.com/arlonet/httpd/parser"
	"github.com/arlonet/httpd/pool"
	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/status"
)

// socketpairIO returns two non-blocking connected IOs, one to act as the
// server side under test and one the test drives directly as "the
// client."
func socketpairIO(t *testing.T) (server IO, clientFD int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return NewRawIO(fds[0]), fds[1]
}

func TestProcessorHandlesSimpleGET(t *testing.T) {
	io, clientFD := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	called := false
	proc := NewProcessor(func(c *Connection, act *action.Action) {
		called = true
		if c.Request().URL != "/hello" {
			t.Errorf("unexpected URL %q", c.Request().URL)
		}
		resp := response.New(200)
		resp.Headers.Add("Content-Type", "text/plain")
		resp.SetBuffer([]byte("hi"), response.OwnershipPersistent)
		act.SetResponse(resp)
	})

	req := "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	reason := proc.Tick(conn, true, false)
	if reason != ReasonNone {
		t.Fatalf("unexpected close after recv: %v", reason)
	}
	if !called {
		t.Fatalf("handler was not invoked")
	}
	if conn.writeBuf == nil {
		t.Fatalf("expected a rendered reply")
	}

	reason = proc.Tick(conn, false, true)
	if reason != ReasonNone {
		t.Fatalf("unexpected close after send: %v", reason)
	}

	out := make([]byte, 4096)
	n, err := unix.Read(clientFD, out)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	got := string(out[:n])
	if !strings.HasPrefix(got, "HTTP/1.1 200") {
		t.Fatalf("unexpected status line: %q", got)
	}
	if !strings.HasSuffix(got, "hi") {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestProcessorClosesOnRemoteHalfClose(t *testing.T) {
	io, clientFD := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	proc := NewProcessor(func(c *Connection, act *action.Action) {
		t.Fatalf("handler should not run")
	})

	unix.Close(clientFD)

	reason := proc.Tick(conn, true, false)
	if reason != ReasonClientShutdownEarly {
		t.Fatalf("expected ReasonClientShutdownEarly, got %v", reason)
	}
	if !conn.Closing() {
		t.Fatalf("expected connection marked closing")
	}
}

func TestProcessorMalformedRequestLineClosesWithClientHTTPError(t *testing.T) {
	io, clientFD := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	proc := NewProcessor(func(c *Connection, act *action.Action) {
		t.Fatalf("handler should not run on malformed input")
	})

	if _, err := unix.Write(clientFD, []byte("not a valid request line at all\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reason := proc.Tick(conn, true, false)
	if reason != ReasonClientHTTPError {
		t.Fatalf("expected ReasonClientHTTPError, got %v", reason)
	}
}

func TestProcessorNoProgressWhenNoDataAvailable(t *testing.T) {
	io, _ := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	proc := NewProcessor(func(c *Connection, act *action.Action) {
		t.Fatalf("handler should not run")
	})

	reason := proc.Tick(conn, true, false)
	if reason != ReasonNone {
		t.Fatalf("expected no close on EAGAIN, got %v", reason)
	}
	if conn.Closing() {
		t.Fatalf("connection should not be closing")
	}
}

func TestProcessorDrivesPostParseActionMidBody(t *testing.T) {
	io, clientFD := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	var doneCalled, finalCalled bool
	var fieldsAtDone []string
	proc := NewProcessor(func(c *Connection, act *action.Action) {
		if !doneCalled {
			doneCalled = true
			act.SetPostParse(action.PostParseConfig{
				AutoStreamSize: 1024,
				DoneCallback: func(cls any) status.Code {
					for _, f := range c.PostParseFields() {
						fieldsAtDone = append(fieldsAtDone, f.Value)
					}
					return status.OK
				},
			})
			return
		}
		finalCalled = true
		resp := response.New(200)
		resp.SetBuffer([]byte("ok"), response.OwnershipPersistent)
		act.SetResponse(resp)
	})

	req := "POST /u HTTP/1.1\r\nHost: x\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	reason := proc.Tick(conn, true, false)
	if reason != ReasonNone {
		t.Fatalf("unexpected close: %v", reason)
	}
	if !doneCalled {
		t.Fatalf("handler was not invoked to decide the PostParse action")
	}
	if !finalCalled {
		t.Fatalf("handler was not invoked a second time to decide the response")
	}
	if len(fieldsAtDone) != 1 || fieldsAtDone[0] != "hello" {
		t.Fatalf("expected one field %q delivered by DoneCallback, got %v", "hello", fieldsAtDone)
	}
	if conn.writeBuf == nil {
		t.Fatalf("expected a rendered reply")
	}
}

func TestProcessorDrivesUploadActionMidBody(t *testing.T) {
	io, clientFD := socketpairIO(t)
	p := pool.New(64 * 1024)
	conn, code := New(p, io, nil, parser.StrictnessDefault)
	if !code.Ok() {
		t.Fatalf("New: %v", code)
	}

	var received []byte
	var finalCalled bool
	uploadConfigured := false
	proc := NewProcessor(func(c *Connection, act *action.Action) {
		if !uploadConfigured {
			uploadConfigured = true
			act.SetUpload(0, func(cls any, chunk []byte) status.Code {
				received = append(received, chunk...)
				return status.OK
			}, nil, nil)
			return
		}
		finalCalled = true
		resp := response.New(200)
		resp.SetBuffer([]byte("ok"), response.OwnershipPersistent)
		act.SetResponse(resp)
	})

	req := "POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	if _, err := unix.Write(clientFD, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	reason := proc.Tick(conn, true, false)
	if reason != ReasonNone {
		t.Fatalf("unexpected close: %v", reason)
	}
	if string(received) != "hello" {
		t.Fatalf("expected incremental upload callback to see %q, got %q", "hello", received)
	}
	if !finalCalled {
		t.Fatalf("handler was not invoked a second time to decide the response")
	}
	if conn.writeBuf == nil {
		t.Fatalf("expected a rendered reply")
	}
}

func TestNoSpaceStatusCodeByStage(t *testing.T) {
	if got := NoSpaceStatusCode(parser.StageHeadersReceiving, 3, 10); got != 431 {
		t.Fatalf("expected 431 for oversized headers, got %d", got)
	}
	if got := NoSpaceStatusCode(parser.StageBodyReceiving, 3, 10); got != 413 {
		t.Fatalf("expected 413 for oversized body, got %d", got)
	}
	if got := NoSpaceStatusCode(parser.StageInit, 99, 10); got != 501 {
		t.Fatalf("expected 501 for absurd method length, got %d", got)
	}
}
