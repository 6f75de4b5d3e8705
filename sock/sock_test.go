package sock

import (
	"net"
	"testing"
)

func dialLoopback(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case server = <-acceptCh:
	case err := <-errCh:
		t.Fatalf("accept: %v", err)
	}
	return client, server
}

func TestSetNonblocking(t *testing.T) {
	client, server := dialLoopback(t)
	defer client.Close()
	defer server.Close()

	tcp, ok := client.(*net.TCPConn)
	if !ok {
		t.Fatal("expected *net.TCPConn")
	}
	if code := SetNonblocking(tcp); !code.Ok() {
		t.Fatalf("SetNonblocking: %v", code)
	}
}

func TestSetNoDelay(t *testing.T) {
	client, server := dialLoopback(t)
	defer client.Close()
	defer server.Close()

	tcp := client.(*net.TCPConn)
	if code := SetNoDelay(tcp); !code.Ok() {
		t.Fatalf("SetNoDelay: %v", code)
	}
}

func TestFD(t *testing.T) {
	client, server := dialLoopback(t)
	defer client.Close()
	defer server.Close()

	tcp := client.(*net.TCPConn)
	fd, code := FD(tcp)
	if !code.Ok() {
		t.Fatalf("FD: %v", code)
	}
	if fd < 0 {
		t.Fatalf("got invalid fd %d", fd)
	}
}

func TestShutdownWriteThenHardClose(t *testing.T) {
	client, server := dialLoopback(t)
	defer server.Close()

	tcp := client.(*net.TCPConn)
	if code := ShutdownWrite(tcp); !code.Ok() {
		t.Fatalf("ShutdownWrite: %v", code)
	}
	HardClose(client)

	if _, err := client.Write([]byte("x")); err == nil {
		t.Fatal("expected write to closed conn to fail")
	}
}
