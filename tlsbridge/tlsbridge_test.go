package tlsbridge

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestHandshakeRoundTrip(t *testing.T) {
	cert := selfSignedCert(t)
	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan handshakeResult, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- handshakeResult{err: err}
			return
		}
		s := New()
		if code := s.Init(conn, serverCfg, true); !code.Ok() {
			serverDone <- handshakeResult{err: code}
			return
		}
		if code := s.Handshake(); !code.Ok() {
			serverDone <- handshakeResult{err: code}
			return
		}
		buf := make([]byte, 5)
		if _, code := s.Recv(buf); !code.Ok() {
			serverDone <- handshakeResult{err: code}
			return
		}
		if _, code := s.Send([]byte("world")); !code.Ok() {
			serverDone <- handshakeResult{err: code}
			return
		}
		serverDone <- handshakeResult{}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	cs := New()
	if code := cs.Init(client, clientCfg, false); !code.Ok() {
		t.Fatalf("client init: %v", code)
	}
	if code := cs.Handshake(); !code.Ok() {
		t.Fatalf("client handshake: %v", code)
	}
	if _, code := cs.Send([]byte("hello")); !code.Ok() {
		t.Fatalf("client send: %v", code)
	}
	buf := make([]byte, 5)
	if _, code := cs.Recv(buf); !code.Ok() {
		t.Fatalf("client recv: %v", code)
	}
	if string(buf) != "world" {
		t.Fatalf("got %q", buf)
	}

	if res := <-serverDone; res.err != nil {
		t.Fatalf("server: %v", res.err)
	}

	if code := cs.Deinit(); !code.Ok() {
		t.Fatalf("deinit: %v", code)
	}
}

type handshakeResult struct{ err error }
