package auth

import (
	"strings"
	"testing"
)

func TestNewNonceReturnsDistinctValues(t *testing.T) {
	n1, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	n2, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	if n1 == n2 {
		t.Error("expected two successive nonces to differ")
	}
	if len(n1) != 32 { // 16 bytes hex-encoded
		t.Errorf("nonce length = %d, want 32", len(n1))
	}
}

func TestParseDigestExtractsDirectives(t *testing.T) {
	header := `Digest username="alice", realm="test@realm", ` +
		`nonce="deadbeef", uri="/secret,path", qop=auth, nc=00000001, ` +
		`cnonce="c0ffee", response="abc123", opaque="op"`
	creds, ok := ParseDigest(header)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if creds.Username != "alice" || creds.Realm != "test@realm" ||
		creds.Nonce != "deadbeef" || creds.URI != "/secret,path" ||
		creds.QOP != "auth" || creds.NC != "00000001" ||
		creds.CNonce != "c0ffee" || creds.Response != "abc123" || creds.Opaque != "op" {
		t.Errorf("got %+v", creds)
	}
}

func TestParseDigestRejectsMissingRequiredField(t *testing.T) {
	header := `Digest username="alice", realm="r", nonce="n"`
	if _, ok := ParseDigest(header); ok {
		t.Error("expected ok=false when uri/response are missing")
	}
}

func TestParseDigestRejectsWrongScheme(t *testing.T) {
	if _, ok := ParseDigest("Basic YWJj"); ok {
		t.Error("expected ok=false for non-Digest scheme")
	}
}

func TestVerifyDigestRoundTripsWithQOP(t *testing.T) {
	ha1 := HA1("alice", "test@realm", "secret")
	creds := DigestCredentials{
		Username: "alice",
		Realm:    "test@realm",
		Nonce:    "deadbeef",
		URI:      "/protected",
		QOP:      "auth",
		NC:       "00000001",
		CNonce:   "c0ffee",
	}
	ha2 := md5Hex("GET:/protected")
	creds.Response = md5Hex(strings.Join(
		[]string{ha1, creds.Nonce, creds.NC, creds.CNonce, creds.QOP, ha2}, ":"))

	if !VerifyDigest(creds, "GET", ha1) {
		t.Error("expected verification to succeed with matching response")
	}
	creds.Response = "wrong"
	if VerifyDigest(creds, "GET", ha1) {
		t.Error("expected verification to fail with mismatched response")
	}
}

func TestVerifyDigestRoundTripsWithoutQOP(t *testing.T) {
	ha1 := HA1("bob", "r", "pw")
	creds := DigestCredentials{Nonce: "n123", URI: "/x"}
	ha2 := md5Hex("POST:/x")
	creds.Response = md5Hex(ha1 + ":" + creds.Nonce + ":" + ha2)

	if !VerifyDigest(creds, "POST", ha1) {
		t.Error("expected verification to succeed for legacy no-qop digest")
	}
}

func TestDigestChallengeOmitsEmptyOpaque(t *testing.T) {
	got := DigestChallenge("realm", "nonce123", "")
	if strings.Contains(got, "opaque") {
		t.Errorf("expected no opaque directive, got %q", got)
	}
	got = DigestChallenge("realm", "nonce123", "op1")
	if !strings.Contains(got, `opaque="op1"`) {
		t.Errorf("expected opaque directive, got %q", got)
	}
}
