package auth

import "testing"

func TestParseBasicDecodesCredentials(t *testing.T) {
	// "alice:wonderland" base64-encoded.
	header := "Basic YWxpY2U6d29uZGVybGFuZA=="
	creds, ok := ParseBasic(header)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if creds.Username != "alice" || creds.Password != "wonderland" {
		t.Errorf("got %+v", creds)
	}
}

func TestParseBasicRejectsWrongScheme(t *testing.T) {
	if _, ok := ParseBasic("Bearer sometoken"); ok {
		t.Error("expected ok=false for non-Basic scheme")
	}
}

func TestParseBasicRejectsMalformedBase64(t *testing.T) {
	if _, ok := ParseBasic("Basic not-valid-base64!!!"); ok {
		t.Error("expected ok=false for malformed base64")
	}
}

func TestParseBasicRejectsMissingColon(t *testing.T) {
	// base64("nocolonhere")
	if _, ok := ParseBasic("Basic bm9jb2xvbmhlcmU="); ok {
		t.Error("expected ok=false when decoded value has no colon")
	}
}

func TestBasicChallengeQuotesRealm(t *testing.T) {
	got := BasicChallenge("My Realm")
	want := `Basic realm="My Realm"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
