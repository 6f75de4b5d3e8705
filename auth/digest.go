package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewNonce returns a fresh random nonce, hex-encoded, suitable for a
// Digest WWW-Authenticate challenge. Callers that need replay protection
// across requests are responsible for tracking issued nonces themselves;
// this just supplies unpredictable bytes.
func NewNonce() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// DigestChallenge renders a WWW-Authenticate header value for Digest auth.
// opaque may be empty, in which case the opaque directive is omitted.
func DigestChallenge(realm, nonce, opaque string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Digest realm=%q, qop="auth", nonce=%q`, realm, nonce)
	if opaque != "" {
		fmt.Fprintf(&b, `, opaque=%q`, opaque)
	}
	return b.String()
}

// DigestCredentials is one Authorization header's worth of Digest
// directives, per RFC 7616 §3.4.
type DigestCredentials struct {
	Username string
	Realm    string
	Nonce    string
	URI      string
	Response string
	QOP      string
	NC       string
	CNonce   string
	Opaque   string
}

// ParseDigest decodes header (the full Authorization header value,
// including the "Digest " scheme prefix) into its directive set. ok is
// false if header isn't well-formed enough to attempt verification
// (missing any of username/realm/nonce/uri/response).
func ParseDigest(header string) (creds DigestCredentials, ok bool) {
	const prefix = "Digest "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return DigestCredentials{}, false
	}
	fields := splitDirectives(header[len(prefix):])

	creds = DigestCredentials{
		Username: fields["username"],
		Realm:    fields["realm"],
		Nonce:    fields["nonce"],
		URI:      fields["uri"],
		Response: fields["response"],
		QOP:      fields["qop"],
		NC:       fields["nc"],
		CNonce:   fields["cnonce"],
		Opaque:   fields["opaque"],
	}
	if creds.Username == "" || creds.Realm == "" || creds.Nonce == "" ||
		creds.URI == "" || creds.Response == "" {
		return DigestCredentials{}, false
	}
	return creds, true
}

// splitDirectives parses a comma-separated "name=value" or
// "name=\"value\"" directive list, per RFC 7616's auth-param grammar.
func splitDirectives(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitTopLevelCommas(s) {
		part = strings.TrimSpace(part)
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		out[strings.ToLower(name)] = value
	}
	return out
}

// splitTopLevelCommas splits s on commas that aren't inside a quoted
// string, since quoted directive values (e.g. request-uri) may contain
// commas of their own.
func splitTopLevelCommas(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// HA1 computes the MD5 digest of "username:realm:password", per RFC
// 7616 §3.4.2's unhashed-A1 algorithm. Applications that store only a
// precomputed HA1 (never the plaintext password) can skip this and pass
// their stored value straight to VerifyDigest.
func HA1(username, realm, password string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}

// VerifyDigest reports whether creds' response directive matches what
// the server computes from ha1, method, and creds' own nonce/uri/qop/nc/
// cnonce. method is the request's HTTP method (e.g. "GET"); ha1 is
// either HA1(...)'s output or an application-stored precomputed HA1.
func VerifyDigest(creds DigestCredentials, method, ha1 string) bool {
	ha2 := md5Hex(method + ":" + creds.URI)

	var expected string
	if creds.QOP == "" {
		expected = md5Hex(ha1 + ":" + creds.Nonce + ":" + ha2)
	} else {
		expected = md5Hex(strings.Join(
			[]string{ha1, creds.Nonce, creds.NC, creds.CNonce, creds.QOP, ha2}, ":"))
	}
	return expected == creds.Response
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
