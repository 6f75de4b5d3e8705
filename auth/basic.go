// Package auth implements the Basic and Digest authentication helpers
// named in §6: credential extraction from an incoming Authorization
// header, challenge construction for a WWW-Authenticate response header,
// and Digest response verification. It has no dependency on the wire
// parser or connection types — callers pull the raw header value out of
// a request and hand it to these functions.
package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// BasicChallenge renders a WWW-Authenticate header value for Basic auth
// scoped to realm.
func BasicChallenge(realm string) string {
	return fmt.Sprintf(`Basic realm=%q`, realm)
}

// BasicCredentials holds the user/pass pair decoded from an incoming
// "Authorization: Basic ..." header value.
type BasicCredentials struct {
	Username string
	Password string
}

// ParseBasic decodes header (the full Authorization header value,
// including the "Basic " scheme prefix) into its username/password pair.
// ok is false if header isn't a well-formed Basic credential.
func ParseBasic(header string) (creds BasicCredentials, ok bool) {
	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return BasicCredentials{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return BasicCredentials{}, false
	}
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return BasicCredentials{}, false
	}
	return BasicCredentials{Username: user, Password: pass}, true
}
