package postparse

import (
	"github.com/arlonet/httpd/status"
	"github.com/arlonet/httpd/url"
)

// parseURLEncoded decodes an application/x-www-form-urlencoded body,
// reusing the teacher's url package for percent-decoding (the same
// QueryUnescape semantics net/url uses) rather than hand-rolling escape
// handling a second time in this package.
func parseURLEncoded(body []byte, autoStreamSize int64) ([]Field, status.Code) {
	truncated := autoStreamSize > 0 && int64(len(body)) >= autoStreamSize
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, status.ErrBadContentType
	}

	var fields []Field
	for name, vs := range values {
		for _, v := range vs {
			fields = append(fields, Field{Name: name, Value: v, TooLarge: truncated})
		}
	}
	return fields, status.OK
}
