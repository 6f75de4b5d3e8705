/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package url implements the percent-decoding and
// application/x-www-form-urlencoded query parsing postparse needs to
// decode a ParsePost body (§4.M), trimmed from the teacher's fuller URL
// package down to the one surface this module actually exercises.
package url

import "strings"

// Values maps a string key to a list of values, as produced by ParseQuery.
type Values map[string][]string

// Get returns the first value associated with key, or "" if there is none.
func (v Values) Get(key string) string {
	vs := v[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// ParseQuery parses an application/x-www-form-urlencoded query string
// into its key/value pairs. It silently skips a malformed pair rather
// than aborting the whole parse; err reports the first one encountered.
func ParseQuery(query string) (Values, error) {
	m := make(Values)
	var err error
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, kErr := QueryUnescape(key)
		if kErr != nil {
			if err == nil {
				err = kErr
			}
			continue
		}
		value, vErr := QueryUnescape(value)
		if vErr != nil {
			if err == nil {
				err = vErr
			}
			continue
		}
		m[key] = append(m[key], value)
	}
	return m, err
}

// QueryUnescape converts each "%AB" escape in s into its decoded byte and
// each '+' into a space, per application/x-www-form-urlencoded's rules.
// It returns an error if any '%' isn't followed by two hex digits.
func QueryUnescape(s string) (string, error) {
	n := 0
	hasPlus := false
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			n++
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				e := s[i:]
				if len(e) > 3 {
					e = e[:3]
				}
				return "", EscapeError(e)
			}
			i += 3
		case '+':
			hasPlus = true
			i++
		default:
			i++
		}
	}
	if n == 0 && !hasPlus {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case '+':
			b.WriteByte(' ')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
