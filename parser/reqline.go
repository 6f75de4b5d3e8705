package parser

import (
	"strconv"
	"strings"

	"github.com/arlonet/httpd/status"
)

// MinReasonableReqTargetSize is the smallest request-target buffer size a
// conforming client can rely on a server accepting, per §8's boundary
// test ("A request line exactly at the MIN_REASONABLE_REQ_TARGET_SIZE
// limit parses").
const MinReasonableReqTargetSize = 1024

// ParseRequestLine parses one request line out of line (without its
// terminating CRLF/LF, already split off by the caller's line scanner)
// and fills in req's Method/MethodString/URL/QueryString/ProtoMajor/
// ProtoMinor. strict controls bare-CR tolerance per §4.G.
//
// It returns status.OK on success or a protocol status.Code identifying
// exactly what about the line was malformed (§4.G "Error outputs").
func ParseRequestLine(line []byte, s Strictness, req *Request) status.Code {
	if s.AllowBareCR() {
		for i, b := range line {
			if b == '\r' {
				line[i] = ' '
			}
		}
	} else if containsByte(line, '\r') {
		return status.ErrMalformedRequestLine
	}

	sp1 := indexByte(line, ' ')
	if sp1 < 0 {
		return status.ErrMalformedRequestLine
	}
	method := line[:sp1]
	rest := line[sp1+1:]

	sp2 := lastIndexByte(rest, ' ')
	if sp2 < 0 {
		return status.ErrMalformedRequestLine
	}
	target := rest[:sp2]
	version := rest[sp2+1:]

	if len(method) == 0 || !allTokenBytes(method) {
		return status.ErrMalformedRequestLine
	}
	if len(target) == 0 {
		return status.ErrMalformedRequestLine
	}
	major, minor, ok := parseHTTPVersion(version)
	if !ok {
		return status.ErrMalformedRequestLine
	}

	methodStr := string(method)
	req.Method = internMethod(methodStr)
	req.MethodString = methodStr
	path, query := SplitTarget(string(target))
	req.URL = path
	req.QueryString = query
	req.ProtoMajor = major
	req.ProtoMinor = minor

	return status.OK
}

func parseHTTPVersion(v []byte) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(string(v), prefix) {
		return 0, 0, false
	}
	rest := string(v[len(prefix):])
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, err := strconv.Atoi(rest[:dot])
	if err != nil || maj < 0 || maj > 9 {
		return 0, 0, false
	}
	min, err := strconv.Atoi(rest[dot+1:])
	if err != nil || min < 0 || min > 9 {
		return 0, 0, false
	}
	return maj, min, true
}

func allTokenBytes(b []byte) bool {
	for _, c := range b {
		if !isTokenByte(c) {
			return false
		}
	}
	return true
}

func containsByte(b []byte, c byte) bool {
	return indexByte(b, c) >= 0
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}
