package response

// reasonPhrases gives the standard RFC 9110 reason phrase for a status
// code; StatusText returns "" for anything not in the table so a caller
// can fall back to its own wording.
var reasonPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	102: "Processing",
	103: "Early Hints",

	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",

	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	305: "Use Proxy",
	307: "Temporary Redirect",
	308: "Permanent Redirect",

	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Content Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	417: "Expectation Failed",
	421: "Misdirected Request",
	422: "Unprocessable Content",
	426: "Upgrade Required",
	428: "Precondition Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",

	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// StatusText returns the standard reason phrase for code, or "" if code
// is not one of the registered statuses.
func StatusText(code int) string {
	return reasonPhrases[code]
}

// bodyAllowedForStatus reports whether a response with this status may
// carry a body, per RFC 9110 §6.4.1 and the teacher's bodyAllowedForStatus.
func bodyAllowedForStatus(code int) bool {
	switch {
	case code >= 100 && code <= 199:
		return false
	case code == 204:
		return false
	case code == 304:
		return false
	}
	return true
}

// suppressedHeaders304 lists headers a 304 response must not carry.
var suppressedHeaders304 = []string{"Content-Type", "Content-Length", "Transfer-Encoding"}

func suppressedHeaders(code int) []string {
	switch {
	case code == 304:
		return suppressedHeaders304
	case !bodyAllowedForStatus(code):
		return []string{"Content-Type", "Content-Length", "Transfer-Encoding"}
	}
	return nil
}
