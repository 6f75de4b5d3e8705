package parser

// Method interns the common HTTP methods as a small enum so the hot path
// (request-line parsing) never allocates or string-compares against the
// full method table; Original always keeps the exact bytes the client
// sent, in case the application needs the literal string or the method is
// OTHER.
type Method int

const (
	MethodOther Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodAsterisk // the "*" request-target used by OPTIONS *
)

var methodNames = map[string]Method{
	"GET":     MethodGet,
	"HEAD":    MethodHead,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"DELETE":  MethodDelete,
	"CONNECT": MethodConnect,
	"OPTIONS": MethodOptions,
	"TRACE":   MethodTrace,
}

// internMethod maps the raw method token to its enum value, falling back
// to MethodOther for any method not in the table above (WebDAV verbs,
// custom verbs, and so on remain fully usable via Request.MethodString).
func internMethod(raw string) Method {
	if m, ok := methodNames[raw]; ok {
		return m
	}
	return MethodOther
}

// usuallyLacksBody reports whether requests using this method typically
// carry no body, mirroring the teacher's requestMethodUsuallyLacksBody
// (utils_transfer.go) generalized to the enum form used here.
func (m Method) usuallyLacksBody() bool {
	switch m {
	case MethodGet, MethodHead, MethodDelete, MethodOptions:
		return true
	default:
		return false
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	case MethodConnect:
		return "CONNECT"
	case MethodOptions:
		return "OPTIONS"
	case MethodTrace:
		return "TRACE"
	case MethodAsterisk:
		return "*"
	default:
		return "OTHER"
	}
}
