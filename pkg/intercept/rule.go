package intercept

import (
	"net/http"

	"github.com/google/uuid"
)

// Handle identifies a registered rule. It is only meaningful to Remove.
type Handle string

func newHandle() Handle {
	return Handle(uuid.NewString())
}

// RuleKind tags the payload a rule carries.
type RuleKind int

const (
	KindPreprocessor RuleKind = iota + 1
	KindInterceptor
	KindPathMapping
)

func (k RuleKind) String() string {
	switch k {
	case KindPreprocessor:
		return "preprocessor"
	case KindInterceptor:
		return "interceptor"
	case KindPathMapping:
		return "path_mapping"
	default:
		return "unknown"
	}
}

// PreprocessFunc mutates an outgoing request in place. It runs for every
// request and is responsible for its own URL filtering.
type PreprocessFunc func(req *http.Request)

// InterceptFunc decides whether to answer a request.
//
// Returning (nil, nil) passes the request on to the next rule. A non-nil
// Response is returned to the caller as if it came from the network. A
// non-nil error fails the request with that error.
type InterceptFunc func(req *http.Request) (*Response, error)

// rule is a tagged variant: exactly one payload is set, matching kind.
type rule struct {
	handle Handle
	seq    uint64
	kind   RuleKind

	preprocess PreprocessFunc
	intercept  InterceptFunc
	mapping    *PathMapping
}
