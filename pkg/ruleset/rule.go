package ruleset

import (
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

// Rule is a compiled declaration that can register itself on an
// Interceptor.
type Rule interface {
	Name() string
	Type() string
	Install(ic *intercept.Interceptor) (intercept.Handle, error)
}

// requestFilter selects the requests a rule applies to. Empty fields match
// everything.
type requestFilter struct {
	hosts   []string
	methods map[string]struct{}
	path    string
}

func newRequestFilter(cfg RuleConfig) (requestFilter, error) {
	f := requestFilter{
		path:    strings.TrimSpace(cfg.Path),
		methods: normalizeMethods(cfg.Methods),
	}
	for _, host := range cfg.Hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if !doublestar.ValidatePattern(host) {
			return f, errx.With(ErrInvalidRule, ": bad host pattern %q", host)
		}
		f.hosts = append(f.hosts, host)
	}
	if f.path != "" && !doublestar.ValidatePattern(f.path) {
		return f, errx.With(ErrInvalidRule, ": bad path pattern %q", f.path)
	}
	return f, nil
}

func (f requestFilter) matches(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}

	if len(f.hosts) > 0 {
		host := strings.ToLower(req.URL.Hostname())
		matched := false
		for _, pattern := range f.hosts {
			if ok, _ := doublestar.Match(pattern, host); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.methods) > 0 {
		if _, ok := f.methods[strings.ToUpper(req.Method)]; !ok {
			return false
		}
	}

	if f.path != "" {
		pathname := req.URL.Path
		if pathname == "" {
			pathname = "/"
		}
		if ok, _ := doublestar.Match(f.path, pathname); !ok {
			return false
		}
	}

	return true
}

type ruleMeta struct {
	name     string
	typeName string
}

func (m ruleMeta) Name() string { return m.name }
func (m ruleMeta) Type() string { return m.typeName }
