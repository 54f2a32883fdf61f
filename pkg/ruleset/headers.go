package ruleset

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

// headerRule is a preprocessor that rewrites headers, query parameters and
// the path of matching requests.
type headerRule struct {
	ruleMeta
	filter requestFilter
	logger *slog.Logger

	setHeaders    map[string]string
	deleteHeaders []string
	setQuery      map[string]string
	deleteQuery   []string
	rewritePath   string
}

func newHeaderRule(cfg RuleConfig, _ string, logger *slog.Logger) (Rule, error) {
	filter, err := newRequestFilter(cfg)
	if err != nil {
		return nil, err
	}
	r := &headerRule{
		ruleMeta:      ruleMeta{name: cfg.Name, typeName: cfg.Type},
		filter:        filter,
		logger:        logger,
		setHeaders:    normalizeHeaderSet(cfg.SetHeaders),
		deleteHeaders: normalizeHeaderDelete(cfg.DeleteHeaders),
		setQuery:      normalizeStringMap(cfg.SetQuery),
		deleteQuery:   normalizeStringList(cfg.DeleteQuery),
		rewritePath:   strings.TrimSpace(cfg.RewritePath),
	}
	if !r.hasMutations() {
		return nil, errx.With(ErrInvalidRule, ": %s rule has no mutations", cfg.Type)
	}
	return r, nil
}

func (r *headerRule) hasMutations() bool {
	return len(r.setHeaders) > 0 ||
		len(r.deleteHeaders) > 0 ||
		len(r.setQuery) > 0 ||
		len(r.deleteQuery) > 0 ||
		r.rewritePath != ""
}

func (r *headerRule) Install(ic *intercept.Interceptor) (intercept.Handle, error) {
	return ic.AddPreprocessor(r.apply), nil
}

func (r *headerRule) apply(req *http.Request) {
	if !r.filter.matches(req) {
		return
	}

	for _, k := range r.deleteHeaders {
		req.Header.Del(k)
	}
	for k, v := range r.setHeaders {
		req.Header.Set(k, v)
	}

	if len(r.setQuery) > 0 || len(r.deleteQuery) > 0 {
		q := req.URL.Query()
		for _, key := range r.deleteQuery {
			q.Del(key)
		}
		for key, val := range r.setQuery {
			q.Set(key, val)
		}
		req.URL.RawQuery = q.Encode()
	}
	if r.rewritePath != "" {
		req.URL.Path = r.rewritePath
		req.URL.RawPath = ""
	}

	r.logger.Debug("request rewritten", "method", req.Method, "url", req.URL.String())
}
