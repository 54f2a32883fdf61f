package ruleset

import (
	"log/slog"
	"net/http"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

type failRule struct {
	ruleMeta
	filter  requestFilter
	logger  *slog.Logger
	message string
}

func newFailRule(cfg RuleConfig, _ string, logger *slog.Logger) (Rule, error) {
	filter, err := newRequestFilter(cfg)
	if err != nil {
		return nil, err
	}
	msg := cfg.Message
	if msg == "" {
		msg = cfg.Name
	}
	return &failRule{
		ruleMeta: ruleMeta{name: cfg.Name, typeName: cfg.Type},
		filter:   filter,
		logger:   logger,
		message:  msg,
	}, nil
}

func (r *failRule) Install(ic *intercept.Interceptor) (intercept.Handle, error) {
	return ic.Add(r.intercept), nil
}

func (r *failRule) intercept(req *http.Request) (*intercept.Response, error) {
	if !r.filter.matches(req) {
		return nil, nil
	}
	r.logger.Debug("request blocked", "method", req.Method, "url", req.URL.String())
	return nil, errx.With(ErrBlocked, ": %s", r.message)
}
