package ruleset

import (
	"log/slog"
	"strings"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

type mapRule struct {
	ruleMeta
	url  string
	path string
}

func newMapRule(cfg RuleConfig, baseDir string, _ *slog.Logger) (Rule, error) {
	u := strings.TrimSpace(cfg.URL)
	p := strings.TrimSpace(cfg.Path)
	if u == "" {
		return nil, errx.With(ErrInvalidRule, ": map rule requires url")
	}
	if p == "" {
		return nil, errx.With(ErrInvalidRule, ": map rule requires path")
	}
	if len(cfg.Hosts) > 0 || len(cfg.Methods) > 0 {
		return nil, errx.With(ErrInvalidRule, ": map rule does not take hosts or methods")
	}
	return &mapRule{
		ruleMeta: ruleMeta{name: cfg.Name, typeName: cfg.Type},
		url:      u,
		path:     resolvePath(baseDir, p),
	}, nil
}

func (r *mapRule) Install(ic *intercept.Interceptor) (intercept.Handle, error) {
	return ic.MapURL(r.url, r.path)
}
