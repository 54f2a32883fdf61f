package ruleset

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

// respondRule answers matching requests with a fixed response. A body_file
// is read on every request so edits show up without a reload.
type respondRule struct {
	ruleMeta
	filter requestFilter
	logger *slog.Logger

	status   int
	body     []byte
	bodyFile string
	mimeType string
	encoding string
	headers  http.Header
}

func newRespondRule(cfg RuleConfig, baseDir string, logger *slog.Logger) (Rule, error) {
	filter, err := newRequestFilter(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Body != "" && cfg.BodyFile != "" {
		return nil, errx.With(ErrInvalidRule, ": body and body_file are mutually exclusive")
	}
	if cfg.Status != 0 && (cfg.Status < 100 || cfg.Status > 999) {
		return nil, errx.With(ErrInvalidRule, ": status %d out of range", cfg.Status)
	}

	r := &respondRule{
		ruleMeta: ruleMeta{name: cfg.Name, typeName: cfg.Type},
		filter:   filter,
		logger:   logger,
		status:   cfg.Status,
		body:     []byte(cfg.Body),
		mimeType: cfg.MIMEType,
		encoding: cfg.Encoding,
	}
	if cfg.BodyFile != "" {
		r.bodyFile = resolvePath(baseDir, cfg.BodyFile)
		if _, err := os.Stat(r.bodyFile); err != nil {
			return nil, errx.Wrap(ErrReadBodyFile, err)
		}
	}
	if hs := normalizeHeaderSet(cfg.Headers); len(hs) > 0 {
		r.headers = make(http.Header, len(hs))
		for k, v := range hs {
			r.headers.Set(k, v)
		}
	}
	return r, nil
}

func (r *respondRule) Install(ic *intercept.Interceptor) (intercept.Handle, error) {
	return ic.Add(r.intercept), nil
}

func (r *respondRule) intercept(req *http.Request) (*intercept.Response, error) {
	if !r.filter.matches(req) {
		return nil, nil
	}

	body := r.body
	if r.bodyFile != "" {
		data, err := os.ReadFile(r.bodyFile)
		if err != nil {
			r.logger.Warn("body file unreadable", "path", r.bodyFile, "error", err)
			return nil, errx.Wrap(ErrReadBodyFile, err)
		}
		body = data
	}

	return &intercept.Response{
		StatusCode: r.status,
		Body:       body,
		MIMEType:   r.mimeType,
		Encoding:   r.encoding,
		Header:     r.headers.Clone(),
	}, nil
}
