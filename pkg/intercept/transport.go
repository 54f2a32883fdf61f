package intercept

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/logging"
)

// Transport is an http.RoundTripper that runs an Interceptor's rules.
//
// Per request: clone, preprocess, then either answer from the first
// matching interceptor or path mapping, or delegate to the base transport.
type Transport struct {
	ic   *Interceptor
	base http.RoundTripper
}

// Base returns the transport used for requests no rule answers.
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		closeBody(req)
		return nil, err
	}

	start := time.Now()
	logger := t.ic.logger
	snap := t.ic.registry.snapshot()

	// The caller's request must not be modified; rules see a clone.
	out := req.Clone(req.Context())

	t.emit(logging.EventHTTPRequest, fmt.Sprintf("%s %s", out.Method, out.URL), "", nil, requestData(out))

	if len(snap.preprocessors) > 0 {
		snap.preprocess(out)
		logger.Debug("request preprocessed",
			"method", out.Method,
			"url", out.URL.String(),
			"preprocessors", len(snap.preprocessors),
		)
		t.emit(logging.EventPreprocessed, fmt.Sprintf("%s %s", out.Method, out.URL), "", nil, &logging.PreprocessData{
			Method:        out.Method,
			Host:          out.URL.Host,
			Path:          out.URL.Path,
			Preprocessors: len(snap.preprocessors),
		})
	}

	d, matched := snap.evaluate(out, logger)
	if !matched {
		logger.Debug("request passthrough", "method", out.Method, "url", out.URL.String())
		t.emit(logging.EventPassthrough, fmt.Sprintf("%s %s", out.Method, out.URL), "", nil, requestData(out))
		return t.base.RoundTrip(out)
	}

	// A preprocessor may have replaced the body; close both.
	closeBody(req)
	closeBody(out)
	duration := time.Since(start)

	data := &logging.InterceptData{
		Method:     out.Method,
		Host:       out.URL.Host,
		Path:       out.URL.Path,
		Kind:       d.rule.kind.String(),
		LocalPath:  d.localPath,
		DurationMS: duration.Milliseconds(),
	}

	if d.err != nil {
		logger.Debug("request failed by interceptor",
			"rule", d.rule.handle,
			"method", out.Method,
			"url", out.URL.String(),
			"error", d.err,
		)
		data.Error = d.err.Error()
		t.emit(logging.EventInterceptFailed,
			fmt.Sprintf("%s %s -> %v", out.Method, out.URL, d.err),
			string(d.rule.handle), []string{d.rule.kind.String()}, data)
		return nil, errx.Wrap(ErrInterceptFailed, d.err)
	}

	resp := d.resp.toHTTP(out)
	logger.Debug("request intercepted",
		"rule", d.rule.handle,
		"kind", d.rule.kind,
		"method", out.Method,
		"url", out.URL.String(),
		"status", resp.StatusCode,
	)
	data.StatusCode = resp.StatusCode
	data.BodyBytes = resp.ContentLength

	eventType := logging.EventIntercepted
	if d.rule.kind == KindPathMapping {
		eventType = logging.EventMapped
	}
	t.emit(eventType,
		fmt.Sprintf("%s %s -> %d (%dms)", out.Method, out.URL, resp.StatusCode, duration.Milliseconds()),
		string(d.rule.handle), []string{d.rule.kind.String()}, data)
	return resp, nil
}

func (t *Transport) emit(eventType, summary, rule string, tags []string, data any) {
	if t.ic.emitter != nil {
		_ = t.ic.emitter.Emit(eventType, summary, rule, tags, data)
	}
}

func requestData(req *http.Request) *logging.HTTPRequestData {
	return &logging.HTTPRequestData{
		Method: req.Method,
		Scheme: req.URL.Scheme,
		Host:   req.URL.Host,
		Path:   req.URL.Path,
	}
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
