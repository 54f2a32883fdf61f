package intercept

import (
	"log/slog"
	"net/http"

	"github.com/jingkaihe/httpintercept/pkg/logging"
)

// Interceptor owns a rule registry and builds transports that apply it.
// It is safe for concurrent use.
type Interceptor struct {
	registry *Registry
	logger   *slog.Logger
	emitter  *logging.Emitter // nil means no event logging
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ic *Interceptor) {
		if logger != nil {
			ic.logger = logger
		}
	}
}

// WithEmitter enables structured event logging.
func WithEmitter(emitter *logging.Emitter) Option {
	return func(ic *Interceptor) { ic.emitter = emitter }
}

// New creates an Interceptor with an empty registry.
func New(opts ...Option) *Interceptor {
	ic := &Interceptor{
		registry: newRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ic)
	}
	ic.logger = ic.logger.With("component", "intercept")
	return ic
}

// AddPreprocessor registers fn to run against every outgoing request.
func (ic *Interceptor) AddPreprocessor(fn PreprocessFunc) Handle {
	h := ic.registry.add(&rule{kind: KindPreprocessor, preprocess: fn})
	ic.logger.Debug("rule added", "rule", h, "kind", KindPreprocessor)
	return h
}

// Add registers an interceptor. Interceptors and path mappings share one
// precedence list: the earliest registered rule that answers wins.
func (ic *Interceptor) Add(fn InterceptFunc) Handle {
	h := ic.registry.add(&rule{kind: KindInterceptor, intercept: fn})
	ic.logger.Debug("rule added", "rule", h, "kind", KindInterceptor)
	return h
}

// MapURL serves localPath for requests under base. localPath may be a file,
// answering only base itself, or a directory, answering base/<relative path>.
// Whether the target is a file or a directory is decided per request.
func (ic *Interceptor) MapURL(base, localPath string) (Handle, error) {
	m, err := newPathMapping(base, localPath)
	if err != nil {
		return "", err
	}
	h := ic.registry.add(&rule{kind: KindPathMapping, mapping: m})
	ic.logger.Debug("rule added", "rule", h, "kind", KindPathMapping, "base", base, "target", m.target)
	return h, nil
}

// MustMapURL is like MapURL but panics on an invalid base URL.
func (ic *Interceptor) MustMapURL(base, localPath string) Handle {
	h, err := ic.MapURL(base, localPath)
	if err != nil {
		panic(err)
	}
	return h
}

// Remove unregisters the rule for h. Unknown or already removed handles are
// ignored. Requests already in flight are unaffected.
func (ic *Interceptor) Remove(h Handle) {
	if kind, ok := ic.registry.remove(h); ok {
		ic.logger.Debug("rule removed", "rule", h, "kind", kind)
	}
}

// Len returns the number of registered rules.
func (ic *Interceptor) Len() int {
	return ic.registry.len()
}

// Handles returns the registered handles in registration order.
func (ic *Interceptor) Handles() []Handle {
	return ic.registry.handles()
}

// Transport returns a RoundTripper applying the rules and delegating
// unmatched requests to base. A nil base means http.DefaultTransport as it
// is at the time of this call. A base that already runs ic's rules is
// returned as is, so the rules never run twice for one request.
func (ic *Interceptor) Transport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if t, ok := base.(*Transport); ok && t.ic == ic {
		return t
	}
	return &Transport{ic: ic, base: base}
}

// Client returns an http.Client whose transport is ic.Transport(nil).
func (ic *Interceptor) Client() *http.Client {
	return &http.Client{Transport: ic.Transport(nil)}
}
