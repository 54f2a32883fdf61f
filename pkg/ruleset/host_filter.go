package ruleset

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// hostFilterRule fails requests to hosts outside an allow-list, and
// optionally to private addresses. It is an interceptor, so it only sees
// requests that no earlier rule answered.
type hostFilterRule struct {
	ruleMeta
	logger *slog.Logger

	allowedHosts        []string
	blockPrivateIPs     bool
	allowedPrivateHosts []string
}

func newHostFilterRule(cfg RuleConfig, _ string, logger *slog.Logger) (Rule, error) {
	r := &hostFilterRule{
		ruleMeta:            ruleMeta{name: cfg.Name, typeName: cfg.Type},
		logger:              logger,
		blockPrivateIPs:     cfg.BlockPrivateIPs,
		allowedHosts:        lowerPatterns(cfg.AllowedHosts),
		allowedPrivateHosts: lowerPatterns(cfg.AllowedPrivateHosts),
	}
	for _, p := range append(append([]string(nil), r.allowedHosts...), r.allowedPrivateHosts...) {
		if !doublestar.ValidatePattern(p) {
			return nil, errx.With(ErrInvalidRule, ": bad host pattern %q", p)
		}
	}
	if len(r.allowedHosts) == 0 && !r.blockPrivateIPs {
		return nil, errx.With(ErrInvalidRule, ": host_filter needs allowed_hosts or block_private_ips")
	}
	return r, nil
}

func (r *hostFilterRule) Install(ic *intercept.Interceptor) (intercept.Handle, error) {
	return ic.Add(r.intercept), nil
}

func (r *hostFilterRule) intercept(req *http.Request) (*intercept.Response, error) {
	host := strings.ToLower(req.URL.Hostname())
	if reason := r.gate(host); reason != "" {
		r.logger.Debug("host blocked", "host", host, "reason", reason)
		return nil, errx.With(ErrBlocked, ": %s: %s", host, reason)
	}
	return nil, nil
}

// gate returns why host is refused, or "" when it is allowed.
func (r *hostFilterRule) gate(host string) string {
	if r.blockPrivateIPs && isPrivateHost(host) {
		if !matchAny(r.allowedPrivateHosts, host) {
			return "private address blocked"
		}
		r.logger.Debug("private host allowed via exception", "host", host)
	}

	if len(r.allowedHosts) == 0 || matchAny(r.allowedHosts, host) {
		return ""
	}
	return "host not in allowlist"
}

// isPrivateHost reports whether host is localhost or a literal private
// address. Names are not resolved.
func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, host string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, host); ok {
			return true
		}
	}
	return false
}

func lowerPatterns(in []string) []string {
	out := normalizeStringList(in)
	for i, p := range out {
		out[i] = strings.ToLower(p)
	}
	return out
}
