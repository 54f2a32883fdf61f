package ruleset

import (
	"net/http"
	"strings"
)

func normalizeMethods(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(in))
	for _, method := range in {
		method = strings.TrimSpace(strings.ToUpper(method))
		if method != "" {
			out[method] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeHeaderSet(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[http.CanonicalHeaderKey(key)] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeHeaderDelete(in []string) []string {
	out := normalizeStringList(in)
	for i, k := range out {
		out[i] = http.CanonicalHeaderKey(k)
	}
	return dedupe(out)
}

func normalizeStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeStringList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, x := range in {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := in[:0]
	seen := make(map[string]struct{}, len(in))
	for _, x := range in {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
