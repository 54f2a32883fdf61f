package intercept

import (
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

// PathMapping serves a local file, or the files under a local directory,
// for a URL prefix.
type PathMapping struct {
	base   string
	scheme string
	host   string
	// port is the literal port token of the base URL. An explicit ":80" is
	// distinct from no port at all.
	port   string
	prefix string
	target string
}

func newPathMapping(base, localPath string) (*PathMapping, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errx.Wrap(ErrInvalidMapping, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errx.With(ErrInvalidMapping, ": %q is not an absolute URL", base)
	}
	if strings.TrimSpace(localPath) == "" {
		return nil, errx.With(ErrInvalidMapping, ": empty local path for %q", base)
	}
	target, err := filepath.Abs(localPath)
	if err != nil {
		return nil, errx.Wrap(ErrInvalidMapping, err)
	}

	return &PathMapping{
		base:   base,
		scheme: strings.ToLower(u.Scheme),
		host:   strings.ToLower(u.Hostname()),
		port:   u.Port(),
		prefix: strings.TrimSuffix(u.Path, "/"),
		target: target,
	}, nil
}

// Base returns the URL the mapping was registered with.
func (m *PathMapping) Base() string { return m.base }

// Target returns the absolute local path the mapping serves.
func (m *PathMapping) Target() string { return m.target }

// match reports whether u falls under the mapping and returns the path
// remainder after the prefix, without a leading slash.
func (m *PathMapping) match(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, m.scheme) ||
		!strings.EqualFold(u.Hostname(), m.host) ||
		u.Port() != m.port {
		return "", false
	}

	p := u.Path
	if p == m.prefix {
		return "", true
	}
	if rest, ok := strings.CutPrefix(p, m.prefix+"/"); ok {
		return rest, true
	}
	return "", false
}

// resolve maps req to a local file. It returns (nil, nil) when the request
// is outside the mapping, and a rejection error when the request is inside
// the mapping's URL space but no servable file exists.
func (m *PathMapping) resolve(req *http.Request) (*Response, string, error) {
	rest, ok := m.match(req.URL)
	if !ok {
		return nil, "", nil
	}

	info, err := os.Stat(m.target)
	if err != nil {
		return nil, "", errx.Wrap(ErrMappingNotFound, err)
	}

	file := m.target
	if info.IsDir() {
		file, err = m.resolveInDir(rest)
		if err != nil {
			return nil, "", err
		}
	} else if rest != "" {
		// A file mapping answers only its own URL.
		return nil, "", nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, "", errx.Wrap(ErrMappingNotFound, err)
	}
	return &Response{
		StatusCode: http.StatusOK,
		Body:       data,
		MIMEType:   detectMIMEType(file, data),
	}, file, nil
}

func (m *PathMapping) resolveInDir(rest string) (string, error) {
	if rest == "" {
		return "", errx.With(ErrMappingNotFound, ": %s is a directory", m.target)
	}

	root, err := filepath.EvalSymlinks(m.target)
	if err != nil {
		return "", errx.Wrap(ErrMappingNotFound, err)
	}
	joined := filepath.Join(root, filepath.FromSlash(rest))
	if !within(root, joined) {
		return "", errx.With(ErrInvalidPath, ": %q", rest)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", errx.Wrap(ErrMappingNotFound, err)
	}
	if !within(root, resolved) {
		return "", errx.With(ErrInvalidPath, ": %q", rest)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errx.Wrap(ErrMappingNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return "", errx.With(ErrMappingNotFound, ": %s is not a regular file", resolved)
	}
	return resolved, nil
}

// within reports whether p is strictly inside root.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func detectMIMEType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}
