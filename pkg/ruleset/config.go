package ruleset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

// Built-in rule type names.
const (
	TypeSetHeaders = "set_headers"
	TypeRespond    = "respond"
	TypeFail       = "fail"
	TypeMap        = "map"
	TypeHostFilter = "host_filter"
)

// File is the on-disk shape of a rules file.
type File struct {
	// Include lists further rules files, as globs relative to this file.
	// Their rules follow this file's own rules.
	Include []string     `yaml:"include,omitempty"`
	Rules   []RuleConfig `yaml:"rules"`
}

// RuleConfig is one declared rule. Which fields apply depends on Type.
type RuleConfig struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`

	// Request filter, shared by set_headers, respond and fail.
	Hosts   []string `yaml:"hosts,omitempty"`
	Methods []string `yaml:"methods,omitempty"`
	// Path is a doublestar glob over the URL path, except for map rules
	// where it is the local file or directory to serve.
	Path string `yaml:"path,omitempty"`

	// set_headers
	SetHeaders    map[string]string `yaml:"set_headers,omitempty"`
	DeleteHeaders []string          `yaml:"delete_headers,omitempty"`
	SetQuery      map[string]string `yaml:"set_query,omitempty"`
	DeleteQuery   []string          `yaml:"delete_query,omitempty"`
	RewritePath   string            `yaml:"rewrite_path,omitempty"`

	// respond
	Status   int               `yaml:"status,omitempty"`
	Body     string            `yaml:"body,omitempty"`
	BodyFile string            `yaml:"body_file,omitempty"`
	MIMEType string            `yaml:"mime_type,omitempty"`
	Encoding string            `yaml:"encoding,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`

	// fail
	Message string `yaml:"message,omitempty"`

	// map
	URL string `yaml:"url,omitempty"`

	// host_filter
	AllowedHosts        []string `yaml:"allowed_hosts,omitempty"`
	BlockPrivateIPs     bool     `yaml:"block_private_ips,omitempty"`
	AllowedPrivateHosts []string `yaml:"allowed_private_hosts,omitempty"`
}

// Ruleset is an ordered list of compiled rules.
type Ruleset struct {
	Rules []Rule
}

// Load reads and compiles the rules file at path, following includes.
// Environment variables in the file are expanded before parsing.
func Load(path string, logger *slog.Logger) (*Ruleset, error) {
	l := newLoader(logger)
	if err := l.loadFile(path); err != nil {
		return nil, err
	}
	return &Ruleset{Rules: l.rules}, nil
}

// Parse compiles rules from data. Relative paths in the rules and includes
// resolve against baseDir.
func Parse(data []byte, baseDir string, logger *slog.Logger) (*Ruleset, error) {
	l := newLoader(logger)
	if err := l.load(data, baseDir, "<inline>"); err != nil {
		return nil, err
	}
	return &Ruleset{Rules: l.rules}, nil
}

// Compile builds rules from already decoded declarations.
func Compile(cfgs []RuleConfig, baseDir string, logger *slog.Logger) (*Ruleset, error) {
	l := newLoader(logger)
	if err := l.compile(cfgs, baseDir, "<config>"); err != nil {
		return nil, err
	}
	return &Ruleset{Rules: l.rules}, nil
}

type loader struct {
	logger  *slog.Logger
	visited map[string]bool
	rules   []Rule
}

func newLoader(logger *slog.Logger) *loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &loader{
		logger:  logger.With("component", "ruleset"),
		visited: make(map[string]bool),
	}
}

func (l *loader) loadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errx.Wrap(ErrLoadRules, err)
	}
	if l.visited[abs] {
		l.logger.Debug("rules file already loaded", "path", abs)
		return nil
	}
	l.visited[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		return errx.Wrap(ErrLoadRules, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return errx.Wrap(ErrLoadRules, err)
	}
	return l.load(data, filepath.Dir(abs), abs)
}

func (l *loader) load(data []byte, baseDir, source string) error {
	expanded := os.ExpandEnv(string(data))

	var file File
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return errx.With(ErrParseRules, " %s: %w", source, err)
	}

	if err := l.compile(file.Rules, baseDir, source); err != nil {
		return err
	}
	l.logger.Debug("rules loaded", "source", source, "rules", len(file.Rules))

	for _, pattern := range file.Include {
		matches, err := doublestar.FilepathGlob(resolvePath(baseDir, pattern))
		if err != nil {
			return errx.With(ErrLoadRules, " %s: include %q: %w", source, pattern, err)
		}
		if len(matches) == 0 {
			l.logger.Warn("include matched no files", "source", source, "pattern", pattern)
			continue
		}
		slices.Sort(matches)
		for _, m := range matches {
			if err := l.loadFile(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) compile(cfgs []RuleConfig, baseDir, source string) error {
	for i, cfg := range cfgs {
		typeName := strings.ToLower(strings.TrimSpace(cfg.Type))
		factory, ok := LookupFactory(typeName)
		if !ok {
			return errx.With(ErrUnknownRuleType, " %q in %s (rule %d); known types: %s",
				cfg.Type, source, i, strings.Join(RegisteredTypes(), ", "))
		}
		cfg.Type = typeName
		if strings.TrimSpace(cfg.Name) == "" {
			cfg.Name = defaultName(typeName, len(l.rules))
		}

		rule, err := factory(cfg, baseDir, l.logger.With("rule", cfg.Name))
		if err != nil {
			return errx.With(ErrInvalidRule, " %s in %s: %w", cfg.Name, source, err)
		}
		l.rules = append(l.rules, rule)
	}
	return nil
}

func defaultName(typeName string, index int) string {
	return fmt.Sprintf("%s-%d", typeName, index)
}

// resolvePath joins a relative path onto baseDir.
func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
