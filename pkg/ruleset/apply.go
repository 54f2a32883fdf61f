package ruleset

import (
	"log/slog"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

// Set is the group of handles one Apply registered.
type Set struct {
	ic      *intercept.Interceptor
	handles []intercept.Handle
}

// Apply registers every rule on ic in order. If any rule fails to install,
// the rules already registered are removed and the error is returned.
func (rs *Ruleset) Apply(ic *intercept.Interceptor) (*Set, error) {
	set := &Set{ic: ic}
	for _, r := range rs.Rules {
		h, err := r.Install(ic)
		if err != nil {
			set.Remove()
			return nil, errx.With(ErrApplyRules, " %s: %w", r.Name(), err)
		}
		set.handles = append(set.handles, h)
	}
	return set, nil
}

// Remove unregisters every handle in the set. Calling it again is a no-op.
func (s *Set) Remove() {
	if s == nil {
		return
	}
	for _, h := range s.handles {
		s.ic.Remove(h)
	}
	s.handles = nil
}

// Len returns the number of handles still held by the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.handles)
}

// Handles returns a copy of the registered handles in rule order.
func (s *Set) Handles() []intercept.Handle {
	if s == nil {
		return nil
	}
	return append([]intercept.Handle(nil), s.handles...)
}

// LoadAndApply loads the rules file at path and registers it on ic.
func LoadAndApply(path string, ic *intercept.Interceptor, logger *slog.Logger) (*Set, error) {
	rs, err := Load(path, logger)
	if err != nil {
		return nil, err
	}
	return rs.Apply(ic)
}
