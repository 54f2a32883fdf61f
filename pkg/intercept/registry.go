package intercept

import (
	"cmp"
	"slices"
	"sync"
)

// Registry is the table of active rules.
//
// Mutations invalidate a cached snapshot; readers share the immutable
// snapshot, so a request in flight never observes a partial update.
type Registry struct {
	mu      sync.RWMutex
	rules   map[Handle]*rule
	nextSeq uint64
	snap    *snapshot
}

// snapshot is the ordered view a single request evaluates against.
type snapshot struct {
	preprocessors []*rule
	responders    []*rule
}

var emptySnapshot = &snapshot{}

func newRegistry() *Registry {
	return &Registry{rules: make(map[Handle]*rule)}
}

func (r *Registry) add(ru *rule) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	ru.seq = r.nextSeq
	ru.handle = newHandle()
	r.rules[ru.handle] = ru
	r.snap = nil
	return ru.handle
}

// remove deletes the rule for h. It reports the removed rule's kind and
// whether anything was removed.
func (r *Registry) remove(h Handle) (RuleKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ru, ok := r.rules[h]
	if !ok {
		return 0, false
	}
	delete(r.rules, h)
	r.snap = nil
	return ru.kind, true
}

func (r *Registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

func (r *Registry) snapshot() *snapshot {
	r.mu.RLock()
	s := r.snap
	r.mu.RUnlock()
	if s != nil {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil {
		return r.snap
	}
	if len(r.rules) == 0 {
		r.snap = emptySnapshot
		return r.snap
	}

	ordered := make([]*rule, 0, len(r.rules))
	for _, ru := range r.rules {
		ordered = append(ordered, ru)
	}
	slices.SortFunc(ordered, func(a, b *rule) int { return cmp.Compare(a.seq, b.seq) })

	s = &snapshot{}
	for _, ru := range ordered {
		if ru.kind == KindPreprocessor {
			s.preprocessors = append(s.preprocessors, ru)
		} else {
			s.responders = append(s.responders, ru)
		}
	}
	r.snap = s
	return s
}

// handles lists registered handles in registration order.
func (r *Registry) handles() []Handle {
	s := r.snapshot()
	out := make([]*rule, 0, len(s.preprocessors)+len(s.responders))
	out = append(out, s.preprocessors...)
	out = append(out, s.responders...)
	slices.SortFunc(out, func(a, b *rule) int { return cmp.Compare(a.seq, b.seq) })

	hs := make([]Handle, len(out))
	for i, ru := range out {
		hs[i] = ru.handle
	}
	return hs
}
