package ruleset

import (
	"log/slog"
	"slices"
	"sync"
)

// Factory builds a Rule from its declaration. baseDir is the directory of
// the file the rule was declared in; relative paths resolve against it. The
// logger is pre-scoped with component=ruleset and rule=<name>.
type Factory func(cfg RuleConfig, baseDir string, logger *slog.Logger) (Rule, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	Register(TypeSetHeaders, newHeaderRule)
	Register(TypeRespond, newRespondRule)
	Register(TypeFail, newFailRule)
	Register(TypeMap, newMapRule)
	Register(TypeHostFilter, newHostFilterRule)
}

// Register adds a rule factory to the global registry.
// Panics if a factory is already registered for the given type name.
func Register(typeName string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[typeName]; exists {
		panic("ruleset: duplicate factory registration for type " + typeName)
	}
	registry[typeName] = factory
}

// LookupFactory returns the factory for a rule type name, if registered.
func LookupFactory(typeName string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[typeName]
	return f, ok
}

// RegisteredTypes returns the sorted names of all registered rule types.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	slices.Sort(types)
	return types
}
