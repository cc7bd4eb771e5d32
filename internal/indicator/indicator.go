// Package indicator holds the registry of built-in indicator transforms and
// resolves the transform chain for a configured indicator.
//
// Built-ins register themselves from init functions, the way database/sql
// drivers do, so a binary only needs a blank import of the packages it ships:
//
//	import _ "oif/internal/indicator/air"
package indicator

import (
	"fmt"
	"sort"
	"sync"

	"oif/internal/config"
	"oif/internal/oiferr"
	"oif/internal/transformer"
)

// Factory returns a fresh chain for one indicator.
type Factory func() transformer.Chain

var (
	mu       sync.RWMutex
	builtins = map[config.Ref]Factory{}
)

// Register makes a built-in transform available under theme/indicator. It
// panics when called twice for the same pair or with a nil factory.
func Register(theme, ind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	ref := config.Ref{Theme: theme, Indicator: ind}
	if f == nil {
		panic("indicator: Register factory is nil for " + ref.String())
	}
	if _, dup := builtins[ref]; dup {
		panic("indicator: Register called twice for " + ref.String())
	}
	builtins[ref] = f
}

// Builtin returns the registered chain for theme/indicator.
func Builtin(theme, ind string) (transformer.Chain, error) {
	mu.RLock()
	f, ok := builtins[config.Ref{Theme: theme, Indicator: ind}]
	mu.RUnlock()
	if !ok {
		return nil, oiferr.ConfigLookup("builtin transform", theme+"/"+ind)
	}
	return f(), nil
}

// Registered lists the built-ins as "theme/indicator", sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(builtins))
	for ref := range builtins {
		out = append(out, ref.String())
	}
	sort.Strings(out)
	return out
}

// Chain resolves the transform for one configured indicator: the registered
// built-in when ind.Builtin is set, otherwise the declared steps. Declaring
// both is rejected. An indicator with neither gets an empty chain, which
// passes the extracted table through.
func Chain(ref config.Ref, ind config.Indicator) (transformer.Chain, error) {
	switch {
	case ind.Builtin && len(ind.Transform) > 0:
		return nil, fmt.Errorf("%s: builtin and transform are mutually exclusive", ref)
	case ind.Builtin:
		return Builtin(ref.Theme, ref.Indicator)
	}
	c, err := transformer.BuildChain(ind.Transform)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return c, nil
}
