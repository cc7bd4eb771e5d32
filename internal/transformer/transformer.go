// Package transformer defines the table-to-table step contract and the
// ordered Chain that composes steps into an indicator transform.
//
// Steps are pure: Apply never mutates its input and returns either a new
// table or an error, never both. Composition is order-sensitive; a Chain runs
// its steps exactly in slice order.
package transformer

import (
	"fmt"

	"oif/internal/table"
)

// Transformer is one reshaping or cleaning step.
type Transformer interface {
	Name() string
	Apply(in *table.Table) (*table.Table, error)
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Name implements Transformer so chains can nest.
func (c Chain) Name() string { return "chain" }

// Apply runs every step in order. The first failing step aborts the chain and
// its error is returned wrapped with the step position and name.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		next, err := t.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, t.Name(), err)
		}
		out = next
	}
	return out, nil
}

// Names lists the step names in order, for logs.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, t := range c {
		out[i] = t.Name()
	}
	return out
}

// Func adapts a plain function into a named Transformer.
type Func struct {
	StepName string
	Fn       func(*table.Table) (*table.Table, error)
}

func (f Func) Name() string                                { return f.StepName }
func (f Func) Apply(in *table.Table) (*table.Table, error) { return f.Fn(in) }
