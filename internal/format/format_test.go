package format

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"oif/internal/config"
	"oif/internal/oiferr"
	"oif/internal/table"
)

func TestApply_AirOneLayout(t *testing.T) {
	t.Parallel()

	in := table.MustNew([]string{"EmissionYear", "ShortPollName", "Index"},
		[]table.Value{"1990", "NH3", 100.0},
	)
	spec := FromConfig(config.Format{
		YearColumn:      "EmissionYear",
		ValueColumn:     "Index",
		Disaggregations: []config.Disaggregation{{Column: "ShortPollName", As: "Pollutant"}},
	})
	out, err := Apply(in, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := table.MustNew([]string{"Year", "Pollutant", "Value"}, []table.Value{"1990", "NH3", 100.0})
	if !out.Equal(want) {
		t.Fatalf("got\n%s\nwant\n%s", out, want)
	}
}

func TestApply_TwoColumnsAndOverrides(t *testing.T) {
	t.Parallel()

	in := table.MustNew([]string{"ugm-3", "Country", "year"}, []table.Value{9.4, "England", "2018"})
	out, err := Apply(in, Spec{Year: "year", Value: "ugm-3"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(out.Columns(), []string{"Year", "Value"}) {
		t.Fatalf("columns=%q", out.Columns())
	}

	out, err = Apply(in, Spec{Year: "year", YearAs: "Period", Value: "ugm-3", ValueAs: "Concentration",
		Disaggregations: []Disaggregation{{From: "Country"}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(out.Columns(), []string{"Period", "Country", "Concentration"}) {
		t.Fatalf("columns=%q", out.Columns())
	}
}

func TestApply_Errors(t *testing.T) {
	t.Parallel()

	in := table.MustNew([]string{"y", "v", "Year"}, []table.Value{"1990", 1.0, "x"})
	tests := []struct {
		name string
		spec Spec
	}{
		{"missing_year", Spec{Year: "nope", Value: "v"}},
		{"missing_value", Spec{Year: "y", Value: "nope"}},
		{"missing_disaggregation", Spec{Year: "y", Value: "v", Disaggregations: []Disaggregation{{From: "nope"}}}},
		{"duplicate_output", Spec{Year: "y", Value: "v", Disaggregations: []Disaggregation{{From: "Year"}}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := Formatter{Spec: tc.spec}.Apply(in)
			if out != nil || !errors.Is(err, oiferr.ErrSchemaMismatch) {
				t.Fatalf("out=%v err=%v", out, err)
			}
		})
	}
}

// shuffled builds a table whose columns are a permutation of year, value and
// n disaggregations, driven by perm.
func shuffled(n int, perm []int) (*table.Table, Spec) {
	names := []string{"yr", "val"}
	spec := Spec{Year: "yr", Value: "val"}
	for i := 0; i < n; i++ {
		d := "d" + strconv.Itoa(i)
		names = append(names, d)
		spec.Disaggregations = append(spec.Disaggregations, Disaggregation{From: d, To: "D" + strconv.Itoa(i)})
	}
	for i, p := range perm {
		j := p % len(names)
		k := i % len(names)
		names[j], names[k] = names[k], names[j]
	}
	row := make([]table.Value, len(names))
	for i, c := range names {
		row[i] = c + "-cell"
	}
	return table.MustNew(names, row), spec
}

func TestProperty_FormatterContract(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("year first and value last regardless of input order", prop.ForAll(
		func(n int, perm []int) bool {
			in, spec := shuffled(n, perm)
			out, err := Apply(in, spec)
			if err != nil {
				return false
			}
			cols := out.Columns()
			return len(cols) == n+2 &&
				cols[0] == DefaultYear && cols[len(cols)-1] == DefaultValue &&
				out.At(0, 0) == "yr-cell" && out.At(0, n+1) == "val-cell"
		},
		gen.IntRange(0, 5),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("formatting formatted output with the identity mapping is the identity", prop.ForAll(
		func(n int, perm []int) bool {
			in, spec := shuffled(n, perm)
			once, err := Apply(in, spec)
			if err != nil {
				return false
			}
			twice, err := Apply(once, Identity(once))
			return err == nil && twice.Equal(once)
		},
		gen.IntRange(0, 5),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
