// Package air registers the built-in transforms of the air theme.
package air

import (
	"oif/internal/indicator"
	"oif/internal/table"
	"oif/internal/transformer"
	"oif/internal/transformer/builtin"
)

func init() {
	indicator.Register("air", "one", One)
	indicator.Register("air", "three", Three)
}

// Pollutants are the ShortPollName totals reported by air/one.
var Pollutants = []table.Value{"NH3 Total", "NOx Total", "SO2 Total", "VOC Total", "PM2.5 Total"}

// BaseYear is the reference year of the air/one emissions index.
const BaseYear = "1990"

// One reshapes the national emissions table into one row per pollutant and
// year, then indexes it against BaseYear. The transformed schema stage sees
// the enriched table.
func One() transformer.Chain {
	return append(Reshape(), Enrich()...)
}

// Reshape selects the pollutant totals and unpivots them into
// ShortPollName, Year and Emissions.
func Reshape() transformer.Chain {
	return transformer.Chain{
		builtin.Filter{Where: []builtin.Predicate{builtin.In("ShortPollName", Pollutants...)}},
		builtin.Drop{Columns: []string{"NFRCode", "SourceName"}},
		builtin.Clean{Column: "ShortPollName", Rules: []builtin.Rule{
			builtin.Replace(" Total", ""),
			builtin.Replace("VOC", "NMVOC"),
		}},
		builtin.Unpivot{ID: []string{"ShortPollName"}, VarName: "Year", ValueName: "Emissions"},
	}
}

// Enrich adds the per-pollutant Index against BaseYear and renames Year to
// EmissionYear.
func Enrich() transformer.Chain {
	return transformer.Chain{
		builtin.Index{Group: []string{"ShortPollName"}, Period: "Year", Base: BaseYear, Value: "Emissions", Into: "Index"},
		builtin.Rename{Columns: map[string]string{"Year": "EmissionYear"}},
	}
}

// Three keeps England's total PM2.5 concentration per year.
func Three() transformer.Chain {
	return transformer.Chain{
		builtin.Unpivot{ID: []string{"Area code", "Country"}, ValueName: "ugm-3"},
		builtin.Extract{Column: "variable", Pattern: `(\d{4})`, Into: "year"},
		builtin.Extract{Column: "variable", Pattern: `\((\S*)\)`, Into: "measure"},
		builtin.SelectNames("Area code", "Country", "year", "measure", "ugm-3"),
		builtin.Filter{Where: []builtin.Predicate{
			builtin.Eq("Country", "England"),
			builtin.Eq("measure", "total"),
		}},
	}
}
