package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"oif/internal/table"
)

const (
	nbsp = "\u00a0"
	// Latin-1 bytes of NBSP read back as UTF-8.
	mojibakeNBSP = "\u00c2\u00a0"
)

// Normalize tidies string cells: NBSP becomes a plain space, surrounding
// whitespace is trimmed and the text is put in Unicode NFC. With FoldAccents
// set, combining marks are removed as well ("Ynys Môn" -> "Ynys Mon").
//
// Columns limits the step to the named columns; empty means every column.
type Normalize struct {
	Columns     []string
	FoldAccents bool
}

func (Normalize) Name() string { return "normalize" }

func (n Normalize) Apply(in *table.Table) (*table.Table, error) {
	var idx []int
	if len(n.Columns) == 0 {
		idx = make([]int, in.Width())
		for i := range idx {
			idx[i] = i
		}
	} else {
		var err error
		if idx, err = indexes("normalize", in, n.Columns); err != nil {
			return nil, err
		}
	}

	fold := n.folder()
	return mapCells(in, idx, func(v table.Value) table.Value {
		s, ok := v.(string)
		if !ok {
			return v
		}
		return normalizeString(s, fold)
	})
}

// folder returns the NFD -> strip marks -> NFC chain, or plain NFC.
func (n Normalize) folder() transform.Transformer {
	if n.FoldAccents {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	}
	return norm.NFC
}

func normalizeString(s string, t transform.Transformer) string {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, mojibakeNBSP, " "), nbsp, " "))
	if out, _, err := transform.String(t, s); err == nil {
		return out
	}
	return s
}
