package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseUseCols turns an Excel column spec into zero-based column indexes in
// spec order. It accepts a range ("B:AA"), a list ("B,D,F"), or a mix
// ("A,C:E"). An empty spec returns nil, meaning every column.
func ParseUseCols(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var out []int
	seen := map[int]bool{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("usecols %q: empty element", spec)
		}
		lo, hi, isRange := strings.Cut(part, ":")
		first, err := colNumber(lo)
		if err != nil {
			return nil, fmt.Errorf("usecols %q: %w", spec, err)
		}
		last := first
		if isRange {
			if last, err = colNumber(hi); err != nil {
				return nil, fmt.Errorf("usecols %q: %w", spec, err)
			}
			if last < first {
				return nil, fmt.Errorf("usecols %q: range %s is reversed", spec, part)
			}
		}
		for c := first; c <= last; c++ {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func colNumber(name string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(name)))
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}
