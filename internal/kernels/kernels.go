// Package kernels implements the statistical primitives the sensitivity and
// usability-cost measures are built from: fingerprint entropy, top-k
// fingerprint share, attribute instability, and average attribute size.
// Every kernel coerces missing values to the literal string "missing"
// before grouping, so two rows that are both missing an attribute are
// treated as sharing a value rather than as distinct.
package kernels

import (
	"math"
	"sort"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
)

const missingValue = "missing"

// fingerprintOf builds the joint string key of a row across the given
// attribute names, the same role pandas' astype('str') + groupby plays
// before counting distinct fingerprints. Every name must already be known
// to resolve to a column of view; columnsOf checks that up front.
func fingerprintOf(cols [][]string, row int) string {
	key := ""
	for i, col := range cols {
		if i > 0 {
			key += "\x1f" // unit separator, never appears in collected values
		}
		if row < len(col) && col[row] != "" {
			key += col[row]
		} else {
			key += missingValue
		}
	}
	return key
}

// columnsOf resolves each attribute name to its column in view, failing
// with KeyNotFound on the first name absent from the view rather than
// silently treating every row of that attribute as missing.
func columnsOf(view *dataset.View, names []string) ([][]string, error) {
	cols := make([][]string, len(names))
	for i, name := range names {
		col := view.Column(name)
		if col == nil {
			return nil, engineerr.New(engineerr.KeyNotFound, "no column named %q in the view", name)
		}
		cols[i] = col
	}
	return cols, nil
}

// valueCounts returns the distinct fingerprint proportions over view,
// projected on names, in first-occurrence order. First-occurrence order is
// the stable tie-break TopKShare relies on when two fingerprints share a
// proportion.
func valueCounts(view *dataset.View, names []string) ([]string, []float64, error) {
	cols, err := columnsOf(view, names)
	if err != nil {
		return nil, nil, err
	}
	n := view.Len()
	counts := make(map[string]int)
	order := make([]string, 0)
	for row := 0; row < n; row++ {
		key := fingerprintOf(cols, row)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	proportions := make([]float64, len(order))
	for i, key := range order {
		proportions[i] = float64(counts[key]) / float64(n)
	}
	return order, proportions, nil
}

// Entropy computes the Shannon entropy, base 2, of the fingerprints of view
// projected on attrs. Both an empty attribute set and an empty view are
// errors: there is nothing to compute an entropy over.
func Entropy(view *dataset.View, attrs attribute.AttributeSet) (float64, error) {
	if attrs.Len() == 0 || view.Len() == 0 {
		return 0, engineerr.New(engineerr.ValueError,
			"cannot compute the entropy of an empty dataset or an empty attribute set")
	}
	_, proportions, err := valueCounts(view, attrs.Names())
	if err != nil {
		return 0, err
	}
	return shannonEntropy(proportions), nil
}

func shannonEntropy(proportions []float64) float64 {
	var h float64
	for _, p := range proportions {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return h
}

// EntropyReport bundles the raw entropy, the maximum attainable entropy
// given the number of browsers, and their ratio — the normalized entropy.
type EntropyReport struct {
	Entropy           float64
	MaximumEntropy    float64
	NormalizedEntropy float64
}

// Report computes entropy alongside its normalized variants, a diagnostic
// surfaced by the CLI but not part of the exploration trace.
func Report(view *dataset.View, attrs attribute.AttributeSet) (EntropyReport, error) {
	h, err := Entropy(view, attrs)
	if err != nil {
		return EntropyReport{}, err
	}
	maxEntropy := math.Log2(float64(view.Len()))
	return EntropyReport{
		Entropy:           h,
		MaximumEntropy:    maxEntropy,
		NormalizedEntropy: h / maxEntropy,
	}, nil
}

// TopKShare returns the proportion of rows of view whose fingerprint
// (projected on attrs) is among the k most shared fingerprints. Ties on
// proportion are broken by first-occurrence order within view, mirroring a
// stable descending sort.
func TopKShare(view *dataset.View, attrs attribute.AttributeSet, k int) (float64, error) {
	if attrs.Len() == 0 || view.Len() == 0 {
		return 0, engineerr.New(engineerr.ValueError,
			"cannot compute the top-k share of an empty dataset or an empty attribute set")
	}
	keys, proportions, err := valueCounts(view, attrs.Names())
	if err != nil {
		return 0, err
	}

	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return proportions[idx[i]] > proportions[idx[j]]
	})

	if k > len(idx) {
		k = len(idx)
	}
	var total float64
	for _, i := range idx[:k] {
		total += proportions[i]
	}
	return total, nil
}

// Instability computes the proportion of value changes between
// consecutive, time-ordered fingerprints of the same browser, for a single
// attribute: changes over the number of comparisons made.
func Instability(view *dataset.View, attr attribute.Attribute) (float64, error) {
	byBrowser := make(map[int64][]int)
	for i := 0; i < view.Len(); i++ {
		b := view.BrowserID[i]
		byBrowser[b] = append(byBrowser[b], i)
	}

	col := view.Column(attr.Name)
	if col == nil {
		return 0, engineerr.New(engineerr.KeyNotFound, "no column named %q in the view", attr.Name)
	}

	var comparisons, changes int
	for _, rows := range byBrowser {
		sort.Slice(rows, func(i, j int) bool {
			return view.TimeOfCollect[rows[i]].Before(view.TimeOfCollect[rows[j]])
		})
		for i := 0; i+1 < len(rows); i++ {
			comparisons++
			if col[rows[i]] != col[rows[i+1]] {
				changes++
			}
		}
	}
	if comparisons == 0 {
		return 0, nil
	}
	return float64(changes) / float64(comparisons), nil
}

// AvgSize computes the average serialized length, in characters, of the
// values a single attribute takes across every row of view.
func AvgSize(view *dataset.View, attr attribute.Attribute) (float64, error) {
	col := view.Column(attr.Name)
	if col == nil {
		return 0, engineerr.New(engineerr.KeyNotFound, "no column named %q in the view", attr.Name)
	}
	if len(col) == 0 {
		return 0, engineerr.New(engineerr.ValueError, "cannot average the size of an empty column %q", attr.Name)
	}
	var total int
	for _, v := range col {
		total += len([]rune(v))
	}
	return float64(total) / float64(len(col)), nil
}
