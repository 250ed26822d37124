package fpselect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
	"github.com/tandriamil/BrFAST/internal/exploration"
	"github.com/tandriamil/BrFAST/internal/trace"
)

// latticeMeasure implements both measures.SensitivityMeasure and
// measures.UsabilityCostMeasure over the canonical 3-attribute lattice:
// attributes 1, 2, 3 with hard-coded sensitivity and cost values per
// attribute set.
type latticeMeasure struct {
	sensitivity map[string]float64
	cost        map[string]float64
}

func newLatticeMeasure() *latticeMeasure {
	return &latticeMeasure{
		sensitivity: map[string]float64{
			"":      1.0,
			"1":     0.3, "2": 0.3, "3": 0.25,
			"1,2": 0.15, "1,3": 0.25, "2,3": 0.20,
			"1,2,3": 0.05,
		},
		cost: map[string]float64{
			"":    0,
			"1":   10, "2": 15, "3": 15,
			"1,2": 20, "1,3": 17, "2,3": 25,
			"1,2,3": 30,
		},
	}
}

func key(attrs attribute.AttributeSet) string {
	ids := attrs.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func (m *latticeMeasure) String() string { return "latticeMeasure" }

func (m *latticeMeasure) Evaluate(attrs attribute.AttributeSet) (float64, error) {
	v, ok := m.sensitivity[key(attrs)]
	if !ok {
		return 0, fmt.Errorf("no sensitivity fixture for %s", key(attrs))
	}
	return v, nil
}

func (m *latticeMeasure) EvaluateCost(attrs attribute.AttributeSet) (float64, map[string]float64, error) {
	v, ok := m.cost[key(attrs)]
	if !ok {
		return 0, nil, fmt.Errorf("no cost fixture for %s", key(attrs))
	}
	return v, map[string]float64{"total": v}, nil
}

type costAdapter struct{ m *latticeMeasure }

func (c costAdapter) String() string { return c.m.String() }
func (c costAdapter) Evaluate(attrs attribute.AttributeSet) (float64, map[string]float64, error) {
	return c.m.EvaluateCost(attrs)
}

func threeAttributeDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	csvData := `browser_id,time_of_collect,1,2,3
1,2021-01-01T00:00:00Z,a,x,z
2,2021-01-01T00:00:00Z,b,x,z
3,2021-01-01T00:00:00Z,c,y,z
`
	ds, err := dataset.NewDatasetFromCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	return ds
}

func findEntry(entries []trace.Entry, ids ...uint32) (trace.Entry, bool) {
	for _, e := range entries {
		if sameIDs(e.Attributes, ids) {
			return e, true
		}
	}
	return trace.Entry{}, false
}

func sameIDs(a []uint32, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint32]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

func TestFPSelectPruningOnFindsSolutionAndPrunes(t *testing.T) {
	ds := threeAttributeDataset(t)
	m := newLatticeMeasure()

	algo, err := New(nil, 2, true)
	require.NoError(t, err)
	c := exploration.NewController(m, costAdapter{m}, ds, 0.15, algo, trace.Parameters{Method: algo.Name()}, nil)

	require.NoError(t, c.Run())

	solution, err := c.GetSolution()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, solution.IDs())

	entries := c.GetExplored(0, -1)
	prunedEntry, found := findEntry(entries, 2, 3)
	require.True(t, found, "expected {2,3} to be explored")
	assert.Equal(t, trace.StatePruned, prunedEntry.State)
}

func TestFPSelectPruningOffFindsSolution(t *testing.T) {
	ds := threeAttributeDataset(t)
	m := newLatticeMeasure()

	algo, err := New(nil, 1, false)
	require.NoError(t, err)
	c := exploration.NewController(m, costAdapter{m}, ds, 0.15, algo, trace.Parameters{Method: algo.Name()}, nil)

	require.NoError(t, c.Run())

	solution, err := c.GetSolution()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, solution.IDs())
}

func TestFPSelectRejectsNonPositiveExploredPaths(t *testing.T) {
	_, err := New(nil, 0, true)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.InvalidParameter))
}

func TestFPSelectNeverRevisitsSupersetOfSatisfyingSet(t *testing.T) {
	ds := threeAttributeDataset(t)
	m := newLatticeMeasure()

	algo, err := New(nil, 2, true)
	require.NoError(t, err)
	c := exploration.NewController(m, costAdapter{m}, ds, 0.15, algo, trace.Parameters{Method: algo.Name()}, nil)
	require.NoError(t, c.Run())

	entries := c.GetExplored(0, -1)
	occurrences := 0
	for _, e := range entries {
		if sameIDs(e.Attributes, []uint32{1, 2, 3}) {
			occurrences++
		}
	}
	// The full candidate set is recorded once by the feasibility check; the
	// search itself must never revisit it since it is a superset of the
	// satisfying set {1,2}.
	assert.Equal(t, 1, occurrences)
}
