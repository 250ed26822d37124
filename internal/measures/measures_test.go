package measures

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
)

func fiveBrowserView() *dataset.View {
	return &dataset.View{
		BrowserID: []int64{1, 2, 3, 4, 5},
		TimeOfCollect: []time.Time{
			time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0),
		},
		Columns: map[string][]string{
			"user_agent":   {"Firefox", "Chrome", "Edge", "Chrome", "Edge"},
			"do_not_track": {"1", "1", "1", "1", "1"},
		},
	}
}

func TestTopKFingerprintsEvaluate(t *testing.T) {
	m := NewTopKFingerprints(fiveBrowserView(), 1)
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	s, err := m.Evaluate(attrs)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/5.0, s, 1e-9)
}

func TestMemoryInstabilityRejectsWrongDimensions(t *testing.T) {
	_, err := NewMemoryInstability(nil, nil, map[string]float64{"memory": 1, "time": 1})
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.IncorrectWeightDimensions))
}

func TestMemoryInstabilityEvaluate(t *testing.T) {
	size := map[uint32]float64{1: 10, 2: 5}
	instability := map[uint32]float64{1: 0.1, 2: 0.2}
	m, err := NewMemoryInstability(size, instability, map[string]float64{
		DimensionMemory:      2,
		DimensionInstability: 1,
	})
	require.NoError(t, err)

	attrs := attribute.MustNewAttributeSet(
		attribute.Attribute{ID: 1, Name: "a"},
		attribute.Attribute{ID: 2, Name: "b"},
	)
	total, breakdown, err := m.Evaluate(attrs)
	require.NoError(t, err)

	assert.InDelta(t, 15.0, breakdown[DimensionMemory], 1e-9)
	assert.InDelta(t, 30.0, breakdown["weighted_"+DimensionMemory], 1e-9)
	assert.InDelta(t, 0.3, breakdown[DimensionInstability], 1e-9)
	assert.InDelta(t, 0.3, breakdown["weighted_"+DimensionInstability], 1e-9)
	assert.InDelta(t, 30.3, total, 1e-9)
}

func TestMemoryInstabilityTimeOverlapsAsync(t *testing.T) {
	size := map[uint32]float64{1: 1, 2: 1}
	instability := map[uint32]float64{1: 0, 2: 0}
	collectionTime := map[uint32]CollectionTime{
		1: {AvgSeconds: 2, Async: false},
		2: {AvgSeconds: 5, Async: true},
	}
	m, err := NewMemoryInstabilityTime(size, instability, collectionTime, map[string]float64{
		DimensionMemory:      0,
		DimensionInstability: 0,
		DimensionTime:        1,
	})
	require.NoError(t, err)

	attrs := attribute.MustNewAttributeSet(
		attribute.Attribute{ID: 1, Name: "a"},
		attribute.Attribute{ID: 2, Name: "b"},
	)
	_, breakdown, err := m.Evaluate(attrs)
	require.NoError(t, err)
	// sequential (2) vs max async (5): the larger envelope wins.
	assert.InDelta(t, 5.0, breakdown[DimensionTime], 1e-9)
}

func TestLoadAverageSizeCSV(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(
		attribute.Attribute{ID: 1, Name: "user_agent"},
		attribute.Attribute{ID: 2, Name: "timezone"},
	)
	csvData := "attribute,average_size\nuser_agent,12.5\ntimezone,3\n"
	sizes, err := LoadAverageSizeCSV(strings.NewReader(csvData), candidates)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, sizes[1], 1e-9)
	assert.InDelta(t, 3.0, sizes[2], 1e-9)
}

func TestLoadAverageSizeCSVUnknownAttribute(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	csvData := "attribute,average_size\nunknown,1\n"
	_, err := LoadAverageSizeCSV(strings.NewReader(csvData), candidates)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestLoadInstabilityCSV(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(
		attribute.Attribute{ID: 1, Name: "user_agent"},
		attribute.Attribute{ID: 2, Name: "timezone"},
	)
	csvData := "attribute,proportion_of_changes\nuser_agent,0.25\ntimezone,0\n"
	instability, err := LoadInstabilityCSV(strings.NewReader(csvData), candidates)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, instability[1], 1e-9)
	assert.InDelta(t, 0.0, instability[2], 1e-9)
}

func TestLoadInstabilityCSVUnknownAttribute(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	csvData := "attribute,proportion_of_changes\nunknown,0.1\n"
	_, err := LoadInstabilityCSV(strings.NewReader(csvData), candidates)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestLoadCollectionTimeCSV(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(
		attribute.Attribute{ID: 1, Name: "user_agent"},
		attribute.Attribute{ID: 2, Name: "timezone"},
	)
	csvData := "attribute,avg_seconds,is_async\nuser_agent,2.5,false\ntimezone,5,true\n"
	collectionTime, err := LoadCollectionTimeCSV(strings.NewReader(csvData), candidates)
	require.NoError(t, err)
	assert.Equal(t, CollectionTime{AvgSeconds: 2.5, Async: false}, collectionTime[1])
	assert.Equal(t, CollectionTime{AvgSeconds: 5, Async: true}, collectionTime[2])
}

func TestLoadCollectionTimeCSVUnknownAttribute(t *testing.T) {
	candidates := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	csvData := "attribute,avg_seconds,is_async\nunknown,1,false\n"
	_, err := LoadCollectionTimeCSV(strings.NewReader(csvData), candidates)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}
