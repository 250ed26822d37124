package kernels

import (
	"math"
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
			"user_agent":    {"Firefox", "Chrome", "Edge", "Chrome", "Edge"},
			"timezone":      {"60", "120", "90", "100", "80"},
			"do_not_track":  {"1", "1", "1", "1", "1"},
		},
	}
}

func TestEntropyUserAgent(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	h, err := Entropy(v, attrs)
	require.NoError(t, err)
	assert.InDelta(t, 1.5219, h, 1e-3)
}

func TestEntropyTimezone(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 2, Name: "timezone"})
	h, err := Entropy(v, attrs)
	require.NoError(t, err)
	assert.InDelta(t, math.Log2(5), h, 1e-9)
}

func TestEntropyDoNotTrackIsZero(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 3, Name: "do_not_track"})
	h, err := Entropy(v, attrs)
	require.NoError(t, err)
	assert.InDelta(t, 0, h, 1e-9)
}

func TestEntropyEmptyAttributeSetErrors(t *testing.T) {
	v := fiveBrowserView()
	_, err := Entropy(v, attribute.AttributeSet{})
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.ValueError))
}

func TestEntropyMissingAttributeErrors(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 99, Name: "nope"})
	_, err := Entropy(v, attrs)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestTopKShareUserAgent(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	share, err := TopKShare(v, attrs, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/5.0, share, 1e-9)
}

func TestTopKShareDoNotTrack(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 3, Name: "do_not_track"})
	share, err := TopKShare(v, attrs, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, share, 1e-9)
}

func TestTopKShareZeroIsZero(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 1, Name: "user_agent"})
	share, err := TopKShare(v, attrs, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, share)
}

func TestTopKShareMissingAttributeErrors(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 99, Name: "nope"})
	_, err := TopKShare(v, attrs, 1)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestInstabilityThreeBrowsers(t *testing.T) {
	// Browser 1: changes in 1 of 2 transitions, browser 2: 2 of 2, browser 3: 0 of 2.
	v := &dataset.View{
		BrowserID: []int64{
			1, 1, 1,
			2, 2, 2,
			3, 3, 3,
		},
		TimeOfCollect: []time.Time{
			time.Unix(0, 0), time.Unix(1, 0), time.Unix(2, 0),
			time.Unix(0, 0), time.Unix(1, 0), time.Unix(2, 0),
			time.Unix(0, 0), time.Unix(1, 0), time.Unix(2, 0),
		},
		Columns: map[string][]string{
			"attr_a": {
				"a", "a", "b",
				"a", "b", "c",
				"x", "x", "x",
			},
		},
	}
	instability, err := Instability(v, attribute.Attribute{ID: 1, Name: "attr_a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, instability, 1e-9)
}

func TestInstabilitySingleObservationPerBrowserIsZero(t *testing.T) {
	// Each browser contributes exactly one row, so there is no consecutive
	// pair to compare: zero comparisons, not an error.
	v := &dataset.View{
		BrowserID:     []int64{1, 2, 3},
		TimeOfCollect: []time.Time{time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0)},
		Columns: map[string][]string{
			"attr_a": {"a", "b", "c"},
		},
	}
	instability, err := Instability(v, attribute.Attribute{ID: 1, Name: "attr_a"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, instability)
}

func TestInstabilityMissingColumn(t *testing.T) {
	v := fiveBrowserView()
	_, err := Instability(v, attribute.Attribute{ID: 99, Name: "nope"})
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestAvgSize(t *testing.T) {
	v := &dataset.View{
		BrowserID:     []int64{1, 2},
		TimeOfCollect: []time.Time{time.Unix(0, 0), time.Unix(0, 0)},
		Columns: map[string][]string{
			"ua": {"abcd", "ab"},
		},
	}
	avg, err := AvgSize(v, attribute.Attribute{ID: 1, Name: "ua"})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, avg, 1e-9)
}

func TestReportNormalizedEntropy(t *testing.T) {
	v := fiveBrowserView()
	attrs := attribute.MustNewAttributeSet(attribute.Attribute{ID: 2, Name: "timezone"})
	report, err := Report(v, attrs)
	require.NoError(t, err)
	assert.InDelta(t, math.Log2(5), report.MaximumEntropy, 1e-9)
	assert.InDelta(t, 1.0, report.NormalizedEntropy, 1e-9)
}
