// Package measures defines the sensitivity and usability-cost measures the
// exploration algorithms optimize against, and the concrete
// implementations used throughout this engine.
package measures

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
	"github.com/tandriamil/BrFAST/internal/kernels"
)

// SensitivityMeasure quantifies how exposed a user population is to
// attacker impersonation given an attribute set. It must be monotonically
// non-increasing as attributes are added: for every A subset of B,
// Evaluate(A) >= Evaluate(B).
type SensitivityMeasure interface {
	Evaluate(attrs attribute.AttributeSet) (float64, error)
	String() string
}

// UsabilityCostMeasure quantifies the usability burden of collecting an
// attribute set. It must be strictly increasing as attributes are added.
// Evaluate returns the total cost and a breakdown of its components, keyed
// by cost dimension name.
type UsabilityCostMeasure interface {
	Evaluate(attrs attribute.AttributeSet) (total float64, breakdown map[string]float64, err error)
	String() string
}

// TopKFingerprints is the canonical sensitivity measure: the proportion of
// browsers sharing one of the k most common fingerprints, evaluated over a
// deduplicated (one fingerprint per browser) view.
type TopKFingerprints struct {
	view *dataset.View
	k    int
}

// NewTopKFingerprints builds a TopKFingerprints measure over view, which
// should already be deduplicated to one fingerprint per browser.
func NewTopKFingerprints(view *dataset.View, k int) *TopKFingerprints {
	return &TopKFingerprints{view: view, k: k}
}

// String renders a human-readable label for this measure, used in trace
// parameters.
func (m *TopKFingerprints) String() string {
	return fmt.Sprintf("TopKFingerprints(k=%d)", m.k)
}

// Evaluate returns the proportion of browsers sharing the k most common
// fingerprints under attrs.
func (m *TopKFingerprints) Evaluate(attrs attribute.AttributeSet) (float64, error) {
	return kernels.TopKShare(m.view, attrs, m.k)
}

// Cost dimension labels, matching the weight-map keys cost measures expect.
const (
	DimensionMemory      = "memory"
	DimensionInstability = "instability"
	DimensionTime        = "time"
)

// MemoryInstability is a usability cost combining per-attribute average
// size and instability, each scaled by a configured weight.
type MemoryInstability struct {
	size        map[uint32]float64
	instability map[uint32]float64
	weights     map[string]float64
}

var memoryInstabilityDimensions = map[string]struct{}{
	DimensionMemory:      {},
	DimensionInstability: {},
}

// NewMemoryInstability validates that weights carries exactly the memory
// and instability dimensions before constructing the measure.
func NewMemoryInstability(size, instability map[uint32]float64, weights map[string]float64) (*MemoryInstability, error) {
	if err := checkDimensions(weights, memoryInstabilityDimensions); err != nil {
		return nil, err
	}
	return &MemoryInstability{size: size, instability: instability, weights: weights}, nil
}

func checkDimensions(weights map[string]float64, expected map[string]struct{}) error {
	if len(weights) != len(expected) {
		return engineerr.New(engineerr.IncorrectWeightDimensions,
			"weight map has %d dimensions, expected %d", len(weights), len(expected))
	}
	for dim := range weights {
		if _, ok := expected[dim]; !ok {
			return engineerr.New(engineerr.IncorrectWeightDimensions,
				"unexpected weight dimension %q", dim)
		}
	}
	return nil
}

// String renders a human-readable label for this measure.
func (m *MemoryInstability) String() string {
	return fmt.Sprintf("MemoryInstability(%v)", m.weights)
}

// Evaluate returns the total weighted cost of attrs and a breakdown
// carrying both the raw and weighted values per dimension.
func (m *MemoryInstability) Evaluate(attrs attribute.AttributeSet) (float64, map[string]float64, error) {
	memoryCost, weightedMemory, err := m.memoryCost(attrs)
	if err != nil {
		return 0, nil, err
	}
	instabilityCost, weightedInstability, err := m.instabilityCost(attrs)
	if err != nil {
		return 0, nil, err
	}
	total := weightedMemory + weightedInstability
	breakdown := map[string]float64{
		DimensionMemory:                    memoryCost,
		"weighted_" + DimensionMemory:      weightedMemory,
		DimensionInstability:               instabilityCost,
		"weighted_" + DimensionInstability: weightedInstability,
	}
	return total, breakdown, nil
}

func (m *MemoryInstability) memoryCost(attrs attribute.AttributeSet) (float64, float64, error) {
	var total float64
	for _, a := range attrs.Attributes() {
		v, ok := m.size[a.ID]
		if !ok {
			return 0, 0, engineerr.New(engineerr.KeyNotFound, "no average size recorded for attribute %q", a.Name)
		}
		total += v
	}
	return total, total * m.weights[DimensionMemory], nil
}

func (m *MemoryInstability) instabilityCost(attrs attribute.AttributeSet) (float64, float64, error) {
	var total float64
	for _, a := range attrs.Attributes() {
		v, ok := m.instability[a.ID]
		if !ok {
			return 0, 0, engineerr.New(engineerr.KeyNotFound, "no instability recorded for attribute %q", a.Name)
		}
		total += v
	}
	return total, total * m.weights[DimensionInstability], nil
}

// CollectionTime is the average collection time of an attribute and
// whether it is collected asynchronously (overlapping with other async
// attributes) or sequentially (additive with other sequential attributes).
type CollectionTime struct {
	AvgSeconds float64
	Async      bool
}

// MemoryInstabilityTime extends MemoryInstability with a collection-time
// dimension: sequential attribute times add, asynchronous attribute times
// overlap, and the effective time cost is the larger of the two envelopes.
type MemoryInstabilityTime struct {
	*MemoryInstability
	time map[uint32]CollectionTime
}

var memoryInstabilityTimeDimensions = map[string]struct{}{
	DimensionMemory:      {},
	DimensionInstability: {},
	DimensionTime:        {},
}

// NewMemoryInstabilityTime validates that weights carries exactly the
// memory, instability, and time dimensions before constructing the measure.
func NewMemoryInstabilityTime(size, instability map[uint32]float64, collectionTime map[uint32]CollectionTime, weights map[string]float64) (*MemoryInstabilityTime, error) {
	if err := checkDimensions(weights, memoryInstabilityTimeDimensions); err != nil {
		return nil, err
	}
	base := &MemoryInstability{size: size, instability: instability, weights: weights}
	return &MemoryInstabilityTime{MemoryInstability: base, time: collectionTime}, nil
}

// String renders a human-readable label for this measure.
func (m *MemoryInstabilityTime) String() string {
	return fmt.Sprintf("MemoryInstabilityTime(%v)", m.weights)
}

// Evaluate returns the total weighted cost of attrs, including the
// collection-time dimension, and its breakdown.
func (m *MemoryInstabilityTime) Evaluate(attrs attribute.AttributeSet) (float64, map[string]float64, error) {
	memoryCost, weightedMemory, err := m.memoryCost(attrs)
	if err != nil {
		return 0, nil, err
	}
	instabilityCost, weightedInstability, err := m.instabilityCost(attrs)
	if err != nil {
		return 0, nil, err
	}
	timeCost, weightedTime, err := m.timeCost(attrs)
	if err != nil {
		return 0, nil, err
	}
	total := weightedMemory + weightedInstability + weightedTime
	breakdown := map[string]float64{
		DimensionMemory:                    memoryCost,
		"weighted_" + DimensionMemory:      weightedMemory,
		DimensionInstability:               instabilityCost,
		"weighted_" + DimensionInstability: weightedInstability,
		DimensionTime:                      timeCost,
		"weighted_" + DimensionTime:        weightedTime,
	}
	return total, breakdown, nil
}

func (m *MemoryInstabilityTime) timeCost(attrs attribute.AttributeSet) (float64, float64, error) {
	var sequential, maxAsync float64
	for _, a := range attrs.Attributes() {
		ct, ok := m.time[a.ID]
		if !ok {
			return 0, 0, engineerr.New(engineerr.KeyNotFound, "no collection time recorded for attribute %q", a.Name)
		}
		if ct.Async {
			if ct.AvgSeconds > maxAsync {
				maxAsync = ct.AvgSeconds
			}
		} else {
			sequential += ct.AvgSeconds
		}
	}
	cost := sequential
	if maxAsync > cost {
		cost = maxAsync
	}
	return cost, cost * m.weights[DimensionTime], nil
}

// LoadAverageSizeCSV reads a two-column (attribute,average_size) CSV into a
// map keyed by attribute id, resolving names through candidates.
func LoadAverageSizeCSV(r io.Reader, candidates attribute.AttributeSet) (map[uint32]float64, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]float64, len(rows))
	for _, row := range rows {
		a, err := candidates.ByName(row[0])
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.ValueError, err, "parsing average size for %q", row[0])
		}
		out[a.ID] = v
	}
	return out, nil
}

// LoadInstabilityCSV reads a two-column (attribute,proportion_of_changes)
// CSV into a map keyed by attribute id.
func LoadInstabilityCSV(r io.Reader, candidates attribute.AttributeSet) (map[uint32]float64, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]float64, len(rows))
	for _, row := range rows {
		a, err := candidates.ByName(row[0])
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.ValueError, err, "parsing instability for %q", row[0])
		}
		out[a.ID] = v
	}
	return out, nil
}

// LoadCollectionTimeCSV reads a three-column (attribute,avg_seconds,is_async)
// CSV into a map keyed by attribute id.
func LoadCollectionTimeCSV(r io.Reader, candidates attribute.AttributeSet) (map[uint32]CollectionTime, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]CollectionTime, len(rows))
	for _, row := range rows {
		a, err := candidates.ByName(row[0])
		if err != nil {
			return nil, err
		}
		seconds, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.ValueError, err, "parsing collection time for %q", row[0])
		}
		isAsync, err := strconv.ParseBool(row[2])
		if err != nil {
			return nil, engineerr.Wrap(engineerr.ValueError, err, "parsing async flag for %q", row[0])
		}
		out[a.ID] = CollectionTime{AvgSeconds: seconds, Async: isAsync}
	}
	return out, nil
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, engineerr.Wrap(engineerr.ValueError, err, "reading csv header")
	}
	_ = header // the header names are descriptive only, columns are positional
	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, engineerr.Wrap(engineerr.ValueError, err, "reading csv row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
