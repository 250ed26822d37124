// Package trace serializes an exploration run to the stable JSON schema
// external tooling reads, and verifies a trace loaded back from disk.
package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/tandriamil/BrFAST/internal/engineerr"
)

// State classifies one attribute set considered during an exploration. The
// wire encoding is fixed: EXPLORED=1, PRUNED=2, SATISFYING=3, EMPTY_NODE=4.
type State int

const (
	StateExplored  State = 1
	StatePruned    State = 2
	StateSatisfying State = 3
	StateEmptyNode State = 4
)

func (s State) valid() bool {
	switch s {
	case StateExplored, StatePruned, StateSatisfying, StateEmptyNode:
		return true
	default:
		return false
	}
}

// Entry is one appended trace record: an attribute set considered during
// the run, its measured sensitivity/cost, and its classification. Time is
// the elapsed duration since the exploration started, rendered as a string
// (e.g. "1.234s") rather than an absolute timestamp.
type Entry struct {
	ID              int                `json:"id"`
	Time            string             `json:"time"`
	Attributes      []uint32           `json:"attributes"`
	Sensitivity     float64            `json:"sensitivity"`
	UsabilityCost   float64            `json:"usability_cost"`
	CostExplanation map[string]float64 `json:"cost_explanation"`
	State           State              `json:"state"`
}

// Parameters carries the run-level configuration reported alongside a
// trace. ExploredPaths and Pruning are only set for FPSelect runs.
type Parameters struct {
	Method               string `json:"method"`
	SensitivityMeasure   string `json:"sensitivity_measure"`
	UsabilityCostMeasure string `json:"usability_cost_measure"`
	Dataset              string `json:"dataset"`
	SensitivityThreshold float64 `json:"sensitivity_threshold"`
	AnalysisEngine       string `json:"analysis_engine"`
	Multiprocessing      bool   `json:"multiprocessing"`
	FreeCores            int    `json:"free_cores"`
	ExploredPaths        *int   `json:"explored_paths,omitempty"`
	Pruning              *bool  `json:"pruning,omitempty"`
}

// Result carries the outcome of a finished exploration.
type Result struct {
	Solution             []uint32   `json:"solution"`
	SatisfyingAttributes [][]uint32 `json:"satisfying_attributes"`
	StartTime            string     `json:"start_time"`
}

// Trace is the top-level serializable aggregate of one exploration run.
type Trace struct {
	RunID       string            `json:"run_id"`
	Parameters  Parameters        `json:"parameters"`
	Attributes  map[string]string `json:"attributes"`
	Result      Result            `json:"result"`
	Exploration []Entry           `json:"exploration"`
}

// New stamps a fresh run id onto a trace being assembled for writing.
func New(params Parameters, attributes map[uint32]string) *Trace {
	attrs := make(map[string]string, len(attributes))
	for id, name := range attributes {
		attrs[fmt.Sprintf("%d", id)] = name
	}
	return &Trace{
		RunID:      uuid.NewString(),
		Parameters: params,
		Attributes: attrs,
	}
}

// Write serializes t as UTF-8 JSON to w.
func Write(w io.Writer, t *Trace) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(t); err != nil {
		return engineerr.Wrap(engineerr.TraceSchemaError, err, "writing trace")
	}
	return nil
}

// Load parses a trace previously written by Write.
func Load(r io.Reader) (*Trace, error) {
	var t Trace
	dec := json.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, engineerr.Wrap(engineerr.TraceSchemaError, err, "decoding trace")
	}
	return &t, nil
}

// Verify checks the structural invariants of a loaded trace, returning the
// path of the first offending field, or an empty string when the trace is
// well formed.
func Verify(t *Trace) string {
	if t.Parameters.Method == "" {
		return "parameters.method"
	}
	if t.Parameters.SensitivityMeasure == "" {
		return "parameters.sensitivity_measure"
	}
	if t.Parameters.UsabilityCostMeasure == "" {
		return "parameters.usability_cost_measure"
	}
	if t.Parameters.AnalysisEngine == "" {
		return "parameters.analysis_engine"
	}
	if t.Attributes == nil {
		return "attributes"
	}
	if t.Result.Solution == nil {
		return "result.solution"
	}
	if t.Result.SatisfyingAttributes == nil {
		return "result.satisfying_attributes"
	}
	if t.Result.StartTime == "" {
		return "result.start_time"
	}
	seenID := make(map[int]bool, len(t.Exploration))
	for i, entry := range t.Exploration {
		if entry.Attributes == nil {
			return fmt.Sprintf("exploration[%d].attributes", i)
		}
		if entry.CostExplanation == nil {
			return fmt.Sprintf("exploration[%d].cost_explanation", i)
		}
		if !entry.State.valid() {
			return fmt.Sprintf("exploration[%d].state", i)
		}
		if entry.ID != i {
			return fmt.Sprintf("exploration[%d].id", i)
		}
		if seenID[entry.ID] {
			return fmt.Sprintf("exploration[%d].id", i)
		}
		seenID[entry.ID] = true
	}
	return ""
}
