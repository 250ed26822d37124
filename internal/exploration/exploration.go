// Package exploration implements the lattice-search engine shared by the
// three attribute-selection algorithms: a controller that owns the mutable
// state of a run (the best solution found, the satisfying sets, and the
// append-only trace) and exposes it to algorithm implementations through a
// narrow set of synchronized accessors.
package exploration

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/engineerr"
	"github.com/tandriamil/BrFAST/internal/measures"
	"github.com/tandriamil/BrFAST/internal/trace"
)

// Algorithm walks the attribute lattice starting from the empty set, using
// the controller's synchronized accessors to record its progress. Search
// returns a non-nil error only for conditions the controller itself cannot
// detect (the feasibility check already covers the unreachable-threshold
// case before an algorithm's Search is ever called).
type Algorithm interface {
	Name() string
	Search(ctx context.Context, c *Controller) error
}

type bestSolution struct {
	attrs attribute.AttributeSet
	cost  float64
}

// Controller owns the mutable state of one exploration run: the trace
// (writer-owned, append-only), the satisfying-set list, and the current
// best solution. Algorithm implementations only ever touch this state
// through RecordEntry/UpdateBestSolution/AddSatisfying; they never mutate
// it directly, so the reduction after parallel work is always a simple
// append or compare-and-swap.
type Controller struct {
	sensitivity measures.SensitivityMeasure
	cost        measures.UsabilityCostMeasure
	ds          *dataset.Dataset
	candidates  attribute.AttributeSet
	alpha       float64
	algo        Algorithm
	params      trace.Parameters
	logger      *zap.Logger

	startTime time.Time
	maxCost   float64

	started atomic.Bool

	traceMu sync.RWMutex
	entries []trace.Entry

	satisfyMu  sync.Mutex
	satisfying []attribute.AttributeSet

	best atomic.Pointer[bestSolution]

	execTime atomic.Pointer[time.Duration]
}

// NewController builds a controller ready to run algo over ds's candidate
// attributes, bounded by sensitivity threshold alpha.
func NewController(sensitivity measures.SensitivityMeasure, cost measures.UsabilityCostMeasure, ds *dataset.Dataset, alpha float64, algo Algorithm, params trace.Parameters, logger *zap.Logger) *Controller {
	return &Controller{
		sensitivity: sensitivity,
		cost:        cost,
		ds:          ds,
		candidates:  ds.CandidateAttributes(),
		alpha:       alpha,
		algo:        algo,
		params:      params,
		logger:      logger,
	}
}

// Candidates returns the full candidate attribute set.
func (c *Controller) Candidates() attribute.AttributeSet {
	return c.candidates
}

// Alpha returns the sensitivity threshold.
func (c *Controller) Alpha() float64 {
	return c.alpha
}

// MaxCost returns the cost of the full candidate attribute set, computed
// during the feasibility check.
func (c *Controller) MaxCost() float64 {
	return c.maxCost
}

// Sensitivity evaluates the sensitivity measure over attrs.
func (c *Controller) Sensitivity(attrs attribute.AttributeSet) (float64, error) {
	return c.sensitivity.Evaluate(attrs)
}

// Cost evaluates the usability cost measure over attrs.
func (c *Controller) Cost(attrs attribute.AttributeSet) (float64, map[string]float64, error) {
	return c.cost.Evaluate(attrs)
}

// Logger returns the controller's logger, scoped to the running algorithm.
func (c *Controller) Logger() *zap.Logger {
	return c.logger
}

// DedupView returns the dataset's one-fingerprint-per-browser view, used by
// the greedy algorithms to compute per-attribute entropy without
// over-counting repeated visits from the same browser.
func (c *Controller) DedupView(last bool) (*dataset.View, error) {
	return c.ds.DedupOneFpPerBrowser(last)
}

// Dataframe returns the dataset's full collected view.
func (c *Controller) Dataframe() *dataset.View {
	return c.ds.Dataframe()
}

// RecordEntry appends one trace entry, assigning it the next sequential id.
// Safe for concurrent callers: every append is serialized under the trace
// write lock.
func (c *Controller) RecordEntry(attrs attribute.AttributeSet, sensitivity, cost float64, explanation map[string]float64, state trace.State) trace.Entry {
	c.traceMu.Lock()
	defer c.traceMu.Unlock()
	entry := trace.Entry{
		ID:              len(c.entries),
		Time:            time.Since(c.startTime).String(),
		Attributes:      attrs.IDs(),
		Sensitivity:     sensitivity,
		UsabilityCost:   cost,
		CostExplanation: explanation,
		State:           state,
	}
	c.entries = append(c.entries, entry)
	return entry
}

// AddSatisfying records attrs as a set that satisfies the sensitivity
// threshold.
func (c *Controller) AddSatisfying(attrs attribute.AttributeSet) {
	c.satisfyMu.Lock()
	defer c.satisfyMu.Unlock()
	c.satisfying = append(c.satisfying, attrs)
}

// UpdateBestSolution replaces the current best solution with attrs if cost
// improves on it (or no solution has been recorded yet). Reports whether
// the update took effect.
func (c *Controller) UpdateBestSolution(attrs attribute.AttributeSet, cost float64) bool {
	for {
		current := c.best.Load()
		if current != nil && cost >= current.cost {
			return false
		}
		next := &bestSolution{attrs: attrs.Clone(), cost: cost}
		if c.best.CompareAndSwap(current, next) {
			return true
		}
	}
}

// BestCost returns the cost of the best solution found so far, or +Inf if
// none has been recorded yet. Used by FPSelect to decide, mid-level,
// whether an attribute set is still worth keeping for further expansion.
func (c *Controller) BestCost() float64 {
	best := c.best.Load()
	if best == nil {
		return math.Inf(1)
	}
	return best.cost
}

// feasibilityCheck evaluates the full candidate set: if its sensitivity
// already exceeds alpha, no subset can do better (sensitivity is
// non-increasing in attribute count), so the run fails fast.
func (c *Controller) feasibilityCheck() error {
	maxCost, maxCostExplanation, err := c.cost.Evaluate(c.candidates)
	if err != nil {
		return err
	}
	c.maxCost = maxCost

	sensitivity, err := c.sensitivity.Evaluate(c.candidates)
	if err != nil {
		return err
	}

	reachable := sensitivity <= c.alpha
	state := trace.StateExplored
	if reachable {
		state = trace.StateSatisfying
		c.AddSatisfying(c.candidates)
	}
	c.RecordEntry(c.candidates, sensitivity, maxCost, maxCostExplanation, state)

	if c.logger != nil {
		c.logger.Debug("feasibility check",
			zap.Float64("sensitivity", sensitivity),
			zap.Float64("max_cost", maxCost),
			zap.Bool("reachable", reachable))
	}

	if !reachable {
		return engineerr.New(engineerr.SensitivityThresholdUnreachable,
			"sensitivity threshold %.6f is unreachable using all %d candidate attributes",
			c.alpha, c.candidates.Len())
	}
	return nil
}

// Run executes the exploration synchronously: feasibility check, then the
// algorithm's search from the empty attribute set.
func (c *Controller) Run() error {
	return c.run(context.Background())
}

func (c *Controller) run(ctx context.Context) error {
	c.startTime = time.Now()
	c.started.Store(true)

	if err := c.feasibilityCheck(); err != nil {
		return err
	}
	if err := c.algo.Search(ctx, c); err != nil {
		return err
	}
	elapsed := time.Since(c.startTime)
	c.execTime.Store(&elapsed)
	return nil
}

// checkState mirrors the original tool's post-run validation: an
// unstarted run is an error, and a started run that explored sets but
// never satisfied the threshold means the async run failed feasibility.
func (c *Controller) checkState() error {
	if !c.started.Load() {
		return engineerr.New(engineerr.ExplorationNotRun, "the exploration was not run")
	}
	c.satisfyMu.Lock()
	nSatisfying := len(c.satisfying)
	c.satisfyMu.Unlock()
	c.traceMu.RLock()
	nExplored := len(c.entries)
	c.traceMu.RUnlock()
	if nSatisfying == 0 && nExplored > 0 {
		return engineerr.New(engineerr.SensitivityThresholdUnreachable,
			"the sensitivity threshold is unreachable")
	}
	return nil
}

// GetExplored returns a prefix-consistent snapshot of the trace entries in
// the half-open range [start, end).
func (c *Controller) GetExplored(start, end int) []trace.Entry {
	c.traceMu.RLock()
	defer c.traceMu.RUnlock()
	n := len(c.entries)
	if end > n || end < 0 {
		end = n
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	out := make([]trace.Entry, end-start)
	copy(out, c.entries[start:end])
	return out
}

// GetSolution returns the best attribute set found so far.
func (c *Controller) GetSolution() (attribute.AttributeSet, error) {
	if err := c.checkState(); err != nil {
		return attribute.AttributeSet{}, err
	}
	best := c.best.Load()
	if best == nil {
		return attribute.AttributeSet{}, engineerr.New(engineerr.SensitivityThresholdUnreachable,
			"no solution was found")
	}
	return best.attrs.Clone(), nil
}

// GetSatisfying returns every attribute set that satisfies the sensitivity
// threshold, discovered so far.
func (c *Controller) GetSatisfying() ([]attribute.AttributeSet, error) {
	if err := c.checkState(); err != nil {
		return nil, err
	}
	c.satisfyMu.Lock()
	defer c.satisfyMu.Unlock()
	out := make([]attribute.AttributeSet, len(c.satisfying))
	copy(out, c.satisfying)
	return out, nil
}

// GetExecutionTime returns the run's total duration, or nil while a run is
// still in progress.
func (c *Controller) GetExecutionTime() (*time.Duration, error) {
	if err := c.checkState(); err != nil {
		return nil, err
	}
	d := c.execTime.Load()
	if d == nil {
		return nil, nil
	}
	elapsed := *d
	return &elapsed, nil
}

// BuildTrace assembles the complete serializable trace of this run.
func (c *Controller) BuildTrace() (*trace.Trace, error) {
	solution, err := c.GetSolution()
	if err != nil && !engineerr.Is(err, engineerr.SensitivityThresholdUnreachable) {
		return nil, err
	}
	satisfying, err := c.GetSatisfying()
	if err != nil {
		return nil, err
	}

	attrNames := make(map[uint32]string, c.candidates.Len())
	for _, a := range c.candidates.Attributes() {
		attrNames[a.ID] = a.Name
	}

	t := trace.New(c.params, attrNames)
	satisfyingIDs := make([][]uint32, len(satisfying))
	for i, s := range satisfying {
		satisfyingIDs[i] = s.IDs()
	}
	t.Result = trace.Result{
		Solution:             solution.IDs(),
		SatisfyingAttributes: satisfyingIDs,
		StartTime:            c.startTime.Format(time.RFC3339Nano),
	}
	t.Exploration = c.GetExplored(0, -1)
	return t, nil
}

// Handle represents an in-progress or finished asynchronous run.
type Handle struct {
	c      *Controller
	doneCh chan struct{}
	cancel context.CancelFunc
	err    atomic.Pointer[error]
}

// RunAsync launches the exploration in a background goroutine and returns
// immediately with a handle to poll or cancel it.
func (c *Controller) RunAsync(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{c: c, doneCh: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(h.doneCh)
		if err := c.run(ctx); err != nil {
			h.err.Store(&err)
		}
	}()
	return h
}

// GetExplored returns a prefix-consistent snapshot of the trace, safe to
// call while the run is still in progress.
func (h *Handle) GetExplored(start, end int) []trace.Entry {
	return h.c.GetExplored(start, end)
}

// GetSolution blocks until the run finishes, then returns its solution.
func (h *Handle) GetSolution() (attribute.AttributeSet, error) {
	<-h.doneCh
	if err := h.runErr(); err != nil {
		return attribute.AttributeSet{}, err
	}
	return h.c.GetSolution()
}

// GetSatisfying blocks until the run finishes, then returns its satisfying
// sets.
func (h *Handle) GetSatisfying() ([]attribute.AttributeSet, error) {
	<-h.doneCh
	if err := h.runErr(); err != nil {
		return nil, err
	}
	return h.c.GetSatisfying()
}

// GetExecutionTime returns nil while the run is in progress, and the total
// duration once it has finished.
func (h *Handle) GetExecutionTime() (*time.Duration, error) {
	select {
	case <-h.doneCh:
	default:
		return nil, nil
	}
	if err := h.runErr(); err != nil {
		return nil, err
	}
	return h.c.GetExecutionTime()
}

// Cancel terminates the background run. Already-recorded trace entries and
// partial state remain observable through GetExplored.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the asynchronous run finishes.
func (h *Handle) Wait() {
	<-h.doneCh
}

func (h *Handle) runErr() error {
	p := h.err.Load()
	if p == nil {
		return nil
	}
	return *p
}
