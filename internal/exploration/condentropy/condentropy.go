// Package condentropy implements the conditional-entropy exploration
// algorithm: at each step, the candidate attribute that maximizes the joint
// entropy of the current selection plus itself is added, until the
// sensitivity threshold is satisfied.
package condentropy

import (
	"context"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/exploration"
	"github.com/tandriamil/BrFAST/internal/kernels"
	"github.com/tandriamil/BrFAST/internal/trace"
	"github.com/tandriamil/BrFAST/internal/workerpool"
)

// Algorithm greedily grows a selection by always adding whichever remaining
// candidate attribute yields the highest joint entropy. Ties, and the case
// where no remaining attribute increases the joint entropy at all, are
// broken by picking the lowest attribute id.
type Algorithm struct {
	pool *workerpool.Pool // optional: nil scans candidates sequentially
}

// New builds the algorithm. Passing a nil pool scans the remaining
// candidates on a single goroutine at every step.
func New(pool *workerpool.Pool) *Algorithm {
	return &Algorithm{pool: pool}
}

// Name identifies this algorithm in trace parameters.
func (a *Algorithm) Name() string {
	return "ConditionalEntropyGreedy"
}

// Search implements exploration.Algorithm.
func (a *Algorithm) Search(ctx context.Context, c *exploration.Controller) error {
	view, err := c.DedupView(false)
	if err != nil {
		return err
	}

	current := attribute.AttributeSet{}
	sensitivity := 1.0

	for sensitivity > c.Alpha() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		remaining := remainingAttributes(c.Candidates(), current)
		if len(remaining) == 0 {
			return nil
		}

		best, err := a.bestAttribute(view, current, remaining)
		if err != nil {
			return err
		}

		current, err = current.WithAttribute(best)
		if err != nil {
			return err
		}

		sensitivity, err = c.Sensitivity(current)
		if err != nil {
			return err
		}
		cost, explanation, err := c.Cost(current)
		if err != nil {
			return err
		}

		if sensitivity <= c.Alpha() {
			c.UpdateBestSolution(current, cost)
			c.AddSatisfying(current)
			c.RecordEntry(current, sensitivity, cost, explanation, trace.StateSatisfying)
			return nil
		}
		c.RecordEntry(current, sensitivity, cost, explanation, trace.StateExplored)
	}
	return nil
}

// remainingAttributes returns the candidates not already present in
// current, ordered by ascending id.
func remainingAttributes(candidates, current attribute.AttributeSet) []attribute.Attribute {
	all := candidates.Attributes()
	out := make([]attribute.Attribute, 0, len(all))
	for _, attr := range all {
		if !current.Contains(attr.ID) {
			out = append(out, attr)
		}
	}
	return out
}

// bestAttribute finds the remaining attribute that maximizes the joint
// entropy of current plus that attribute, optionally scanning the
// candidates across a worker pool. Ties, and the no-improvement case, are
// broken by the lowest attribute id.
func (a *Algorithm) bestAttribute(view *dataset.View, current attribute.AttributeSet, remaining []attribute.Attribute) (attribute.Attribute, error) {
	jointEntropy := make(map[uint32]float64, len(remaining))
	var mu sync.Mutex

	scan := func(chunk []attribute.Attribute) error {
		for _, attr := range chunk {
			trial, err := current.WithAttribute(attr)
			if err != nil {
				return err
			}
			h, err := kernels.Entropy(view, trial)
			if err != nil {
				return err
			}
			mu.Lock()
			jointEntropy[attr.ID] = h
			mu.Unlock()
		}
		return nil
	}

	if a.pool == nil {
		if err := scan(remaining); err != nil {
			return attribute.Attribute{}, err
		}
	} else if err := a.pool.MapAttributes(remaining, scan); err != nil {
		return attribute.Attribute{}, err
	}

	byID := make(map[uint32]attribute.Attribute, len(remaining))
	for _, attr := range remaining {
		byID[attr.ID] = attr
	}

	ids := maps.Keys(jointEntropy)
	slices.Sort(ids)

	bestID := ids[0]
	bestEntropy := jointEntropy[bestID]
	for _, id := range ids[1:] {
		if jointEntropy[id] > bestEntropy {
			bestEntropy = jointEntropy[id]
			bestID = id
		}
	}
	return byID[bestID], nil
}
