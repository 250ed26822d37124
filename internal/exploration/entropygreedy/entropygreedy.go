// Package entropygreedy implements the entropy-based exploration
// algorithm: attributes are ranked once by their marginal entropy and
// added to the selection one at a time, in that order, until the
// sensitivity threshold is satisfied.
package entropygreedy

import (
	"context"
	"sort"
	"sync"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/dataset"
	"github.com/tandriamil/BrFAST/internal/exploration"
	"github.com/tandriamil/BrFAST/internal/kernels"
	"github.com/tandriamil/BrFAST/internal/trace"
	"github.com/tandriamil/BrFAST/internal/workerpool"
)

// Algorithm ranks candidate attributes by marginal entropy descending and
// adds them one at a time until the sensitivity threshold is met. Ties in
// entropy are broken by ascending attribute id.
type Algorithm struct {
	pool *workerpool.Pool // optional: nil runs the entropy ranking sequentially
}

// New builds the algorithm. Passing a nil pool runs the per-attribute
// entropy ranking on a single goroutine.
func New(pool *workerpool.Pool) *Algorithm {
	return &Algorithm{pool: pool}
}

// Name identifies this algorithm in trace parameters.
func (a *Algorithm) Name() string {
	return "EntropyGreedy"
}

// Search implements exploration.Algorithm.
func (a *Algorithm) Search(ctx context.Context, c *exploration.Controller) error {
	view, err := c.DedupView(false)
	if err != nil {
		return err
	}

	entropies, err := a.attributeEntropies(view, c.Candidates())
	if err != nil {
		return err
	}

	order := rankDescending(c.Candidates(), entropies)

	current := attribute.AttributeSet{}
	for _, attr := range order {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current, err = current.WithAttribute(attr)
		if err != nil {
			return err
		}

		sensitivity, err := c.Sensitivity(current)
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

// attributeEntropies computes the marginal entropy of every candidate
// attribute, taken singly, optionally partitioned across a worker pool.
func (a *Algorithm) attributeEntropies(view *dataset.View, candidates attribute.AttributeSet) (map[uint32]float64, error) {
	attrs := candidates.Attributes()
	result := make(map[uint32]float64, len(attrs))
	var mu sync.Mutex

	compute := func(chunk []attribute.Attribute) error {
		for _, attr := range chunk {
			h, err := kernels.Entropy(view, attribute.MustNewAttributeSet(attr))
			if err != nil {
				return err
			}
			mu.Lock()
			result[attr.ID] = h
			mu.Unlock()
		}
		return nil
	}

	if a.pool == nil {
		if err := compute(attrs); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := a.pool.MapAttributes(attrs, compute); err != nil {
		return nil, err
	}
	return result, nil
}

// rankDescending orders candidates by entropy descending. Candidates starts
// ordered by ascending id (AttributeSet.Attributes' contract), and sort is
// stable, so ties in entropy keep the lower id first.
func rankDescending(candidates attribute.AttributeSet, entropies map[uint32]float64) []attribute.Attribute {
	attrs := candidates.Attributes()
	sort.SliceStable(attrs, func(i, j int) bool {
		return entropies[attrs[i].ID] > entropies[attrs[j].ID]
	})
	return attrs
}
