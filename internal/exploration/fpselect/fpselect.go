// Package fpselect implements the FPSelect multi-path best-first search:
// at each stage, the current frontier of attribute sets is expanded by one
// attribute in every possible way, the expanded sets are classified and
// scored by efficiency, and only the k most efficient become next stage's
// frontier.
package fpselect

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/tandriamil/BrFAST/internal/attribute"
	"github.com/tandriamil/BrFAST/internal/engineerr"
	"github.com/tandriamil/BrFAST/internal/exploration"
	"github.com/tandriamil/BrFAST/internal/trace"
	"github.com/tandriamil/BrFAST/internal/workerpool"
)

// Algorithm is the FPSelect best-first search over the attribute lattice.
// ExploredPaths bounds how many attribute sets survive each stage to be
// expanded further; Pruning controls whether non-improving, non-satisfying
// sets have their supersets excluded from future consideration.
type Algorithm struct {
	pool          *workerpool.Pool
	exploredPaths int
	pruning       bool
}

// New builds the algorithm. explorePaths must be at least 1.
func New(pool *workerpool.Pool, explorePaths int, pruning bool) (*Algorithm, error) {
	if explorePaths < 1 {
		return nil, engineerr.New(engineerr.InvalidParameter,
			"the number of explored paths must be positive, got %d", explorePaths)
	}
	return &Algorithm{pool: pool, exploredPaths: explorePaths, pruning: pruning}, nil
}

// Name identifies this algorithm in trace parameters.
func (a *Algorithm) Name() string {
	return "FPSelect"
}

// efficiencyEntry pairs an attribute set with the efficiency score used to
// rank it among the candidates for the next stage's frontier.
type efficiencyEntry struct {
	set        attribute.AttributeSet
	efficiency float64
}

// Search implements exploration.Algorithm.
func (a *Algorithm) Search(ctx context.Context, c *exploration.Controller) error {
	candidates := c.Candidates()
	frontier := []attribute.AttributeSet{{}}
	var satisfying []attribute.AttributeSet
	var ignoredSupersets []attribute.AttributeSet

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		toExplore := expand(candidates, frontier, satisfying, ignoredSupersets, a.pruning)
		if len(toExplore) == 0 {
			return nil
		}

		efficiencies, newSatisfying, newIgnored, err := a.exploreLevel(c, toExplore)
		if err != nil {
			return err
		}
		satisfying = append(satisfying, newSatisfying...)
		ignoredSupersets = append(ignoredSupersets, newIgnored...)

		frontier = nextFrontier(efficiencies, a.exploredPaths)
	}
	return nil
}

// exploreLevel evaluates every attribute set of one stage, classifying each
// as SATISFYING, EXPLORED (with an efficiency score), or PRUNED, and
// records a trace entry for each. The level is optionally partitioned
// across a worker pool; the shared accumulators are protected by a mutex,
// matching the controller's own reduction pattern for concurrent results.
func (a *Algorithm) exploreLevel(c *exploration.Controller, sets []attribute.AttributeSet) (map[uint64]efficiencyEntry, []attribute.AttributeSet, []attribute.AttributeSet, error) {
	efficiencies := make(map[uint64]efficiencyEntry)
	var satisfying, ignored []attribute.AttributeSet
	var mu sync.Mutex

	explore := func(chunk []attribute.AttributeSet) error {
		for _, set := range chunk {
			sensitivity, err := c.Sensitivity(set)
			if err != nil {
				return err
			}
			cost, explanation, err := c.Cost(set)
			if err != nil {
				return err
			}
			currentMinCost := c.BestCost()

			var state trace.State
			switch {
			case sensitivity <= c.Alpha():
				state = trace.StateSatisfying
				mu.Lock()
				satisfying = append(satisfying, set)
				ignored = append(ignored, set)
				mu.Unlock()
				if cost < currentMinCost {
					c.UpdateBestSolution(set, cost)
				}

			case cost < currentMinCost:
				state = trace.StateExplored
				costGain := c.MaxCost() - cost
				efficiency := costGain / sensitivity
				mu.Lock()
				efficiencies[set.Hash()] = efficiencyEntry{set: set, efficiency: efficiency}
				mu.Unlock()

			case a.pruning:
				state = trace.StatePruned
				mu.Lock()
				ignored = append(ignored, set)
				mu.Unlock()

			default:
				state = trace.StateExplored
			}

			c.RecordEntry(set, sensitivity, cost, explanation, state)
		}
		return nil
	}

	var err error
	if a.pool == nil {
		err = explore(sets)
	} else {
		err = a.pool.MapSets(sets, explore)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	for _, s := range satisfying {
		c.AddSatisfying(s)
	}
	return efficiencies, satisfying, ignored, nil
}

// expand generates every attribute set obtained from the frontier by
// adding one candidate attribute not already present, discarding any that
// is a superset of a satisfying set, or (when pruning is on) of a set whose
// supersets are to be ignored. The result is deduplicated and returned in
// a deterministic order.
func expand(candidates attribute.AttributeSet, frontier, satisfying, ignoredSupersets []attribute.AttributeSet, pruning bool) []attribute.AttributeSet {
	seen := make(map[uint64]attribute.AttributeSet)
	for _, set := range frontier {
		for _, attr := range candidates.Attributes() {
			if set.Contains(attr.ID) {
				continue
			}
			expanded, err := set.WithAttribute(attr)
			if err != nil {
				continue
			}
			if isSupersetOfAny(expanded, satisfying) {
				continue
			}
			if pruning && isSupersetOfAny(expanded, ignoredSupersets) {
				continue
			}
			seen[expanded.Hash()] = expanded
		}
	}

	out := make([]attribute.AttributeSet, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y attribute.AttributeSet) int {
		return compareIDs(x.IDs(), y.IDs())
	})
	return out
}

func isSupersetOfAny(set attribute.AttributeSet, sets []attribute.AttributeSet) bool {
	for _, s := range sets {
		if set.IsSupersetOf(s) {
			return true
		}
	}
	return false
}

// compareIDs orders two ascending id slices lexicographically, shorter
// first on a common prefix.
func compareIDs(a, b []uint32) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// nextFrontier ranks the candidates for the next stage by efficiency
// descending, ties broken by attribute id, and keeps the top
// exploredPaths of them.
func nextFrontier(efficiencies map[uint64]efficiencyEntry, exploredPaths int) []attribute.AttributeSet {
	entries := make([]efficiencyEntry, 0, len(efficiencies))
	for _, e := range efficiencies {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(x, y efficiencyEntry) int {
		if x.efficiency != y.efficiency {
			if x.efficiency > y.efficiency {
				return -1
			}
			return 1
		}
		return compareIDs(x.set.IDs(), y.set.IDs())
	})

	n := exploredPaths
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]attribute.AttributeSet, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].set
	}
	return out
}
