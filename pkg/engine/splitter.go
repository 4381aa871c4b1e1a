package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// executeSplitter fans execution out across the node's successors. The
// splitter owns its downstream scheduling, so the main traversal does not
// recurse past it. Each branch root becomes the branch scope for the
// subtree it spawns.
func (s *runState) executeSplitter(ctx context.Context, node *workflow.Node) (map[string]interface{}, error) {
	branches := s.graph.Adjacency[node.ID]
	strategy := splitStrategy(node)

	switch strategy {
	case workflow.SplitRandom:
		if len(branches) == 0 {
			return splitterResult(strategy, 0, nil), nil
		}
		chosen := branches[s.engine.randIntn(len(branches))]
		s.wctx.SetParallelBranches(node.ID, []string{chosen})
		if err := s.executeNode(ctx, chosen, chosen); err != nil {
			return nil, err
		}
		return splitterResult(strategy, 1, s.branchResults([]string{chosen})), nil

	case workflow.SplitParallel, workflow.SplitConditional:
		// Conditional routing is accepted but not evaluated; it behaves
		// like parallel until condition semantics are defined.
		s.wctx.SetParallelBranches(node.ID, branches)

		group, groupCtx := errgroup.WithContext(ctx)
		for _, branchID := range branches {
			branchID := branchID
			group.Go(func() error {
				return s.executeNode(groupCtx, branchID, branchID)
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
		return splitterResult(strategy, len(branches), s.branchResults(branches)), nil

	default:
		return nil, &ValidationError{NodeID: node.ID, Reason: fmt.Sprintf("unknown splitter strategy %q", strategy)}
	}
}

// executeMerge combines the results of every node with an edge into this
// one. Predecessors not yet started are executed on the spot and in-flight
// ones are awaited until their results land, so a merge never observes a
// partial fan-in, whether its inputs come from a splitter or from plain
// fan-in edges.
func (s *runState) executeMerge(ctx context.Context, node *workflow.Node) (map[string]interface{}, error) {
	predecessors := s.graph.Predecessors(node.ID)

	for _, predID := range predecessors {
		if err := s.awaitResult(ctx, predID); err != nil {
			return nil, err
		}
	}

	collected := make([]interface{}, 0, len(predecessors))
	for _, predID := range predecessors {
		if result, ok := s.wctx.Result(predID); ok {
			collected = append(collected, result)
		}
	}

	strategy := mergeStrategy(node)
	switch strategy {
	case workflow.MergeCollect:
		return map[string]interface{}{
			"type":      workflow.ResultTypeMerge,
			"strategy":  string(strategy),
			"collected": collected,
			"count":     len(collected),
		}, nil

	case workflow.MergeFirst, workflow.MergeBest:
		// "first" means first in collection order; "best" has no scoring
		// function defined and falls back to the same element.
		var first interface{}
		if len(collected) > 0 {
			first = collected[0]
		}
		return map[string]interface{}{
			"type":     workflow.ResultTypeMerge,
			"strategy": string(strategy),
			"result":   first,
			"count":    len(collected),
		}, nil

	default:
		return nil, &ValidationError{NodeID: node.ID, Reason: fmt.Sprintf("unknown merge strategy %q", strategy)}
	}
}

func splitStrategy(node *workflow.Node) workflow.SplitStrategy {
	if raw, ok := node.Config["strategy"].(string); ok && raw != "" {
		return workflow.SplitStrategy(raw)
	}
	return workflow.SplitParallel
}

func mergeStrategy(node *workflow.Node) workflow.MergeStrategy {
	if raw, ok := node.Config["strategy"].(string); ok && raw != "" {
		return workflow.MergeStrategy(raw)
	}
	return workflow.MergeCollect
}

func splitterResult(strategy workflow.SplitStrategy, branches int, results []interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":     workflow.ResultTypeSplitter,
		"strategy": string(strategy),
		"branches": branches,
		"results":  results,
	}
}

func (s *runState) branchResults(branchIDs []string) []interface{} {
	results := make([]interface{}, 0, len(branchIDs))
	for _, branchID := range branchIDs {
		if result, ok := s.wctx.Result(branchID); ok {
			results = append(results, result)
		}
	}
	return results
}
