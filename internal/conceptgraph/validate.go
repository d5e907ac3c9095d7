package conceptgraph

import (
	"fmt"
	"slices"
	"strings"
)

// GraphError reports a structurally invalid concept graph. It is raised once
// at load time and is fatal for serving.
type GraphError struct {
	// Cycle is the offending cycle with the first concept repeated at the end,
	// e.g. [a b a]. Empty when the graph is acyclic.
	Cycle []string

	// Missing lists "concept -> prerequisite" references to unknown concepts.
	Missing []string

	// Problems holds every other issue found (duplicates, bad difficulty).
	Problems []string
}

func (e *GraphError) Error() string {
	var lines []string
	lines = append(lines, e.Problems...)
	for _, m := range e.Missing {
		lines = append(lines, "missing prerequisite: "+m)
	}
	if len(e.Cycle) > 0 {
		lines = append(lines, "cycle detected: "+strings.Join(e.Cycle, " -> "))
	}
	return "concept graph validation failed:\n  " + strings.Join(lines, "\n  ")
}

// validateConcepts performs all structural checks on the given concept set.
// Returns a *GraphError describing all problems found, or nil if valid.
func validateConcepts(concepts []Concept) error {
	gerr := &GraphError{}

	idSet := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		if c.ID == "" {
			gerr.Problems = append(gerr.Problems, fmt.Sprintf("concept %q has an empty ID", c.Name))
			continue
		}
		if idSet[c.ID] {
			gerr.Problems = append(gerr.Problems, fmt.Sprintf("duplicate concept ID: %q", c.ID))
		}
		idSet[c.ID] = true

		if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
			gerr.Problems = append(gerr.Problems, fmt.Sprintf("concept %q: difficulty must be in [%d, %d], got %d",
				c.ID, MinDifficulty, MaxDifficulty, c.Difficulty))
		}
	}

	for _, c := range concepts {
		for _, prereqID := range c.Prerequisites {
			if !idSet[prereqID] {
				gerr.Missing = append(gerr.Missing, fmt.Sprintf("%s -> %s", c.ID, prereqID))
			}
		}
	}

	gerr.Cycle = findCycle(concepts)

	if len(gerr.Problems) > 0 || len(gerr.Missing) > 0 || len(gerr.Cycle) > 0 {
		return gerr
	}
	return nil
}

// findCycle returns one cycle in the prerequisite relation, or nil.
// The walk visits IDs in sorted order so the reported cycle is stable.
func findCycle(concepts []Concept) []string {
	prereqs := make(map[string][]string, len(concepts))
	ids := make([]string, 0, len(concepts))
	for _, c := range concepts {
		if _, seen := prereqs[c.ID]; !seen {
			ids = append(ids, c.ID)
		}
		p := slices.Clone(c.Prerequisites)
		slices.Sort(p)
		prereqs[c.ID] = p
	}
	slices.Sort(ids)

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(ids))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range prereqs[id] {
			if _, known := prereqs[next]; !known {
				continue // reported as missing
			}
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)
				cycle = append(slices.Clone(stack[start:]), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}
