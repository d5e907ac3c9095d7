package conceptgraph

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestValidate_SeedCurriculum(t *testing.T) {
	if err := validateConcepts(SeedConcepts()); err != nil {
		t.Fatalf("seed curriculum failed validation: %v", err)
	}
}

func TestValidate_Cycle(t *testing.T) {
	concepts := []Concept{
		{ID: "a", Difficulty: 1, Prerequisites: []string{"b"}},
		{ID: "b", Difficulty: 1, Prerequisites: []string{"a"}},
	}
	_, err := New(concepts)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if !slices.Equal(gerr.Cycle, []string{"a", "b", "a"}) {
		t.Errorf("cycle = %v, want [a b a]", gerr.Cycle)
	}
	if !strings.Contains(err.Error(), "cycle detected: a -> b -> a") {
		t.Errorf("error message %q does not name the cycle", err.Error())
	}
}

func TestValidate_SelfEdge(t *testing.T) {
	_, err := New([]Concept{{ID: "a", Difficulty: 1, Prerequisites: []string{"a"}}})
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if !slices.Equal(gerr.Cycle, []string{"a", "a"}) {
		t.Errorf("cycle = %v, want [a a]", gerr.Cycle)
	}
}

func TestValidate_LongCycle(t *testing.T) {
	concepts := []Concept{
		{ID: "root", Difficulty: 1},
		{ID: "x", Difficulty: 1, Prerequisites: []string{"root", "z"}},
		{ID: "y", Difficulty: 1, Prerequisites: []string{"x"}},
		{ID: "z", Difficulty: 1, Prerequisites: []string{"y"}},
	}
	_, err := New(concepts)
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if len(gerr.Cycle) != 4 || gerr.Cycle[0] != gerr.Cycle[3] {
		t.Errorf("cycle = %v, want a closed path of three concepts", gerr.Cycle)
	}
}

func TestValidate_MissingPrerequisite(t *testing.T) {
	_, err := New([]Concept{{ID: "a", Difficulty: 1, Prerequisites: []string{"ghost"}}})
	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
	if !slices.Equal(gerr.Missing, []string{"a -> ghost"}) {
		t.Errorf("missing = %v", gerr.Missing)
	}
	if len(gerr.Cycle) != 0 {
		t.Errorf("unexpected cycle %v", gerr.Cycle)
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name     string
		concepts []Concept
		contains string
	}{
		{
			name:     "duplicate id",
			concepts: []Concept{{ID: "a", Difficulty: 1}, {ID: "a", Difficulty: 2}},
			contains: "duplicate concept ID",
		},
		{
			name:     "difficulty too low",
			concepts: []Concept{{ID: "a", Difficulty: 0}},
			contains: "difficulty must be in [1, 5]",
		},
		{
			name:     "difficulty too high",
			concepts: []Concept{{ID: "a", Difficulty: 6}},
			contains: "difficulty must be in [1, 5]",
		},
		{
			name:     "empty id",
			concepts: []Concept{{Name: "Nameless", Difficulty: 1}},
			contains: "empty ID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConcepts(tt.concepts)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}
