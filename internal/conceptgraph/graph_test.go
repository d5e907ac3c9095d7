package conceptgraph

import (
	"slices"
	"testing"
)

func testConcepts() []Concept {
	return []Concept{
		{ID: "a", Name: "A", Difficulty: 1},
		{ID: "b", Name: "B", Difficulty: 2, Prerequisites: []string{"a"}},
		{ID: "c", Name: "C", Difficulty: 1, Prerequisites: []string{"a"}},
		{ID: "d", Name: "D", Difficulty: 3, Prerequisites: []string{"c", "b"}},
	}
}

func masteryMap(m map[string]float64) MasteryFunc {
	return func(id string) float64 {
		if v, ok := m[id]; ok {
			return v
		}
		return 0.05
	}
}

func TestDefault_Valid(t *testing.T) {
	g := Default()
	if g.Len() != 10 {
		t.Errorf("got %d concepts, want 10", g.Len())
	}
	if _, ok := g.Concept("budgeting_basics"); !ok {
		t.Error("budgeting_basics missing from seed curriculum")
	}
}

func TestDefault_Roots(t *testing.T) {
	got := Default().Roots()
	want := []string{"income_basics", "money_basics"}
	if !slices.Equal(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
}

func TestTopologicalOrder_PrerequisitesFirst(t *testing.T) {
	g := Default()
	order := g.TopologicalOrder()
	if len(order) != g.Len() {
		t.Fatalf("order has %d concepts, want %d", len(order), g.Len())
	}
	pos := make(map[string]int, len(order))
	for i, c := range order {
		pos[c.ID] = i
	}
	for _, c := range order {
		for _, p := range c.Prerequisites {
			if pos[p] >= pos[c.ID] {
				t.Errorf("prerequisite %q (pos %d) not before %q (pos %d)", p, pos[p], c.ID, pos[c.ID])
			}
		}
	}
}

func TestTopologicalOrder_TieBreak(t *testing.T) {
	g, err := New(testConcepts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for _, c := range g.TopologicalOrder() {
		ids = append(ids, c.ID)
	}
	// c (difficulty 1) beats b (difficulty 2) once a is taken.
	want := []string{"a", "c", "b", "d"}
	if !slices.Equal(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
	if g.TopoIndex("d") != 3 {
		t.Errorf("TopoIndex(d) = %d, want 3", g.TopoIndex("d"))
	}
	if g.TopoIndex("zzz") != -1 {
		t.Errorf("TopoIndex(zzz) = %d, want -1", g.TopoIndex("zzz"))
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	concepts := testConcepts()
	reversed := slices.Clone(concepts)
	slices.Reverse(reversed)

	g1, err := New(concepts)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := New(reversed)
	if err != nil {
		t.Fatal(err)
	}
	o1, o2 := g1.TopologicalOrder(), g2.TopologicalOrder()
	for i := range o1 {
		if o1[i].ID != o2[i].ID {
			t.Errorf("position %d: %q vs %q", i, o1[i].ID, o2[i].ID)
		}
	}
}

func TestAllPrerequisites(t *testing.T) {
	g, err := New(testConcepts())
	if err != nil {
		t.Fatal(err)
	}
	got := g.AllPrerequisites("d")
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("AllPrerequisites(d) = %v, want %v", got, want)
	}
	if len(g.AllPrerequisites("a")) != 0 {
		t.Errorf("root should have no transitive prerequisites")
	}
}

func TestDependents(t *testing.T) {
	g, err := New(testConcepts())
	if err != nil {
		t.Fatal(err)
	}
	got := g.Dependents("a")
	want := []string{"b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("Dependents(a) = %v, want %v", got, want)
	}
}

func TestIsReady(t *testing.T) {
	g, err := New(testConcepts())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		id      string
		mastery map[string]float64
		want    bool
	}{
		{"root always ready", "a", nil, true},
		{"prereq below threshold", "b", map[string]float64{"a": 0.59}, false},
		{"prereq at threshold", "b", map[string]float64{"a": 0.6}, true},
		{"one of two prereqs missing", "d", map[string]float64{"b": 0.9, "c": 0.3}, false},
		{"both prereqs mastered", "d", map[string]float64{"b": 0.9, "c": 0.7}, true},
		{"unknown concept", "zzz", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IsReady(tt.id, masteryMap(tt.mastery), 0.6); got != tt.want {
				t.Errorf("IsReady(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestBlockingPrerequisites(t *testing.T) {
	g, err := New(testConcepts())
	if err != nil {
		t.Fatal(err)
	}
	got := g.BlockingPrerequisites("d", masteryMap(map[string]float64{"b": 0.9}), 0.6)
	if !slices.Equal(got, []string{"c"}) {
		t.Errorf("BlockingPrerequisites(d) = %v, want [c]", got)
	}
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	concepts := testConcepts()
	g, err := New(concepts)
	if err != nil {
		t.Fatal(err)
	}
	concepts[3].Prerequisites[0] = "mutated"
	if got := g.Prerequisites("d"); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("Prerequisites(d) = %v after caller mutation", got)
	}
}

func TestEmptyGraph(t *testing.T) {
	g, err := New(nil)
	if err != nil {
		t.Fatalf("empty graph should be valid: %v", err)
	}
	if g.Len() != 0 || len(g.TopologicalOrder()) != 0 {
		t.Error("empty graph should have no concepts")
	}
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
concepts:
  - id: money_basics
    name: Money Basics
    description: What money is
    difficulty: 1
    estimated_time_minutes: 5
    tags: [foundations]
    card:
      title: What money does
      learning_text: Money is a medium of exchange.
      quiz_question: Which is a function of money?
      quiz_options: [Exchange, Magic, Luck, Weather]
      quiz_correct: 0
      explanation: Money is used to exchange value.
  - id: budgeting
    name: Budgeting
    difficulty: 2
    estimated_time_minutes: 10
    prerequisites: [money_basics]
`)
	concepts, err := ParseYAML(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(concepts) != 2 {
		t.Fatalf("got %d concepts, want 2", len(concepts))
	}
	if concepts[0].Card == nil || concepts[0].Card.Options[0] != "Exchange" {
		t.Errorf("authored card not decoded: %+v", concepts[0].Card)
	}
	if _, err := New(concepts); err != nil {
		t.Errorf("parsed curriculum should be valid: %v", err)
	}
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("concepts:\n  - id: a\n    difficultee: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestMarshalYAML_RoundTrip(t *testing.T) {
	data, err := MarshalYAML(SeedConcepts())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	concepts, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := New(concepts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := Default().TopologicalOrder()
	got := g.TopologicalOrder()
	if len(got) != len(want) {
		t.Fatalf("got %d concepts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("topo[%d] = %s, want %s", i, got[i].ID, want[i].ID)
		}
	}
	c, _ := g.Concept("budgeting_basics")
	if c.Card == nil || c.Card.CorrectIndex != 0 || len(c.Card.Options) != 4 {
		t.Errorf("authored card lost: %+v", c.Card)
	}
}
