package conceptgraph

import (
	"cmp"
	"slices"
)

// MasteryFunc reports the learner's mastered probability for a concept.
// Callers substitute the default prior for concepts with no belief row.
type MasteryFunc func(conceptID string) float64

// Graph is the validated, immutable concept DAG with precomputed indices.
// It is safe for concurrent use once built.
type Graph struct {
	concepts   []Concept
	byID       map[string]*Concept
	dependents map[string][]string
	closure    map[string][]string
	roots      []string
	topoOrder  []Concept
	topoIndex  map[string]int
}

// New validates concepts and builds the graph. It fails with a *GraphError
// when the prerequisite edges are not a DAG or reference unknown concepts.
func New(concepts []Concept) (*Graph, error) {
	if err := validateConcepts(concepts); err != nil {
		return nil, err
	}

	gr := &Graph{
		concepts:   slices.Clone(concepts),
		byID:       make(map[string]*Concept, len(concepts)),
		dependents: make(map[string][]string),
		closure:    make(map[string][]string, len(concepts)),
		topoIndex:  make(map[string]int, len(concepts)),
	}

	for i := range gr.concepts {
		c := &gr.concepts[i]
		c.Prerequisites = slices.Clone(c.Prerequisites)
		slices.Sort(c.Prerequisites)
		gr.byID[c.ID] = c
	}

	for i := range gr.concepts {
		c := &gr.concepts[i]
		if !c.HasPrerequisites() {
			gr.roots = append(gr.roots, c.ID)
		}
		for _, prereqID := range c.Prerequisites {
			gr.dependents[prereqID] = append(gr.dependents[prereqID], c.ID)
		}
	}
	slices.Sort(gr.roots)
	for id := range gr.dependents {
		slices.Sort(gr.dependents[id])
	}

	gr.topoOrder = gr.linearize()
	for i, c := range gr.topoOrder {
		gr.topoIndex[c.ID] = i
	}

	// Prerequisites precede dependents in topo order, so one pass suffices.
	for _, c := range gr.topoOrder {
		set := make(map[string]struct{})
		for _, prereqID := range c.Prerequisites {
			set[prereqID] = struct{}{}
			for _, transitive := range gr.closure[prereqID] {
				set[transitive] = struct{}{}
			}
		}
		all := make([]string, 0, len(set))
		for id := range set {
			all = append(all, id)
		}
		slices.Sort(all)
		gr.closure[c.ID] = all
	}

	return gr, nil
}

// linearize runs Kahn's algorithm, always taking the ready concept with the
// lowest difficulty and then the lowest ID.
func (g *Graph) linearize() []Concept {
	inDegree := make(map[string]int, len(g.concepts))
	var ready []string
	for _, c := range g.concepts {
		inDegree[c.ID] = len(c.Prerequisites)
		if len(c.Prerequisites) == 0 {
			ready = append(ready, c.ID)
		}
	}

	order := make([]Concept, 0, len(g.concepts))
	for len(ready) > 0 {
		slices.SortFunc(ready, g.compareIDs)
		id := ready[0]
		ready = ready[1:]
		order = append(order, *g.byID[id])

		for _, depID := range g.dependents[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}
	return order
}

// compareIDs orders concept IDs by difficulty, then lexicographically.
func (g *Graph) compareIDs(a, b string) int {
	if c := cmp.Compare(g.byID[a].Difficulty, g.byID[b].Difficulty); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// Len returns the number of concepts.
func (g *Graph) Len() int {
	return len(g.concepts)
}

// Concept returns the concept with the given ID.
func (g *Graph) Concept(id string) (Concept, bool) {
	c, ok := g.byID[id]
	if !ok {
		return Concept{}, false
	}
	return *c, true
}

// Has reports whether id names a concept in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Concepts returns all concepts in load order.
func (g *Graph) Concepts() []Concept {
	return slices.Clone(g.concepts)
}

// Roots returns the IDs of concepts without prerequisites, sorted.
func (g *Graph) Roots() []string {
	return slices.Clone(g.roots)
}

// Prerequisites returns the direct prerequisite IDs of a concept.
func (g *Graph) Prerequisites(id string) []string {
	c, ok := g.byID[id]
	if !ok {
		return nil
	}
	return slices.Clone(c.Prerequisites)
}

// AllPrerequisites returns the transitive prerequisite closure of a concept.
func (g *Graph) AllPrerequisites(id string) []string {
	return slices.Clone(g.closure[id])
}

// Dependents returns the IDs of concepts that directly require id.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// TopologicalOrder returns every concept with prerequisites before dependents.
// Ties break on lower difficulty, then lexicographic ID.
func (g *Graph) TopologicalOrder() []Concept {
	return slices.Clone(g.topoOrder)
}

// TopoIndex returns the position of id in TopologicalOrder, or -1.
func (g *Graph) TopoIndex(id string) int {
	if i, ok := g.topoIndex[id]; ok {
		return i
	}
	return -1
}

// IsReady reports whether every prerequisite of id is mastered at or above
// threshold. Concepts without prerequisites are always ready; unknown IDs never are.
func (g *Graph) IsReady(id string, mastery MasteryFunc, threshold float64) bool {
	c, ok := g.byID[id]
	if !ok {
		return false
	}
	for _, prereqID := range c.Prerequisites {
		if mastery(prereqID) < threshold {
			return false
		}
	}
	return true
}

// BlockingPrerequisites returns the direct prerequisites of id whose mastery
// is still below threshold.
func (g *Graph) BlockingPrerequisites(id string, mastery MasteryFunc, threshold float64) []string {
	c, ok := g.byID[id]
	if !ok {
		return nil
	}
	var blocking []string
	for _, prereqID := range c.Prerequisites {
		if mastery(prereqID) < threshold {
			blocking = append(blocking, prereqID)
		}
	}
	return blocking
}
