package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
)

// StaticSource serves the curriculum's authored cards. Concepts without an
// authored card get a recall quiz built from concept descriptions.
type StaticSource struct {
	graph *conceptgraph.Graph
}

// NewStaticSource creates a source over the given graph.
func NewStaticSource(graph *conceptgraph.Graph) *StaticSource {
	return &StaticSource{graph: graph}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) CardFor(_ context.Context, concept conceptgraph.Concept, level belief.Level) (*Card, error) {
	var card *Card
	if a := concept.Card; a != nil {
		card = &Card{
			Title:   a.Title,
			Content: a.LearningText,
			Quiz: Quiz{
				Question:           a.Question,
				Options:            append([]string(nil), a.Options...),
				CorrectAnswerIndex: a.CorrectIndex,
				Explanation:        a.Explanation,
			},
		}
	} else {
		card = s.recallCard(concept)
	}
	card.ID = uuid.NewString()
	card.ConceptID = concept.ID
	card.Source = s.Name()
	card.Level = level

	if verr := Validate(card); verr != nil {
		return nil, verr
	}
	return card, nil
}

// recallDistractors fills recall quizzes on curricula too small to supply
// three other descriptions.
var recallDistractors = []string{
	"A topic outside this curriculum",
	"None of these statements",
	"An unrelated idea with no practical use",
}

// recallCard asks the learner to pick the concept's description among
// descriptions of neighbouring concepts. A concept with no description gets
// a true/false check instead.
func (s *StaticSource) recallCard(concept conceptgraph.Concept) *Card {
	if strings.TrimSpace(concept.Description) == "" {
		return &Card{
			Title:   concept.Name,
			Content: fmt.Sprintf("This lesson covers %s.", concept.Name),
			Quiz: Quiz{
				Question:           fmt.Sprintf("True or false: this lesson covers %s.", concept.Name),
				Options:            []string{"True", "False"},
				CorrectAnswerIndex: 0,
				Explanation:        fmt.Sprintf("This lesson is about %s.", concept.Name),
			},
		}
	}

	distractors := s.distractors(concept, 3)
	for _, d := range recallDistractors {
		if len(distractors) == 3 {
			break
		}
		if !containsFold(distractors, d) && !strings.EqualFold(d, concept.Description) {
			distractors = append(distractors, d)
		}
	}
	options := make([]string, 0, len(distractors)+1)
	options = append(options, distractors...)

	// Place the answer at a stable, concept-dependent position.
	h := fnv.New32a()
	h.Write([]byte(concept.ID))
	correct := int(h.Sum32() % uint32(len(options)+1))
	options = append(options, "")
	copy(options[correct+1:], options[correct:])
	options[correct] = concept.Description

	return &Card{
		Title:   concept.Name,
		Content: fmt.Sprintf("%s: %s.", concept.Name, concept.Description),
		Quiz: Quiz{
			Question:           fmt.Sprintf("Which statement best describes %s?", concept.Name),
			Options:            options,
			CorrectAnswerIndex: correct,
			Explanation:        fmt.Sprintf("%s is about %s.", concept.Name, lowerFirst(concept.Description)),
		},
	}
}

// distractors picks up to n other descriptions, preferring prerequisites and
// dependents, then the rest of the graph in topological order.
func (s *StaticSource) distractors(concept conceptgraph.Concept, n int) []string {
	seen := map[string]bool{concept.ID: true, "": true}
	var out []string
	add := func(id string) {
		if len(out) == n || seen[id] {
			return
		}
		seen[id] = true
		c, ok := s.graph.Concept(id)
		if !ok || c.Description == "" || c.Description == concept.Description {
			return
		}
		out = append(out, c.Description)
	}
	for _, id := range s.graph.Prerequisites(concept.ID) {
		add(id)
	}
	for _, id := range s.graph.Dependents(concept.ID) {
		add(id)
	}
	for _, c := range s.graph.TopologicalOrder() {
		add(c.ID)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
