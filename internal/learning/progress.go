package learning

import (
	"cmp"
	"context"
	"slices"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
)

// ConceptProgress is one row of a progress report.
type ConceptProgress struct {
	ConceptID        string       `json:"concept_id"`
	ConceptName      string       `json:"concept_name"`
	MasteryLevel     belief.Level `json:"mastery_level"`
	MasteryScore     float64      `json:"mastery_score"`
	InteractionCount int64        `json:"interaction_count"`
	Difficulty       int          `json:"difficulty"`
	State            LessonState  `json:"state"`
}

// Progress summarizes a learner's mastery across the curriculum.
type Progress struct {
	UserID          string  `json:"user_id"`
	OverallProgress float64 `json:"overall_progress"`
	// CurrentConceptID is what the next card would teach; empty when the
	// curriculum is empty.
	CurrentConceptID string            `json:"current_concept_id"`
	Concepts         []ConceptProgress `json:"concepts"`
	TotalConcepts    int               `json:"total_concepts"`
	MasteredCount    int               `json:"mastered_count"`
}

// Progress reports mastery and roadmap state for every concept in
// topological order.
func (s *Service) Progress(ctx context.Context, userID string) (*Progress, error) {
	snap, err := s.beliefs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := s.compiler.Plan(ctx, userID, compiler.Options{Beliefs: snap, DryRun: true, TopK: 1})
	if err != nil {
		return nil, err
	}

	p := &Progress{UserID: userID, Concepts: []ConceptProgress{}, TotalConcepts: s.graph.Len()}
	if top, ok := res.Top(); ok {
		p.CurrentConceptID = top.ConceptID
	}
	var total float64
	for _, c := range s.graph.TopologicalOrder() {
		st := snap.Get(c.ID)
		level := st.Level(s.threshold)
		ready := s.graph.IsReady(c.ID, snap.Mastered, s.threshold)
		if level == belief.LevelMastered {
			p.MasteredCount++
		}
		total += st.Mastered
		p.Concepts = append(p.Concepts, ConceptProgress{
			ConceptID:        c.ID,
			ConceptName:      c.Name,
			MasteryLevel:     level,
			MasteryScore:     round(st.Mastered, 2),
			InteractionCount: st.InteractionCount,
			Difficulty:       c.Difficulty,
			State:            lessonState(c.ID == p.CurrentConceptID, level, ready),
		})
	}
	if p.TotalConcepts > 0 {
		p.OverallProgress = round(total/float64(p.TotalConcepts), 2)
	}
	return p, nil
}

// PrerequisiteStatus is the learner's standing on one prerequisite.
type PrerequisiteStatus struct {
	ConceptID string  `json:"concept_id"`
	Concept   string  `json:"concept"`
	Mastery   float64 `json:"mastery"`
	Mastered  bool    `json:"mastered"`
}

// BeliefSummary is a rounded belief triple.
type BeliefSummary struct {
	Unknown  float64 `json:"unknown"`
	Partial  float64 `json:"partial"`
	Mastered float64 `json:"mastered"`
}

// ConceptExplanation describes a learner's state on one concept.
type ConceptExplanation struct {
	ConceptID           string               `json:"concept_id"`
	ConceptName         string               `json:"concept_name"`
	Description         string               `json:"description"`
	Difficulty          int                  `json:"difficulty"`
	BeliefState         BeliefSummary        `json:"belief_state"`
	MasteryLevel        belief.Level         `json:"mastery_level"`
	InteractionCount    int64                `json:"interaction_count"`
	PrerequisitesStatus []PrerequisiteStatus `json:"prerequisites_status"`
	HasPrerequisites    bool                 `json:"has_prerequisites"`
	Ready               bool                 `json:"ready"`
	// StudyPath lists every unmastered concept, direct or transitive, that
	// must be learned first, in curriculum order.
	StudyPath []string `json:"study_path"`
}

// Explain reports the learner's belief and prerequisite standing for one
// concept.
func (s *Service) Explain(ctx context.Context, userID, conceptID string) (*ConceptExplanation, error) {
	concept, ok := s.graph.Concept(conceptID)
	if !ok {
		return nil, &NotFoundError{Resource: "concept", ID: conceptID}
	}
	snap, err := s.beliefs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := snap.Get(conceptID)
	out := &ConceptExplanation{
		ConceptID:   concept.ID,
		ConceptName: concept.Name,
		Description: concept.Description,
		Difficulty:  concept.Difficulty,
		BeliefState: BeliefSummary{
			Unknown:  round(st.Unknown, 2),
			Partial:  round(st.Partial, 2),
			Mastered: round(st.Mastered, 2),
		},
		MasteryLevel:        st.Level(s.threshold),
		InteractionCount:    st.InteractionCount,
		PrerequisitesStatus: []PrerequisiteStatus{},
		HasPrerequisites:    concept.HasPrerequisites(),
		Ready:               s.graph.IsReady(conceptID, snap.Mastered, s.threshold),
	}
	for _, id := range concept.Prerequisites {
		prereq, _ := s.graph.Concept(id)
		m := snap.Mastered(id)
		out.PrerequisitesStatus = append(out.PrerequisitesStatus, PrerequisiteStatus{
			ConceptID: id,
			Concept:   prereq.Name,
			Mastery:   round(m, 2),
			Mastered:  m >= s.threshold,
		})
	}
	out.StudyPath = s.studyPath(conceptID, snap)
	return out, nil
}

func (s *Service) studyPath(conceptID string, snap belief.Snapshot) []string {
	path := []string{}
	for _, id := range s.graph.AllPrerequisites(conceptID) {
		if snap.Mastered(id) < s.threshold {
			path = append(path, id)
		}
	}
	slices.SortFunc(path, func(a, b string) int {
		return cmp.Compare(s.graph.TopoIndex(a), s.graph.TopoIndex(b))
	})
	return path
}
