package compiler

import "fmt"

// Action is the recommended kind of study for a plan item.
type Action string

const (
	// ActionIntroduce marks a concept the learner has never seen.
	ActionIntroduce Action = "introduce"
	// ActionReinforce marks a concept in progress.
	ActionReinforce Action = "reinforce"
	// ActionReview marks an arrears concept: last answer wrong, not yet mastered.
	ActionReview Action = "review"
)

// Verb returns the label used in plan reasons.
func (a Action) Verb() string {
	switch a {
	case ActionIntroduce:
		return "Introduce"
	case ActionReinforce:
		return "Reinforce"
	case ActionReview:
		return "Review"
	}
	panic(fmt.Sprintf("compiler: unhandled action %q", string(a)))
}
