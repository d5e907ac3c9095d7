package learning

import (
	"fmt"

	"github.com/abhisek/learnloop/internal/belief"
)

// LessonState is where a concept sits on the learner's roadmap.
type LessonState string

const (
	LessonCompleted LessonState = "completed"
	LessonCurrent   LessonState = "current"
	LessonLocked    LessonState = "locked"
	LessonFuture    LessonState = "future"
)

// LessonStates lists every state in roadmap order.
var LessonStates = []LessonState{LessonCompleted, LessonCurrent, LessonLocked, LessonFuture}

// lessonState classifies one concept. The concept the compiler would serve
// next is current even when it is mastered and due for review.
func lessonState(isCurrent bool, level belief.Level, ready bool) LessonState {
	switch {
	case isCurrent:
		return LessonCurrent
	case level == belief.LevelMastered:
		return LessonCompleted
	case !ready:
		return LessonLocked
	default:
		return LessonFuture
	}
}

// Marker is the one-character roadmap glyph for the state.
func (s LessonState) Marker() string {
	switch s {
	case LessonCompleted:
		return "✓"
	case LessonCurrent:
		return "▶"
	case LessonLocked:
		return "✗"
	case LessonFuture:
		return "·"
	}
	panic(fmt.Sprintf("learning: unknown lesson state %q", string(s)))
}
