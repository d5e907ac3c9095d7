package observe

import (
	"fmt"

	"github.com/abhisek/learnloop/internal/belief"
)

// UnknownConceptError is returned for observations on concepts that are not
// in the graph.
type UnknownConceptError struct {
	ConceptID string
}

func (e *UnknownConceptError) Error() string {
	return fmt.Sprintf("unknown concept %q", e.ConceptID)
}

// ConcurrentUpdateError means the belief kept changing underneath the update
// after one retry. The caller may resubmit.
type ConcurrentUpdateError struct {
	UserID    string
	ConceptID string
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("concurrent update of belief %s/%s, retry the request", e.UserID, e.ConceptID)
}

func (e *ConcurrentUpdateError) Unwrap() error { return belief.ErrConflict }

// Retryable reports that resubmitting may succeed.
func (e *ConcurrentUpdateError) Retryable() bool { return true }
