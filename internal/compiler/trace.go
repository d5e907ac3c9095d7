package compiler

import (
	"context"
	"time"

	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/store"
)

// traceWriteTimeout bounds a trace write that outlives its request.
const traceWriteTimeout = 2 * time.Second

// TraceLogger records compiler decisions for audit. Failures are logged and
// swallowed; the plan never depends on a trace being written.
type TraceLogger struct {
	repo store.TraceRepo
	log  *logger.Logger
}

// NewTraceLogger creates a trace logger. A nil repo disables recording.
func NewTraceLogger(repo store.TraceRepo, log *logger.Logger) *TraceLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &TraceLogger{repo: repo, log: log}
}

// Record writes tr. It reports whether the write succeeded.
func (t *TraceLogger) Record(ctx context.Context, tr store.TraceRecord) bool {
	if t == nil || t.repo == nil {
		return false
	}
	// The trace is still written when the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), traceWriteTimeout)
	defer cancel()

	if err := t.repo.AppendTrace(ctx, tr); err != nil {
		t.log.Warn("failed to record compilation trace",
			"user_id", tr.UserID,
			"selected_concept_id", tr.SelectedConcept,
			"error", err,
		)
		return false
	}
	return true
}

// List returns a user's most recent traces.
func (t *TraceLogger) List(ctx context.Context, userID string, limit int) ([]store.TraceRecord, error) {
	if t == nil || t.repo == nil {
		return nil, nil
	}
	return t.repo.ListTraces(ctx, userID, limit)
}
