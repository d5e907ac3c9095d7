package content

import (
	"context"
	"errors"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/logger"
)

// FallbackSource asks primary first and serves from secondary when the
// primary fails. Cancellation is never masked.
type FallbackSource struct {
	primary   Source
	secondary Source
	log       *logger.Logger
}

// NewFallbackSource chains two sources.
func NewFallbackSource(primary, secondary Source, log *logger.Logger) *FallbackSource {
	if log == nil {
		log = logger.Nop()
	}
	return &FallbackSource{primary: primary, secondary: secondary, log: log}
}

func (f *FallbackSource) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackSource) CardFor(ctx context.Context, concept conceptgraph.Concept, level belief.Level) (*Card, error) {
	card, err := f.primary.CardFor(ctx, concept, level)
	if err == nil {
		return card, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	f.log.Warn("card source failed, falling back",
		"source", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"concept_id", concept.ID,
		"error", err,
	)
	return f.secondary.CardFor(context.WithoutCancel(ctx), concept, level)
}
