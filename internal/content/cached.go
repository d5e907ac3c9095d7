package content

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/logger"
)

var allLevels = []belief.Level{belief.LevelUnknown, belief.LevelPartial, belief.LevelMastered}

// CachedSource memoizes cards per (concept, level) and remembers every card
// it served by id so answers can be graded after the concept entry is gone.
// Concurrent misses for the same key share one generation.
type CachedSource struct {
	inner Source
	cache Cache
	group singleflight.Group
	log   *logger.Logger
}

// NewCachedSource wraps inner with cache.
func NewCachedSource(inner Source, cache Cache, log *logger.Logger) *CachedSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{inner: inner, cache: cache, log: log}
}

func (c *CachedSource) Name() string { return c.inner.Name() }

func cardKey(conceptID string, level belief.Level) string {
	return fmt.Sprintf("card:%s:%s", conceptID, level)
}

func servedKey(cardID string) string {
	return "served:" + cardID
}

func (c *CachedSource) CardFor(ctx context.Context, concept conceptgraph.Concept, level belief.Level) (*Card, error) {
	key := cardKey(concept.ID, level)

	if card, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("card cache read failed", "key", key, "error", err)
	} else if card != nil {
		c.log.Debug("card cache hit", "concept_id", concept.ID, "level", level)
		return card, nil
	}

	// The shared generation must not die with whichever caller started it.
	v, err, shared := c.group.Do(key, func() (any, error) {
		genCtx := context.WithoutCancel(ctx)
		card, err := c.inner.CardFor(genCtx, concept, level)
		if err != nil {
			return nil, err
		}
		if err := c.remember(genCtx, key, card); err != nil {
			return nil, err
		}
		return card, nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("card cache miss", "concept_id", concept.ID, "level", level, "shared", shared)

	cp := *v.(*Card)
	return &cp, nil
}

// remember stores card under its concept key and in the served index. The
// served entry is what grading depends on, so its failure is an error.
func (c *CachedSource) remember(ctx context.Context, key string, card *Card) error {
	if err := c.cache.Set(ctx, servedKey(card.ID), card); err != nil {
		return fmt.Errorf("index served card: %w", err)
	}
	if err := c.cache.Set(ctx, key, card); err != nil {
		c.log.Warn("card cache write failed", "key", key, "error", err)
	}
	return nil
}

// Lookup returns a previously served card.
func (c *CachedSource) Lookup(ctx context.Context, cardID string) (*Card, error) {
	card, err := c.cache.Get(ctx, servedKey(cardID))
	if err != nil {
		return nil, fmt.Errorf("lookup card %s: %w", cardID, err)
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// Cached reports whether a card for (concept, level) is ready to serve.
func (c *CachedSource) Cached(ctx context.Context, conceptID string, level belief.Level) bool {
	card, err := c.cache.Get(ctx, cardKey(conceptID, level))
	return err == nil && card != nil
}

// Invalidate drops the cached cards of a concept at every level. Served
// cards stay gradable.
func (c *CachedSource) Invalidate(ctx context.Context, conceptID string) error {
	keys := make([]string, len(allLevels))
	for i, lvl := range allLevels {
		keys[i] = cardKey(conceptID, lvl)
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate %s: %w", conceptID, err)
	}
	return nil
}

// WarmRequest names a card to pre-generate.
type WarmRequest struct {
	Concept conceptgraph.Concept
	Level   belief.Level
}

// Warm generates the requested cards with at most parallel generations in
// flight. It returns the first error after all requests have finished.
func (c *CachedSource) Warm(ctx context.Context, reqs []WarmRequest, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, r := range reqs {
		g.Go(func() error {
			_, err := c.CardFor(gctx, r.Concept, r.Level)
			return err
		})
	}
	return g.Wait()
}
