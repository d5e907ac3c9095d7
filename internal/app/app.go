// Package app assembles the engine from configuration: storage, concept
// graph, card sources and the learning service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/config"
	"github.com/abhisek/learnloop/internal/content"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/llm"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/observe"
	"github.com/abhisek/learnloop/internal/store"
)

// Graph sources, in order of precedence.
const (
	GraphFromFile     = "file"
	GraphFromDatabase = "database"
	GraphBuiltin      = "builtin"
)

// Options configures New.
type Options struct {
	// DBPath is the SQLite DSN. Required unless Config.Store is memory.
	DBPath string
	// CurriculumPath, when set, loads the concept graph from a YAML file.
	CurriculumPath string
	Config         config.Config
	Log            *logger.Logger
}

// App holds the wired engine. Close releases storage and cache connections.
type App struct {
	Config      config.Config
	Log         *logger.Logger
	Store       store.Repos
	Graph       *conceptgraph.Graph
	GraphSource string
	Beliefs     *belief.Store
	Engine      *observe.Engine
	Compiler    *compiler.Compiler
	Traces      *compiler.TraceLogger
	Cards       *content.CachedSource
	Service     *learning.Service

	closers []func() error
}

// New opens storage, loads and validates the concept graph, and wires the
// engine. A graph that fails validation is fatal.
func New(ctx context.Context, opts Options) (*App, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	st, err := openRepos(opts)
	if err != nil {
		return nil, err
	}
	a := &App{Config: opts.Config, Log: log, Store: st}
	a.closers = append(a.closers, st.Close)

	a.Graph, a.GraphSource, err = LoadGraph(ctx, opts.CurriculumPath, st.ConceptRepo())
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("concept graph loaded", "source", a.GraphSource, "concepts", a.Graph.Len())

	cards, closeCache, err := buildCards(ctx, opts.Config, a.Graph, st.EventRepo(), log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}
	a.Cards = cards

	a.Beliefs = belief.NewStore(st.BeliefRepo())
	a.Traces = compiler.NewTraceLogger(st.TraceRepo(), log)
	a.Engine = observe.NewEngine(a.Graph, a.Beliefs, opts.Config.BeliefParams(), log)
	a.Compiler = compiler.New(a.Graph, a.Beliefs, st.EventRepo(), a.Traces, opts.Config.CompilerConfig(), log)
	a.Service = learning.NewService(learning.Deps{
		Compiler:      a.Compiler,
		Engine:        a.Engine,
		Beliefs:       a.Beliefs,
		Traces:        a.Traces,
		Events:        st.EventRepo(),
		Cards:         a.Cards,
		PregenTimeout: opts.Config.PregenTimeout,
		Log:           log,
	})
	return a, nil
}

// openRepos opens the configured storage backend.
func openRepos(opts Options) (store.Repos, error) {
	if opts.Config.Store == config.StoreMemory {
		return store.NewMemory(), nil
	}
	if opts.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// Close waits for background work and releases resources in reverse order.
func (a *App) Close() error {
	if a.Service != nil {
		a.Service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LoadGraph picks the concept graph: the YAML file at path when given, else
// the concepts stored in the database, else the built-in curriculum.
func LoadGraph(ctx context.Context, path string, repo store.ConceptRepo) (*conceptgraph.Graph, string, error) {
	if path != "" {
		g, err := conceptgraph.LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		return g, GraphFromFile, nil
	}

	concepts, err := repo.ListConcepts(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load stored concepts: %w", err)
	}
	if len(concepts) > 0 {
		g, err := conceptgraph.New(concepts)
		if err != nil {
			return nil, "", fmt.Errorf("stored curriculum: %w", err)
		}
		return g, GraphFromDatabase, nil
	}
	return conceptgraph.Default(), GraphBuiltin, nil
}

// buildCards assembles the card pipeline: LLM generation with the authored
// catalog as fallback when a provider is configured, behind a Redis or
// in-process cache.
func buildCards(ctx context.Context, cfg config.Config, graph *conceptgraph.Graph, events store.EventRepo, log *logger.Logger) (*content.CachedSource, func() error, error) {
	var source content.Source = content.NewStaticSource(graph)

	if cfg.UseLLM {
		provider, err := llm.NewProviderFromEnv(ctx, events, log)
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			log.Info("no LLM provider configured, serving authored cards")
		case err != nil:
			log.Warn("LLM provider unavailable, serving authored cards", "error", err)
		default:
			log.Info("generating cards with LLM", "model", provider.ModelID())
			source = content.NewFallbackSource(
				content.NewLLMSource(provider, content.DefaultLLMConfig()),
				source,
				log,
			)
		}
	}

	if cfg.RedisAddr == "" {
		return content.NewCachedSource(source, content.NewMemoryCache(), log), nil, nil
	}
	cache, err := content.NewRedisCache(ctx, cfg.RedisAddr, cfg.CardCacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("card cache: %w", err)
	}
	log.Info("card cache backed by redis", "addr", cfg.RedisAddr)
	return content.NewCachedSource(source, cache, log), cache.Close, nil
}
