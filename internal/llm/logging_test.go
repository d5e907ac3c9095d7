package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/store"
)

func TestLoggingProvider_RecordsSuccess(t *testing.T) {
	mem := store.NewMemory()
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"ok":true}`),
		Usage:   Usage{InputTokens: 12, OutputTokens: 7},
	})
	p := WithLogging(mock, "mock", mem.EventRepo(), logger.Nop())

	ctx := WithPurpose(context.Background(), PurposeCardGen)
	_, err := p.Generate(ctx, Request{
		System: "sys",
		Prompt: "teach budgeting",
		Schema: &Schema{Name: "s", Definition: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)

	events, err := mem.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "mock", ev.Provider)
	assert.Equal(t, PurposeCardGen, ev.Purpose)
	assert.True(t, ev.Success)
	assert.Equal(t, 12, ev.InputTokens)
	assert.Equal(t, 7, ev.OutputTokens)
	assert.Equal(t, `{"ok":true}`, ev.ResponseBody)
	assert.Contains(t, ev.RequestBody, "[system]\nsys")
	assert.Contains(t, ev.RequestBody, "[user]\nteach budgeting")
	assert.Contains(t, ev.RequestBody, "[schema: s]")
}

func TestLoggingProvider_RecordsFailureAndWarns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mem := store.NewMemory()
	mock := NewMockProvider(MockResponse{Err: &Error{Provider: "mock", Kind: KindRateLimited, Err: errors.New("boom")}})
	p := WithLogging(mock, "mock", mem.EventRepo(), logger.Wrap(zap.New(core)))

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)

	events, err := mem.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "mock: rate limited: boom", events[0].ErrorMessage)
	assert.Equal(t, "unknown", events[0].Purpose)

	warned := logs.FilterMessage("llm request failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, "rate limited", warned[0].ContextMap()["kind"])
}

func TestLoggingProvider_NilRepo(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, "mock", nil, nil)

	_, err := p.Generate(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}

func TestNewProvider(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider = "mock"
		p, err := NewProvider(context.Background(), cfg, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "mock", p.ModelID())
	})

	t.Run("openrouter is wrapped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = "sk-or-test"
		p, err := NewProvider(context.Background(), cfg, nil, logger.Nop())
		require.NoError(t, err)
		_, isRetry := p.(*RetryProvider)
		assert.True(t, isRetry)
		assert.Equal(t, cfg.OpenRouter.Model, p.ModelID())
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider = "openai"
		_, err := NewProvider(context.Background(), cfg, nil, nil)
		assert.Error(t, err)
	})
}
