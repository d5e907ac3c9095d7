package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/content"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/observe"
	"github.com/abhisek/learnloop/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, log *logger.Logger) *Server {
	t.Helper()
	graph := conceptgraph.Default()
	mem := store.NewMemory()
	beliefs := belief.NewStore(mem)
	traces := compiler.NewTraceLogger(mem, log)
	svc := learning.NewService(learning.Deps{
		Compiler: compiler.New(graph, beliefs, mem, traces, compiler.DefaultConfig(), log),
		Engine:   observe.NewEngine(graph, beliefs, belief.DefaultParams(), log),
		Beliefs:  beliefs,
		Traces:   traces,
		Events:   mem,
		Cards:    content.NewCachedSource(content.NewStaticSource(graph), content.NewMemoryCache(), log),
		Log:      log,
	})
	t.Cleanup(svc.Wait)
	return NewServer(svc, log)
}

func do(t *testing.T, s *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthcheck", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNextCardAndSubmit(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/learning/next-card?exclude=income_basics", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	next := decode[learning.NextCard](t, rec)
	assert.Equal(t, "money_basics", next.Card.ConceptID)
	assert.Equal(t, "Money Basics", next.Explanation.ConceptName)
	assert.Equal(t, 5.0, next.Explanation.MasteryPercent)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"id", "concept_id", "content", "quiz", "source"} {
		assert.Contains(t, raw["card"], key)
	}
	for _, key := range []string{"mastery_percent", "difficulty", "concept_name", "why_selected", "readiness", "urgency", "relevance", "interaction_count", "mastery_level"} {
		assert.Contains(t, raw["explanation"], key)
	}

	rec = do(t, s, http.MethodPost, "/learning/submit-answer", "alice", learning.SubmitRequest{
		CardID:           next.Card.ID,
		AnswerIndex:      next.Card.Quiz.CorrectAnswerIndex,
		TimeSpentSeconds: 8,
		ClientEventID:    "evt-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[learning.SubmitResult](t, rec)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "money_basics", res.BeliefUpdate.ConceptID)
	assert.True(t, res.NextCardReady)

	// Same client event id again.
	rec = do(t, s, http.MethodPost, "/learning/submit-answer", "alice", learning.SubmitRequest{
		CardID:        next.Card.ID,
		AnswerIndex:   next.Card.Quiz.CorrectAnswerIndex,
		ClientEventID: "evt-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_observation", decode[ErrorEnvelope](t, rec).Error.Code)

	// Another user's progress is untouched.
	rec = do(t, s, http.MethodGet, "/learning/progress", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range decode[learning.Progress](t, rec).Concepts {
		assert.Zero(t, c.InteractionCount, c.ConceptID)
	}

	rec = do(t, s, http.MethodGet, "/learning/progress", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[learning.Progress](t, rec)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, 10, p.TotalConcepts)
	assert.NotEmpty(t, p.CurrentConceptID)
	for _, c := range p.Concepts {
		if c.ConceptID == p.CurrentConceptID {
			assert.Equal(t, learning.LessonCurrent, c.State)
		} else {
			assert.NotEqual(t, learning.LessonCurrent, c.State, c.ConceptID)
		}
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", `{"card_id":`, http.StatusBadRequest, "invalid_request"},
		{"wrong type", `{"card_id":"x","answer_index":"one"}`, http.StatusBadRequest, "invalid_request"},
		{"missing card id", learning.SubmitRequest{}, http.StatusBadRequest, "invalid_request"},
		{"unknown card", learning.SubmitRequest{CardID: "nope"}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/learning/submit-answer", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode[ErrorEnvelope](t, rec)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestExplanation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/learning/explanation", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/learning/explanation?concept_id=astrology", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/learning/explanation?concept_id=credit_score", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ex := decode[learning.ConceptExplanation](t, rec)
	assert.Equal(t, "Credit Score", ex.ConceptName)
	require.Len(t, ex.PrerequisitesStatus, 1)
	assert.Equal(t, "debt_management", ex.PrerequisitesStatus[0].ConceptID)
}

func TestCurriculumPlanAndTraces(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/curriculum/plan", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"plan", "beliefs", "compiler_log"} {
		assert.Contains(t, raw, key)
	}
	view := decode[learning.PlanView](t, rec)
	require.NotEmpty(t, view.Plan)
	assert.Equal(t, "income_basics", view.Plan[0].ConceptID)
	assert.Equal(t, compiler.ActionIntroduce, view.Plan[0].Action)
	assert.Len(t, view.Beliefs, 10)

	rec = do(t, s, http.MethodGet, "/curriculum/traces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var traces struct {
		UserID string      `json:"user_id"`
		Traces []traceView `json:"traces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &traces))
	assert.Equal(t, learning.DefaultUserID, traces.UserID)
	require.Len(t, traces.Traces, 1)
	assert.Equal(t, "income_basics", traces.Traces[0].SelectedConceptID)
	assert.ElementsMatch(t, []string{"income_basics", "money_basics"}, traces.Traces[0].CandidateConcepts)

	for _, q := range []string{"limit=0", "limit=abc", "limit=1000"} {
		rec = do(t, s, http.MethodGet, "/curriculum/traces?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCurriculumPlanContext(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/curriculum/plan?savings_rate=low", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/curriculum/plan?has_debt=perhaps", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/curriculum/plan?top_k=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/curriculum/plan?top_k=1&focus=foundations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[learning.PlanView](t, rec)
	assert.Len(t, view.Plan, 1)
	assert.Equal(t, 1.5, view.Plan[0].Factors.Relevance)
}

func TestCurriculumUpdate(t *testing.T) {
	s := newTestServer(t, nil)

	body := map[string]any{
		"beliefs": map[string]any{
			"money_basics": map[string]float64{"unknown": 0.05, "partial": 0.05, "mastered": 0.9},
		},
		"observation": map[string]string{"concept_id": "money_basics", "observation": "correct"},
	}
	rec := do(t, s, http.MethodPost, "/curriculum/update", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[learning.PlanView](t, rec)
	assert.Contains(t, view.CompilerLog[0], "Applied observation correct to money_basics")
	assert.Greater(t, view.Beliefs["money_basics"].Mastered, 0.9)

	rec = do(t, s, http.MethodGet, "/curriculum/traces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"traces":[]`)

	bad := map[string]any{
		"beliefs":     map[string]any{"money_basics": map[string]float64{"unknown": 0.9, "partial": 0.9, "mastered": 0.9}},
		"observation": map[string]string{"concept_id": "money_basics", "observation": "correct"},
	}
	rec = do(t, s, http.MethodPost, "/curriculum/update", "", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := map[string]any{"observation": map[string]string{"concept_id": "astrology", "observation": "correct"}}
	rec = do(t, s, http.MethodPost, "/curriculum/update", "", unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_concept", decode[ErrorEnvelope](t, rec).Error.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&learning.ValidationError{Field: "x", Reason: "bad"}, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("wrapped: %w", &learning.NotFoundError{Resource: "card", ID: "c"}), http.StatusNotFound, "not_found"},
		{&observe.UnknownConceptError{ConceptID: "x"}, http.StatusNotFound, "unknown_concept"},
		{&observe.ConcurrentUpdateError{UserID: "u", ConceptID: "c"}, http.StatusConflict, "concurrent_update"},
		{belief.ErrDuplicateObservation, http.StatusConflict, "duplicate_observation"},
		{&belief.InvariantViolation{Reason: "sum"}, http.StatusInternalServerError, "invariant_violation"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		{NewError(http.StatusTeapot, "teapot", nil), http.StatusTeapot, "teapot"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	assert.Equal(t, "internal error", classify(errors.New("secret path /var/db")).Error())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, logger.Wrap(zap.New(core)))

	do(t, s, http.MethodGet, "/learning/progress", "carol", nil)
	do(t, s, http.MethodGet, "/learning/explanation?concept_id=nope", "carol", nil)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "carol", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "/learning/explanation", entries[1].ContextMap()["path"])
}
