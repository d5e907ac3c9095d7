package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/logger"
)

const maxTraceLimit = 200

// LearningHandler serves the /learning endpoints.
type LearningHandler struct {
	svc *learning.Service
	log *logger.Logger
}

func NewLearningHandler(svc *learning.Service, log *logger.Logger) *LearningHandler {
	return &LearningHandler{svc: svc, log: log}
}

// NextCard handles GET /learning/next-card?exclude=a,b.
func (h *LearningHandler) NextCard(c *gin.Context) {
	lctx, err := learnerContext(c)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	next, err := h.svc.NextCard(c.Request.Context(), userID(c), splitList(c.Query("exclude")), lctx)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, next)
}

// SubmitAnswer handles POST /learning/submit-answer.
func (h *LearningHandler) SubmitAnswer(c *gin.Context) {
	var req learning.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, h.log, &learning.ValidationError{Field: "body", Reason: "malformed JSON", Err: err})
		return
	}
	res, err := h.svc.SubmitAnswer(c.Request.Context(), userID(c), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, res)
}

// Progress handles GET /learning/progress.
func (h *LearningHandler) Progress(c *gin.Context) {
	p, err := h.svc.Progress(c.Request.Context(), userID(c))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, p)
}

// Explanation handles GET /learning/explanation?concept_id=.
func (h *LearningHandler) Explanation(c *gin.Context) {
	conceptID := strings.TrimSpace(c.Query("concept_id"))
	if conceptID == "" {
		RespondError(c, h.log, &learning.ValidationError{Field: "concept_id", Reason: "required"})
		return
	}
	ex, err := h.svc.Explain(c.Request.Context(), userID(c), conceptID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, ex)
}

// CurriculumHandler serves the /curriculum endpoints.
type CurriculumHandler struct {
	svc *learning.Service
	log *logger.Logger
}

func NewCurriculumHandler(svc *learning.Service, log *logger.Logger) *CurriculumHandler {
	return &CurriculumHandler{svc: svc, log: log}
}

// Plan handles GET /curriculum/plan.
func (h *CurriculumHandler) Plan(c *gin.Context) {
	lctx, err := learnerContext(c)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	topK, err := intQuery(c, "top_k", 0)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	view, err := h.svc.Plan(c.Request.Context(), userID(c), learning.PlanRequest{
		Exclude: splitList(c.Query("exclude")),
		TopK:    topK,
		Context: lctx,
	})
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, view)
}

// Update handles POST /curriculum/update, a what-if plan over supplied
// beliefs.
func (h *CurriculumHandler) Update(c *gin.Context) {
	var req learning.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, h.log, &learning.ValidationError{Field: "body", Reason: "malformed JSON", Err: err})
		return
	}
	view, err := h.svc.SimulatePlan(c.Request.Context(), userID(c), req)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, view)
}

// Traces handles GET /curriculum/traces?limit=.
func (h *CurriculumHandler) Traces(c *gin.Context) {
	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	if limit < 1 || limit > maxTraceLimit {
		RespondError(c, h.log, &learning.ValidationError{
			Field:  "limit",
			Reason: fmt.Sprintf("must be between 1 and %d", maxTraceLimit),
		})
		return
	}
	traces, err := h.svc.Traces(c.Request.Context(), userID(c), limit)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	out := make([]traceView, len(traces))
	for i, tr := range traces {
		out[i] = traceView{
			ID:                tr.ID,
			SelectedConceptID: tr.SelectedConcept,
			Reason:            tr.Reason,
			CandidateConcepts: tr.Candidates,
			Scores:            tr.Scores,
			Timestamp:         tr.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	RespondOK(c, gin.H{"user_id": userID(c), "traces": out})
}

type traceView struct {
	ID                string             `json:"id"`
	SelectedConceptID string             `json:"selected_concept_id"`
	Reason            string             `json:"reason"`
	CandidateConcepts []string           `json:"candidate_concepts"`
	Scores            map[string]float64 `json:"scores"`
	Timestamp         string             `json:"timestamp"`
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// learnerContext reads optional relevance signals from the query string.
func learnerContext(c *gin.Context) (compiler.Context, error) {
	lctx := compiler.Context{
		RiskLevel:     c.Query("risk_level"),
		SpendingTrend: c.Query("spending_trend"),
		FocusTags:     splitList(c.Query("focus")),
	}
	if v := c.Query("savings_rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return lctx, &learning.ValidationError{Field: "savings_rate", Reason: "not a number", Err: err}
		}
		lctx.SavingsRate = &rate
	}
	if v := c.Query("has_debt"); v != "" {
		debt, err := strconv.ParseBool(v)
		if err != nil {
			return lctx, &learning.ValidationError{Field: "has_debt", Reason: "not a boolean", Err: err}
		}
		lctx.HasDebt = debt
	}
	return lctx, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &learning.ValidationError{Field: name, Reason: "not an integer", Err: err}
	}
	if n < 0 {
		return 0, &learning.ValidationError{Field: name, Reason: "must not be negative", Err: errors.New("negative")}
	}
	return n, nil
}

// splitList parses a comma-separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
