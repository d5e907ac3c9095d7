package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/abhisek/learnloop/internal/logger"
)

type RouterConfig struct {
	LearningHandler   *LearningHandler
	CurriculumHandler *CurriculumHandler
	HealthHandler     *HealthHandler
	Log               *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/")
	api.Use(IdentifyUser())
	{
		if h := cfg.LearningHandler; h != nil {
			api.GET("/learning/next-card", h.NextCard)
			api.POST("/learning/submit-answer", h.SubmitAnswer)
			api.GET("/learning/progress", h.Progress)
			api.GET("/learning/explanation", h.Explanation)
		}
		if h := cfg.CurriculumHandler; h != nil {
			api.GET("/curriculum/plan", h.Plan)
			api.POST("/curriculum/update", h.Update)
			api.GET("/curriculum/traces", h.Traces)
		}
	}
	return r
}
