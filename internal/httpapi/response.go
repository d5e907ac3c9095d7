package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/learnloop/internal/logger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope. Server-side failures are logged
// with the underlying cause, which never reaches the client.
func RespondError(c *gin.Context, log *logger.Logger, err error) {
	apiErr := classify(err)
	if apiErr.Status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			"path", c.FullPath(),
			"user_id", userID(c),
			"code", apiErr.Code,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(apiErr.Status, ErrorEnvelope{
		Error: APIError{Message: apiErr.Error(), Code: apiErr.Code},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
