package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sinaptika/tryout-backend/internal/middleware"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
)

// ResultHandler serves finished session results.
type ResultHandler struct {
	sessions *service.ExamSessionService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(sessions *service.ExamSessionService) *ResultHandler {
	return &ResultHandler{sessions: sessions}
}

// GetResult godoc
// GET /api/v1/results/:correlation_id
// Returns the scored breakdown of a finished session owned by the caller.
// Unfinished, unknown, and foreign sessions all read as the same not-found.
func (h *ResultHandler) GetResult(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	correlationID, err := uuid.Parse(c.Param("correlation_id"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
		return
	}

	result, err := h.sessions.GetResult(c.Request.Context(), id, correlationID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
