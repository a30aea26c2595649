package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sinaptika/tryout-backend/internal/middleware"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
	"github.com/sinaptika/tryout-backend/internal/validator"
)

// AnswerHandler handles the answer staging endpoints.
type AnswerHandler struct {
	answers *service.AnswerService
}

// NewAnswerHandler creates a new AnswerHandler.
func NewAnswerHandler(answers *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

// StageAnswer godoc
// POST /api/v1/tryout/answers
// Stages a single answer on the hot path. Last write per question wins;
// malformed entries are dropped without failing the request.
func (h *AnswerHandler) StageAnswer(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StageAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.answers.StageAnswer(c.Request.Context(), id, &req); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"success": true})
}

// StageBatch godoc
// POST /api/v1/tryout/answers/batch
// Stages up to ten answers atomically under an exclusive session lock. The
// whole batch applies or none of it does; on persistent lock contention the
// client gets a retryable busy signal.
func (h *AnswerHandler) StageBatch(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StageBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.answers.StageBatch(c.Request.Context(), id, &req); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"success": true})
}
