package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sinaptika/tryout-backend/internal/middleware"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
	"github.com/sinaptika/tryout-backend/internal/validator"
)

// ExamHandler handles the session lifecycle endpoints.
type ExamHandler struct {
	sessions *service.ExamSessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.ExamSessionService) *ExamHandler {
	return &ExamHandler{sessions: sessions}
}

// StartSession godoc
// POST /api/v1/tryout/start
// Starts a new session for the authenticated identity or resumes the active
// one. At most one active session per identity exists at any time.
func (h *ExamHandler) StartSession(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessions.Start(c.Request.Context(), id, model.ExamVariant(req.Variant), req.EventID)
	if err != nil {
		failFromService(c, err)
		return
	}

	status := http.StatusCreated
	if state.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"session": state})
}

// EnterPart godoc
// GET /api/v1/tryout/parts/:part
// Returns the part's questions with staged selections pre-filled, the
// remaining time, and a fresh part-scoped token. Entering a part whose time
// budget is spent auto-completes it instead.
func (h *ExamHandler) EnterPart(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	part, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPart)
		return
	}

	view, err := h.sessions.EnterPart(c.Request.Context(), id, part)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// CompletePart godoc
// POST /api/v1/tryout/parts/:part/complete
// Merges the submitted answers, deducts the reported time, and advances to
// the next part. Completing the last part commits everything, scores the
// session, and finishes it.
func (h *ExamHandler) CompletePart(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	part, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPart)
		return
	}

	var req model.CompletePartRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	completion, err := h.sessions.CompletePart(c.Request.Context(), id, req.ExamSessionID, part, req.Answers, req.TimeSpent)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, completion)
}
