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

// ViolationHandler handles integrity violation reports.
type ViolationHandler struct {
	violations *service.ViolationService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(violations *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violations: violations}
}

// Report godoc
// POST /api/v1/tryout/violations
// Records one proctoring violation. Crossing the threshold disqualifies the
// session; the response carries the running count and the resulting state so
// the client can react immediately.
func (h *ViolationHandler) Report(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ReportViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !model.IsValidViolationType(req.ViolationType) {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidViolation)
		return
	}

	meta := model.ViolationMetadata{
		UserAgent: c.GetHeader("User-Agent"),
		ClientIP:  c.ClientIP(),
	}

	report, err := h.violations.Report(c.Request.Context(), id, req.ExamSessionID, model.ViolationType(req.ViolationType), meta)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success":         true,
		"violation_count": report.ViolationCount,
		"disqualified":    report.Disqualified,
	})
}
