package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
)

// failFromService translates engine errors onto the wire contract. Unknown
// errors become an opaque 500 so internals never leak to the client.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSession):
		response.Fail(c, http.StatusForbidden, response.ErrInvalidSession)
	case errors.Is(err, service.ErrSessionOver):
		response.Fail(c, http.StatusForbidden, response.ErrSessionOver)
	case errors.Is(err, service.ErrWrongPart):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPart)
	case errors.Is(err, service.ErrSystemBusy):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrSystemBusy)
	case errors.Is(err, service.ErrResultNotReady):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
	case errors.Is(err, service.ErrFormatUnavailable):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
