package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/repository"
	"github.com/sinaptika/tryout-backend/internal/response"
	"github.com/sinaptika/tryout-backend/internal/service"
	"github.com/sinaptika/tryout-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	participants *repository.ParticipantRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, participants *repository.ParticipantRepository) *AuthHandler {
	return &AuthHandler{authService: authService, participants: participants}
}

// Login godoc
// POST /api/v1/auth/login
// Validates username + password for an enrolled participant, returns JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	participant, err := h.participants.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(participant.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateParticipantToken(participant.ID, participant.Name)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"participant": gin.H{
			"id":       participant.ID,
			"name":     participant.Name,
			"username": participant.Username,
		},
	})
}

// Guest godoc
// POST /api/v1/auth/guest
// Mints a throwaway guest identity and a JWT scoped to it. Guests leave no
// durable records; everything they produce expires with their session.
func (h *AuthHandler) Guest(c *gin.Context) {
	var req model.GuestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, guestID, err := h.authService.GenerateGuestToken(req.Name)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"token": token,
		"guest": gin.H{
			"id":   guestID,
			"name": req.Name,
		},
	})
}
