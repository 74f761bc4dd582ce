package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/response"
	"github.com/nevera/nevera_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Link sends a one-time login code to the user's WhatsApp.
// POST /api/v1/auth/link
func (h *AuthHandler) Link(c *gin.Context) {
	var req dto.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	err := h.authService.SendLinkCode(c.Request.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPhone) {
			// Same answer as success so the endpoint cannot be used to
			// enumerate registered phones.
			response.Success(c, gin.H{"sent": true})
			return
		}
		h.log.Error().Err(err).Msg("link code failed")
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"sent": true})
}

// Verify exchanges the code for a session token.
// POST /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	token, err := h.authService.Verify(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPhone) || errors.Is(err, service.ErrBadLoginCode) {
			response.AuthError(c, "invalid phone or code")
			return
		}
		h.log.Error().Err(err).Msg("verify failed")
		response.ServerError(c, "")
		return
	}

	response.Success(c, dto.TokenResponse{Token: token})
}
