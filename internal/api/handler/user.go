package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/internal/api/middleware"
	"github.com/nevera/nevera_server/internal/pkg/response"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/service"
)

// UserHandler serves the authenticated dashboard reads.
type UserHandler struct {
	userRepo     *repository.UserRepository
	productRepo  *repository.ProductRepository
	quotaService *service.QuotaService
	log          zerolog.Logger
}

func NewUserHandler(
	userRepo *repository.UserRepository,
	productRepo *repository.ProductRepository,
	quotaService *service.QuotaService,
	log zerolog.Logger,
) *UserHandler {
	return &UserHandler{
		userRepo:     userRepo,
		productRepo:  productRepo,
		quotaService: quotaService,
		log:          log,
	}
}

// GetQuota returns the usage snapshot for the current user.
// GET /api/v1/user/quota
func (h *UserHandler) GetQuota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		response.NotFound(c, "")
		return
	}

	info, err := h.quotaService.QuotaInfo(c.Request.Context(), user)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("quota snapshot failed")
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// GetProducts returns the current user's inventory ordered by expiry.
// GET /api/v1/user/products
func (h *UserHandler) GetProducts(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	products, err := h.productRepo.ListByUser(userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("product listing failed")
		response.ServerError(c, "")
		return
	}

	response.Success(c, products)
}
