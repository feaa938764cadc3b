package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// Handler handles authentication requests
type Handler struct {
	db      *gorm.DB
	tokens  *TokenService
	limiter *LoginLimiter
}

// NewHandler creates a new auth handler. limiter may be nil.
func NewHandler(db *gorm.DB, tokens *TokenService, limiter *LoginLimiter) *Handler {
	return &Handler{db: db, tokens: tokens, limiter: limiter}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate with username and password to receive an access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenPair
// @Failure 401 {object} apierr.Body "Invalid credentials"
// @Failure 422 {object} apierr.Body "Validation error"
// @Failure 429 {object} apierr.Body "Too many attempts"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		apierr.Respond(c, err)
		return
	}

	if err != nil || !CheckPassword(req.Password, user.PasswordHash) {
		apierr.Respond(c, apierr.Unauthorized("Invalid username or password"))
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Description Exchange a valid refresh token for a new access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} TokenPair
// @Failure 401 {object} apierr.Body "Invalid, expired or wrong-kind token"
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	claims, err := h.tokens.Validate(req.RefreshToken, TokenRefresh)
	if err != nil {
		apierr.Respond(c, tokenError(err))
		return
	}
	userID, _ := claims.UserID()

	// The presented refresh token stays valid until it expires.
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apierr.Respond(c, apierr.Unauthorized("User no longer exists"))
			return
		}
		apierr.Respond(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Me returns the current authenticated user
// @Summary Get current user
// @Description Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} apierr.Body "Authentication required"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, _ := GetUserID(c)
	username, _ := c.Get(ContextKeyUsername)
	role, _ := GetRole(c)

	name, _ := username.(string)
	c.JSON(http.StatusOK, UserResponse{
		ID:       userID,
		Username: name,
		Role:     role,
	})
}

// Middleware returns the access-token middleware bound to this handler's store
func (h *Handler) Middleware() gin.HandlerFunc {
	return AuthMiddleware(h.tokens, h.db)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	if h.limiter != nil {
		rg.POST("/login", h.limiter.Middleware(), h.Login)
	} else {
		rg.POST("/login", h.Login)
	}
	rg.POST("/refresh", h.Refresh)
	rg.GET("/me", h.Middleware(), h.Me)
}
