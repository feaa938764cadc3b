package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the key for the username in gin context
	ContextKeyUsername = "username"
	// ContextKeyRole is the key for the stored role in gin context
	ContextKeyRole = "role"
)

// AuthMiddleware validates the access token and loads its user.
// The role placed in the context is the stored one, not the token claim.
func AuthMiddleware(tokens *TokenService, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierr.Respond(c, apierr.Unauthorized("Authorization header required"))
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			apierr.Respond(c, apierr.Unauthorized("Invalid authorization header format"))
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]), TokenAccess)
		if err != nil {
			apierr.Respond(c, tokenError(err))
			return
		}
		userID, _ := claims.UserID()

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apierr.Respond(c, apierr.Unauthorized("User no longer exists"))
				return
			}
			apierr.Respond(c, err)
			return
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyUsername, user.Username)
		c.Set(ContextKeyRole, user.Role)

		c.Next()
	}
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return apierr.Unauthorized("Token has expired")
	case errors.Is(err, ErrWrongTokenType):
		return apierr.Unauthorized("Invalid token type")
	default:
		return apierr.Unauthorized("Invalid token")
	}
}

// RequireAdmin middleware checks if the user has the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetRole(c)
		if !exists {
			apierr.Respond(c, apierr.Unauthorized("Authentication required"))
			return
		}

		if role != models.RoleAdmin {
			apierr.Respond(c, apierr.Forbidden("Admin access required"))
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetRole returns the role from the gin context
func GetRole(c *gin.Context) (models.Role, bool) {
	role, exists := c.Get(ContextKeyRole)
	if !exists {
		return "", false
	}
	r, ok := role.(models.Role)
	return r, ok
}
