package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/audit"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tools"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateUserRequest represents the request to create a user
type CreateUserRequest struct {
	Username string      `json:"username" binding:"required,min=3,max=50"`
	Password string      `json:"password" binding:"required,min=6,max=200"`
	Role     models.Role `json:"role" binding:"omitempty,oneof=admin user"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Password *string      `json:"password" binding:"omitnil,min=6,max=200"`
	Role     *models.Role `json:"role" binding:"omitnil,oneof=admin user"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

// snapshot is the audited view of a user; it never carries the password hash
func snapshot(u models.User) auth.UserResponse {
	return auth.UserResponse{ID: u.ID, Username: u.Username, Role: u.Role}
}

// ListUsers returns all users (admin only)
// @Summary List users
// @Tags admin
// @Produce json
// @Param q query string false "Username substring"
// @Param role query string false "admin or user"
// @Success 200 {array} UserResponse
// @Failure 422 {object} apierr.Body "Invalid role"
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	f := UserFilters{Query: c.Query("q")}
	if role := c.Query("role"); role != "" {
		f.Role = models.Role(role)
		if !f.Role.Valid() {
			apierr.Respond(c, apierr.Invalid("role", "must be one of: admin, user"))
			return
		}
	}

	users, err := ListUsers(c.Request.Context(), h.db, f)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	responses := make([]UserResponse, len(users))
	for i, u := range users {
		responses[i] = toUserResponse(u)
	}
	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
// @Summary Get user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} apierr.Body "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, err := tools.ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		apierr.Respond(c, userNotFound(err))
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// CreateUser adds an account (admin only)
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User details"
// @Success 200 {object} UserResponse
// @Failure 409 {object} apierr.Body "Username already exists"
// @Failure 422 {object} apierr.Body "Validation error"
// @Security BearerAuth
// @Router /admin/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	actorID, _ := auth.GetUserID(c)
	var user models.User
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = CreateUser(tx, req.Username, req.Password, req.Role); err != nil {
			return err
		}
		_, err = audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditCreate,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			After:      snapshot(user),
			Request:    audit.RequestFrom(c),
		})
		return err
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateUser changes a user's password and/or role (admin only)
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to update"
// @Success 200 {object} UserResponse
// @Failure 404 {object} apierr.Body "User not found"
// @Failure 422 {object} apierr.Body "Validation error"
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := tools.ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	var req UpdateUserRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	actorID, _ := auth.GetUserID(c)
	var user models.User
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return userNotFound(err)
		}
		before := snapshot(user)

		changes := UserChanges{Password: req.Password, Role: req.Role}
		if err := UpdateUser(tx, &user, changes, actorID); err != nil {
			return err
		}

		_, err := audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditUpdate,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			Before:     before,
			After:      snapshot(user),
			Request:    audit.RequestFrom(c),
		})
		return err
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// DeleteUser removes a user (admin only)
// @Summary Delete user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} apierr.Body "User not found"
// @Failure 422 {object} apierr.Body "Cannot delete yourself"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := tools.ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	actorID, _ := auth.GetUserID(c)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return userNotFound(err)
		}
		if err := DeleteUser(tx, user, actorID); err != nil {
			return err
		}

		_, err := audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditDelete,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			Before:     snapshot(user),
			Request:    audit.RequestFrom(c),
		})
		return err
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetStats returns catalog-wide statistics (admin only)
// @Summary Catalog statistics
// @Tags admin
// @Produce json
// @Success 200 {object} Stats
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := CollectStats(c.Request.Context(), h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group. The group
// must already require an admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.POST("/users", h.CreateUser)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
