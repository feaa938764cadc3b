// Package favorites lets users bookmark catalog tools.
package favorites

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tools"
)

// Add marks toolID as a favorite of userID. Adding an existing favorite is a no-op.
func Add(ctx context.Context, db *gorm.DB, userID, toolID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTool(tx, toolID); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Favorite{UserID: userID, ToolID: toolID}).Error
	})
}

// Remove unmarks toolID. Removing a missing favorite is a no-op.
func Remove(ctx context.Context, db *gorm.DB, userID, toolID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTool(tx, toolID); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND tool_id = ?", userID, toolID).Delete(&models.Favorite{}).Error
	})
}

// List returns a page of the user's favorite tools, most recently favorited first.
func List(ctx context.Context, db *gorm.DB, userID uint, p paging.Params) ([]models.Tool, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := []models.Tool{}
	err := db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.tool_id = tools.id AND favorites.user_id = ?", userID).
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("tags.name ASC")
		}).
		Order("favorites.created_at DESC").
		Order("tools.id DESC").
		Limit(p.Limit()).
		Offset(p.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func ensureTool(tx *gorm.DB, toolID uint) error {
	var tool models.Tool
	err := tx.Select("id").First(&tool, toolID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("Tool")
	}
	return err
}

// Handler handles favorite requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new favorites handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Add favorites a tool for the current user
// @Summary Favorite tool
// @Tags favorites
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} apierr.Body "Tool not found"
// @Security BearerAuth
// @Router /tools/{id}/favorite [post]
func (h *Handler) Add(c *gin.Context) {
	h.toggle(c, Add)
}

// Remove unfavorites a tool for the current user
// @Summary Unfavorite tool
// @Tags favorites
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} apierr.Body "Tool not found"
// @Security BearerAuth
// @Router /tools/{id}/favorite [delete]
func (h *Handler) Remove(c *gin.Context) {
	h.toggle(c, Remove)
}

func (h *Handler) toggle(c *gin.Context, op func(context.Context, *gorm.DB, uint, uint) error) {
	toolID, err := tools.ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	userID, _ := auth.GetUserID(c)

	if err := op(c.Request.Context(), h.db, userID, toolID); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// List returns the current user's favorite tools
// @Summary List favorites
// @Tags favorites
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} paging.Result[tools.ToolResponse]
// @Security BearerAuth
// @Router /me/favorites [get]
func (h *Handler) List(c *gin.Context) {
	p, err := paging.Parse(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	userID, _ := auth.GetUserID(c)

	items, total, err := List(c.Request.Context(), h.db, userID, p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, paging.NewResult(tools.ToResponses(items), total, p))
}

// RegisterToolRoutes registers the favorite toggles on the tools group
func (h *Handler) RegisterToolRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/favorite", h.Add)
	rg.DELETE("/:id/favorite", h.Remove)
}

// RegisterMeRoutes registers the favorites listing on the /me group
func (h *Handler) RegisterMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/favorites", h.List)
}
