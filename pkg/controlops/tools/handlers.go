package tools

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/audit"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

// Handler handles tool-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tools handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateToolRequest represents the request to create a tool
type CreateToolRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=120"`
	Description string   `json:"description"`
	URL         string   `json:"url" binding:"max=512"`
	Category    *string  `json:"category" binding:"omitnil,min=1,max=80"`
	Tags        []string `json:"tags"`
}

// UpdateToolRequest represents the request to update a tool.
// Omitted fields are left unchanged; an empty tags list clears the tags.
type UpdateToolRequest struct {
	Name        *string   `json:"name" binding:"omitnil,min=1,max=120"`
	Description *string   `json:"description"`
	URL         *string   `json:"url" binding:"omitnil,max=512"`
	Category    *string   `json:"category" binding:"omitnil,min=1,max=80"`
	Tags        *[]string `json:"tags"`
}

// ToolResponse represents a tool in API responses
type ToolResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToResponse converts a tool with loaded tags to its API shape
func ToResponse(tool models.Tool) ToolResponse {
	return ToolResponse{
		ID:          tool.ID,
		Name:        tool.Name,
		Description: tool.Description,
		URL:         tool.URL,
		Category:    tool.Category,
		Tags:        tool.TagNames(),
		CreatedAt:   tool.CreatedAt,
	}
}

// ToResponses converts a slice of tools
func ToResponses(tools []models.Tool) []ToolResponse {
	out := make([]ToolResponse, len(tools))
	for i, t := range tools {
		out[i] = ToResponse(t)
	}
	return out
}

var errDuplicateName = apierr.Duplicate("name", "Tool name already exists")

// ParseID reads a positive integer path parameter
func ParseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apierr.Invalid(name, "must be a positive integer")
	}
	return uint(id), nil
}

// List returns a filtered, sorted page of tools
// @Summary List tools
// @Description Filter by category, tag and search text; sort by up to three keys
// @Tags tools
// @Produce json
// @Param category query string false "Category (case-insensitive)"
// @Param tag query string false "Tag name"
// @Param search query string false "Substring of name or description"
// @Param q query string false "Alias of search"
// @Param sort query string false "e.g. category:asc,name:asc"
// @Param sort_by query string false "Single sort field (default created_at)"
// @Param sort_dir query string false "asc or desc (default desc)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Param limit query int false "Alias of page_size"
// @Param offset query int false "Row offset"
// @Success 200 {object} paging.Result[ToolResponse]
// @Failure 422 {object} apierr.Body "Invalid sort or paging"
// @Security BearerAuth
// @Router /tools [get]
func (h *Handler) List(c *gin.Context) {
	p, err := paging.Parse(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	sort, err := ParseSort(c.Query("sort"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if sort == nil {
		sort, err = SingleSort(c.Query("sort_by"), c.Query("sort_dir"))
		if err != nil {
			apierr.Respond(c, err)
			return
		}
	}

	search := c.Query("search")
	if search == "" {
		search = c.Query("q")
	}
	f := Filters{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Search:   search,
	}

	items, total, err := List(c.Request.Context(), h.db, f, sort, p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, paging.NewResult(ToResponses(items), total, p))
}

// Get returns a tool by ID
// @Summary Get tool
// @Tags tools
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} ToolResponse
// @Failure 404 {object} apierr.Body "Tool not found"
// @Security BearerAuth
// @Router /tools/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	tool, err := Get(c.Request.Context(), h.db, id)
	if err != nil {
		apierr.Respond(c, notFound(err))
		return
	}

	c.JSON(http.StatusOK, ToResponse(tool))
}

// Categories returns the distinct tool categories
// @Summary List categories
// @Tags tools
// @Produce json
// @Success 200 {array} string
// @Security BearerAuth
// @Router /tools/categories [get]
func (h *Handler) Categories(c *gin.Context) {
	categories, err := Categories(c.Request.Context(), h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Create adds a tool
// @Summary Create tool
// @Description Admin only. Tags are normalized and created on first use.
// @Tags tools
// @Accept json
// @Produce json
// @Param request body CreateToolRequest true "Tool details"
// @Success 200 {object} ToolResponse
// @Failure 409 {object} apierr.Body "Tool name already exists"
// @Failure 422 {object} apierr.Body "Validation error"
// @Security BearerAuth
// @Router /tools [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateToolRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	category := models.DefaultCategory
	if req.Category != nil {
		category = *req.Category
	}

	actorID, _ := auth.GetUserID(c)
	var tool models.Tool
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		tagRows, err := tags.Resolve(tx, req.Tags)
		if err != nil {
			return err
		}
		if err := checkNameAvailable(tx, req.Name, 0); err != nil {
			return err
		}

		tool = models.Tool{
			Name:        req.Name,
			Description: req.Description,
			URL:         req.URL,
			Category:    category,
			Tags:        tagRows,
		}
		if err := tx.Omit("Tags.*").Create(&tool).Error; err != nil {
			return translateWriteError(err)
		}

		_, err = audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditCreate,
			EntityType: models.EntityTool,
			EntityID:   tool.ID,
			After:      ToResponse(tool),
			Request:    audit.RequestFrom(c),
		})
		return err
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(tool))
}

// Update modifies a tool
// @Summary Update tool
// @Description Admin only. Only supplied fields change.
// @Tags tools
// @Accept json
// @Produce json
// @Param id path int true "Tool ID"
// @Param request body UpdateToolRequest true "Fields to update"
// @Success 200 {object} ToolResponse
// @Failure 404 {object} apierr.Body "Tool not found"
// @Failure 409 {object} apierr.Body "Tool name already exists"
// @Failure 422 {object} apierr.Body "Validation error"
// @Security BearerAuth
// @Router /tools/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	var req UpdateToolRequest
	if err := apierr.BindJSON(c, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	actorID, _ := auth.GetUserID(c)
	var tool models.Tool
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(preloadTags).First(&tool, id).Error; err != nil {
			return notFound(err)
		}
		before := ToResponse(tool)

		var tagRows []models.Tag
		if req.Tags != nil {
			if tagRows, err = tags.Resolve(tx, *req.Tags); err != nil {
				return err
			}
		}

		if req.Name != nil && *req.Name != tool.Name {
			if err := checkNameAvailable(tx, *req.Name, tool.ID); err != nil {
				return err
			}
			tool.Name = *req.Name
		}
		if req.Description != nil {
			tool.Description = *req.Description
		}
		if req.URL != nil {
			tool.URL = *req.URL
		}
		if req.Category != nil {
			tool.Category = *req.Category
		}

		err := tx.Model(&tool).
			Updates(map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"url":         tool.URL,
				"category":    tool.Category,
			}).Error
		if err != nil {
			return translateWriteError(err)
		}

		if req.Tags != nil {
			if err := tx.Model(&tool).Association("Tags").Replace(tagRows); err != nil {
				return err
			}
			tool.Tags = tagRows
		}

		_, err = audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditUpdate,
			EntityType: models.EntityTool,
			EntityID:   tool.ID,
			Before:     before,
			After:      ToResponse(tool),
			Request:    audit.RequestFrom(c),
		})
		return err
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(tool))
}

// Delete removes a tool with its tag links, favorites and health record
// @Summary Delete tool
// @Tags tools
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} apierr.Body "Tool not found"
// @Security BearerAuth
// @Router /tools/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	actorID, _ := auth.GetUserID(c)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var tool models.Tool
		if err := tx.Scopes(preloadTags).First(&tool, id).Error; err != nil {
			return notFound(err)
		}

		if err := tx.Select("Tags").Delete(&tool).Error; err != nil {
			return err
		}

		_, err := audit.Record(tx, audit.Entry{
			ActorID:    actorID,
			Action:     models.AuditDelete,
			EntityType: models.EntityTool,
			EntityID:   tool.ID,
			Before:     ToResponse(tool),
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

func checkNameAvailable(tx *gorm.DB, name string, excludeID uint) error {
	var count int64
	q := tx.Model(&models.Tool{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errDuplicateName
	}
	return nil
}

// translateWriteError maps a unique violation on the tools table to a duplicate
// name error; the pre-check misses concurrent inserts.
func translateWriteError(err error) error {
	var uv *database.UniqueViolation
	if errors.As(database.ClassifyError(err), &uv) && isToolNameConstraint(uv.Constraint) {
		return errDuplicateName
	}
	return err
}

func isToolNameConstraint(constraint string) bool {
	return constraint == "idx_tools_name" || strings.HasPrefix(constraint, "tools.name")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("Tool")
	}
	return err
}

// RegisterRoutes registers tool routes. Reads need any authenticated user,
// writes additionally require admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/categories", h.Categories)
	rg.GET("/:id", h.Get)

	admin := rg.Group("", auth.RequireAdmin())
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
}
