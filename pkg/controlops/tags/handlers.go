package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List returns every tag name in use by at least one tool
// @Summary List tags
// @Description Distinct tag names attached to tools, ascending
// @Tags tools
// @Produce json
// @Success 200 {array} string
// @Security BearerAuth
// @Router /tools/tags [get]
func (h *Handler) List(c *gin.Context) {
	names, err := List(c.Request.Context(), h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// RegisterRoutes registers tag routes on the tools router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
}
