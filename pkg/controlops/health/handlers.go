package health

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tools"
)

// Handler handles health requests
type Handler struct {
	db      *gorm.DB
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(db *gorm.DB, checker *Checker) *Handler {
	return &Handler{db: db, checker: checker}
}

// Get returns the last health record of a tool
// @Summary Get tool health
// @Tags health
// @Produce json
// @Param id path int true "Tool ID"
// @Success 200 {object} models.ToolHealth
// @Failure 404 {object} apierr.Body "Tool not found"
// @Security BearerAuth
// @Router /tools/{id}/health [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := tools.ParseID(c, "id")
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	record, err := Get(c.Request.Context(), h.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apierr.Respond(c, apierr.NotFound("Tool"))
		return
	}
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Refresh runs a full health pass
// @Summary Refresh tool health
// @Description Admin only. Probes every tool and stores the results.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /admin/tools/health/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	records, err := h.checker.RefreshAll(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checked": len(records)})
}

// RegisterToolRoutes registers the per-tool health read on the tools group
func (h *Handler) RegisterToolRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/health", h.Get)
}

// RegisterAdminRoutes registers the refresh trigger on the admin group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/tools/health/refresh", h.Refresh)
}
