package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
)

// Handler serves the audit trail
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new audit handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List returns audit entries
// @Summary List audit entries
// @Description Paginated audit log, newest first
// @Tags admin
// @Produce json
// @Param entity_type query string false "USER or TOOL"
// @Param action query string false "CREATE, UPDATE or DELETE"
// @Param actor_user_id query int false "Actor user ID"
// @Param from query string false "Lower bound (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Upper bound (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} paging.Result[models.AuditLog]
// @Failure 422 {object} apierr.Body "Invalid filter"
// @Security BearerAuth
// @Router /admin/audit [get]
func (h *Handler) List(c *gin.Context) {
	p, err := paging.Parse(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	f := Filters{
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
	}
	if raw := c.Query("actor_user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierr.Respond(c, apierr.Invalid("actor_user_id", "must be an integer"))
			return
		}
		actor := uint(id)
		f.ActorUserID = &actor
	}
	if f.From, err = parseTime(c, "from", false); err != nil {
		apierr.Respond(c, err)
		return
	}
	if f.To, err = parseTime(c, "to", true); err != nil {
		apierr.Respond(c, err)
		return
	}

	items, total, err := List(c.Request.Context(), h.db, f, p)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, paging.NewResult(items, total, p))
}

// parseTime accepts RFC3339 timestamps or plain dates. A plain date used as an
// upper bound covers the whole day.
func parseTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apierr.Invalid(key, "must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// RegisterRoutes registers audit routes on the admin router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit", h.List)
}
