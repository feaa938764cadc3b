package admin

import (
	"context"

	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

// Stats represents catalog-wide statistics
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	AdminUsers     int64 `json:"admin_users"`
	TotalTools     int64 `json:"total_tools"`
	TotalTags      int64 `json:"total_tags"`
	OrphanTags     int64 `json:"orphan_tags"`
	TotalFavorites int64 `json:"total_favorites"`
	ToolsUp        int64 `json:"tools_up"`
	ToolsDown      int64 `json:"tools_down"`
	// ToolsUnknown includes tools that were never checked
	ToolsUnknown int64 `json:"tools_unknown"`
}

// CollectStats counts users, tools, tags, favorites and health outcomes
func CollectStats(ctx context.Context, db *gorm.DB) (Stats, error) {
	var s Stats
	db = db.WithContext(ctx)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&s.TotalUsers, db.Model(&models.User{})},
		{&s.AdminUsers, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin)},
		{&s.TotalTools, db.Model(&models.Tool{})},
		{&s.TotalTags, db.Model(&models.Tag{})},
		{&s.TotalFavorites, db.Model(&models.Favorite{})},
		{&s.ToolsUp, db.Model(&models.ToolHealth{}).Where("status = ?", models.HealthUp)},
		{&s.ToolsDown, db.Model(&models.ToolHealth{}).Where("status = ?", models.HealthDown)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return Stats{}, err
		}
	}

	orphans, err := tags.CountOrphans(ctx, db)
	if err != nil {
		return Stats{}, err
	}
	s.OrphanTags = orphans
	s.ToolsUnknown = s.TotalTools - s.ToolsUp - s.ToolsDown
	return s, nil
}
