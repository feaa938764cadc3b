// Package tools implements the tool catalog: filtered, sorted and paginated
// listings plus the admin write operations.
package tools

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

// Filters narrows a tool listing. Empty fields match everything.
type Filters struct {
	Category string
	Search   string
	Tag      string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Scope applies the filter predicate. Listing and counting share it.
func (f Filters) Scope(db *gorm.DB) *gorm.DB {
	if category := strings.TrimSpace(f.Category); category != "" {
		db = db.Where("LOWER(tools.category) = ?", database.Fold(category))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + likeEscaper.Replace(database.Fold(search)) + "%"
		db = db.Where(`(LOWER(tools.name) LIKE ? ESCAPE '\' OR LOWER(tools.description) LIKE ? ESCAPE '\')`, like, like)
	}
	if tag := f.normalizedTag(); tag != "" {
		db = db.Where(
			"EXISTS (SELECT 1 FROM tool_tags JOIN tags ON tags.id = tool_tags.tag_id WHERE tool_tags.tool_id = tools.id AND tags.name = ?)",
			tag,
		)
	}
	return db
}

func (f Filters) normalizedTag() string {
	names, err := tags.Normalize([]string{f.Tag})
	if err != nil || len(names) == 0 {
		return ""
	}
	return names[0]
}

// preloadTags loads tag collections in one batched query, ordered by name
func preloadTags(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name ASC")
	})
}

// List returns one page of tools matching f in sort order, and the number of
// matching tools ignoring pagination.
func List(ctx context.Context, db *gorm.DB, f Filters, sort SortSpec, p paging.Params) ([]models.Tool, int64, error) {
	if len(sort) == 0 {
		sort = DefaultSort
	}

	var total int64
	if err := db.WithContext(ctx).Model(&models.Tool{}).Scopes(f.Scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := []models.Tool{}
	err := db.WithContext(ctx).
		Scopes(f.Scope, sort.Scope, preloadTags).
		Limit(p.Limit()).
		Offset(p.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get loads one tool with its tags
func Get(ctx context.Context, db *gorm.DB, id uint) (models.Tool, error) {
	var tool models.Tool
	err := db.WithContext(ctx).Scopes(preloadTags).First(&tool, id).Error
	return tool, err
}

// Categories returns the distinct non-empty categories, ascending
func Categories(ctx context.Context, db *gorm.DB) ([]string, error) {
	categories := []string{}
	err := db.WithContext(ctx).Model(&models.Tool{}).
		Distinct("category").
		Where("category <> ''").
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
