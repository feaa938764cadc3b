package audit

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
)

// Filters narrows the audit listing. Zero values match everything.
type Filters struct {
	EntityType  string
	Action      string
	ActorUserID *uint
	From        *time.Time
	To          *time.Time
}

func (f Filters) scope(db *gorm.DB) *gorm.DB {
	if f.EntityType != "" {
		db = db.Where("entity_type = ?", strings.ToUpper(f.EntityType))
	}
	if f.Action != "" {
		db = db.Where("action = ?", strings.ToUpper(f.Action))
	}
	if f.ActorUserID != nil {
		db = db.Where("actor_user_id = ?", *f.ActorUserID)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", *f.To)
	}
	return db
}

// List returns one page of entries, newest first, and the filtered total
func List(ctx context.Context, db *gorm.DB, f Filters, p paging.Params) ([]models.AuditLog, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(&models.AuditLog{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := []models.AuditLog{}
	err := db.WithContext(ctx).
		Scopes(f.scope).
		Order("created_at DESC").
		Order("id DESC").
		Limit(p.Limit()).
		Offset(p.Offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
