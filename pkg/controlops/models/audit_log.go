package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// Audited entity types
const (
	EntityUser = "USER"
	EntityTool = "TOOL"
)

// AuditLog is an append-only record of an administrative mutation
type AuditLog struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	ActorUserID *uint          `gorm:"index" json:"actor_user_id"`
	Action      string         `gorm:"size:20;not null;index" json:"action"`
	EntityType  string         `gorm:"size:20;not null;index" json:"entity_type"`
	EntityID    *uint          `json:"entity_id"`
	Before      datatypes.JSON `json:"before"`
	After       datatypes.JSON `json:"after"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	IP          *string        `gorm:"size:45" json:"ip"`
	UserAgent   *string        `gorm:"size:512" json:"user_agent"`

	Actor *User `gorm:"foreignKey:ActorUserID;constraint:OnDelete:SET NULL" json:"-"`
}
