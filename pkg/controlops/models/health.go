package models

import "time"

// HealthStatus is the last observed reachability of a tool
type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthUp      HealthStatus = "up"
	HealthDown    HealthStatus = "down"
)

// ToolHealth holds the latest health check result for a tool
type ToolHealth struct {
	ToolID        uint         `gorm:"primaryKey;autoIncrement:false" json:"tool_id"`
	Status        HealthStatus `gorm:"type:varchar(10);not null;default:'unknown';check:chk_tool_health_status,status IN ('unknown','up','down')" json:"status"`
	LastCheckedAt *time.Time   `json:"last_checked_at"`
	LatencyMS     *float64     `json:"latency_ms"`
	LastError     *string      `gorm:"size:512" json:"last_error"`
}

// TableName pins the table name to the singular form used by the schema
func (ToolHealth) TableName() string {
	return "tool_health"
}
