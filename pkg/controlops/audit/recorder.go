// Package audit records administrative mutations and serves the audit trail.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// RequestContext carries requester details captured with an entry
type RequestContext struct {
	IP        string
	UserAgent string
}

// RequestFrom extracts the requester details from a gin context
func RequestFrom(c *gin.Context) *RequestContext {
	if c == nil || c.Request == nil {
		return nil
	}
	return &RequestContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Entry describes one mutation. Before and After are serialized to JSON;
// CREATE carries only After, DELETE only Before.
type Entry struct {
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	Before     any
	After      any
	Request    *RequestContext
}

var (
	validActions     = map[string]bool{models.AuditCreate: true, models.AuditUpdate: true, models.AuditDelete: true}
	validEntityTypes = map[string]bool{models.EntityUser: true, models.EntityTool: true}
)

// Record appends an audit row using tx. Callers pass the transaction of the
// mutation so that the entry commits or rolls back with it.
func Record(tx *gorm.DB, e Entry) (*models.AuditLog, error) {
	action := strings.ToUpper(strings.TrimSpace(e.Action))
	entityType := strings.ToUpper(strings.TrimSpace(e.EntityType))
	if !validActions[action] {
		return nil, fmt.Errorf("audit: unknown action %q", e.Action)
	}
	if !validEntityTypes[entityType] {
		return nil, fmt.Errorf("audit: unknown entity type %q", e.EntityType)
	}

	before, err := snapshot(e.Before)
	if err != nil {
		return nil, fmt.Errorf("audit: encode before: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return nil, fmt.Errorf("audit: encode after: %w", err)
	}

	entry := models.AuditLog{
		Action:     action,
		EntityType: entityType,
		Before:     before,
		After:      after,
	}
	if e.ActorID != 0 {
		actor := e.ActorID
		entry.ActorUserID = &actor
	}
	if e.EntityID != 0 {
		id := e.EntityID
		entry.EntityID = &id
	}
	if e.Request != nil {
		entry.IP = optional(e.Request.IP, 45)
		entry.UserAgent = optional(e.Request.UserAgent, 512)
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("audit: insert: %w", err)
	}
	return &entry, nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	return datatypes.JSON(b), nil
}

func optional(s string, max int) *string {
	if s == "" {
		return nil
	}
	if len(s) > max {
		s = s[:max]
	}
	// a cut can split a multi-byte rune and postgres rejects invalid UTF-8
	s = strings.ToValidUTF8(s, "")
	return &s
}
