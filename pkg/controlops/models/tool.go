package models

import "time"

// DefaultCategory is assigned to tools created without a category
const DefaultCategory = "general"

// Tool represents a catalog entry for an external service
type Tool struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	Name        string    `gorm:"size:120;uniqueIndex:idx_tools_name;not null" json:"name"`
	Description string    `gorm:"type:text;not null;default:''" json:"description"`
	URL         string    `gorm:"size:512;not null;default:''" json:"url"`
	Category    string    `gorm:"size:80;index;not null;default:'general'" json:"category"`

	// Relationships
	Tags   []Tag       `gorm:"many2many:tool_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
	Health *ToolHealth `gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE" json:"health,omitempty"`
}

// TagNames returns the names of the loaded tags
func (t Tool) TagNames() []string {
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Name
	}
	return names
}
