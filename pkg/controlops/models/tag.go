package models

// MaxTagLength is the maximum stored length of a tag name
const MaxTagLength = 80

// Tag represents a normalized label that can be applied to tools
type Tag struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"size:80;uniqueIndex:idx_tags_name;not null" json:"name"`
}

// ToolTag is the join row between a tool and a tag
type ToolTag struct {
	ToolID uint `gorm:"primaryKey;autoIncrement:false;index"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false;index"`
}
