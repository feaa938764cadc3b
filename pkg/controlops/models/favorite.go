package models

import "time"

// Favorite marks a tool as favorited by a user
type Favorite struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	ToolID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"tool_id"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tool Tool `gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE" json:"-"`
}
