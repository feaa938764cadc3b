package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: Tag must be migrated before Tool because Tool creates the tool_tags join table
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Tool{},
		&ToolTag{},
		&Favorite{},
		&ToolHealth{},
		&AuditLog{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Tool{}, "Tags", &ToolTag{}); err != nil {
		return err
	}
	return db.AutoMigrate(AllModels()...)
}
