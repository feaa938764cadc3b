// Package tags turns free-form tag strings into rows of the shared tag registry.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// MaxTagsPerTool is the maximum number of distinct tags on one tool
const MaxTagsPerTool = 20

// Normalize trims, lowercases, truncates and deduplicates raw tag strings,
// keeping first-seen order. Empty values are dropped.
func Normalize(raw []string) ([]string, error) {
	// Casers are stateful and must not be shared between goroutines
	lower := cases.Lower(language.Und)

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		name := truncate(lower.String(strings.TrimSpace(r)), models.MaxTagLength)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	if len(names) > MaxTagsPerTool {
		return nil, apierr.Invalid("tags", "at most %d distinct tags are allowed, got %d", MaxTagsPerTool, len(names))
	}
	return names, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// Resolve normalizes raw and returns the matching tags, creating missing ones.
// tx should be the transaction of the tool write so new tags roll back with it.
func Resolve(tx *gorm.DB, raw []string) ([]models.Tag, error) {
	names, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []models.Tag{}, nil
	}

	var existing []models.Tag
	if err := tx.Where("name IN ?", names).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("look up tags: %w", err)
	}
	byName := make(map[string]models.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	resolved := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, ok := byName[name]
		if !ok {
			tag, err = create(tx, name)
			if err != nil {
				return nil, err
			}
			byName[name] = tag
		}
		resolved = append(resolved, tag)
	}
	return resolved, nil
}

// create inserts a tag inside a savepoint. When a concurrent writer inserted
// the same name first, the savepoint is rolled back and the winner's row is used.
func create(tx *gorm.DB, name string) (models.Tag, error) {
	tag := models.Tag{Name: name}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&tag).Error
	})
	if err == nil {
		return tag, nil
	}
	if !database.IsUniqueViolation(err) {
		return models.Tag{}, fmt.Errorf("create tag %q: %w", name, err)
	}

	var winner models.Tag
	if err := tx.Where("name = ?", name).First(&winner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Tag{}, fmt.Errorf("tag %q conflicted but is not visible: %w", name, err)
		}
		return models.Tag{}, fmt.Errorf("reload tag %q: %w", name, err)
	}
	return winner, nil
}

// List returns the names of tags linked to at least one tool, ascending
func List(ctx context.Context, db *gorm.DB) ([]string, error) {
	names := []string{}
	err := db.WithContext(ctx).Model(&models.Tag{}).
		Where("EXISTS (SELECT 1 FROM tool_tags WHERE tool_tags.tag_id = tags.id)").
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}

// orphanCondition matches tags that no tool references
const orphanCondition = "NOT EXISTS (SELECT 1 FROM tool_tags WHERE tool_tags.tag_id = tags.id)"

// CountOrphans returns the number of tags with no tool links
func CountOrphans(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.Tag{}).Where(orphanCondition).Count(&n).Error
	return n, err
}

// PruneOrphans deletes tags with no tool links and returns how many were removed
func PruneOrphans(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Where(orphanCondition).Delete(&models.Tag{})
	return result.RowsAffected, result.Error
}
