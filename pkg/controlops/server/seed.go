package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/admin"
	"github.com/Subash107/control-ops-local1/pkg/controlops/config"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

type sampleTool struct {
	name        string
	description string
	url         string
	category    string
	tags        []string
}

var sampleTools = []sampleTool{
	{"Jenkins", "CI/CD automation server", "https://www.jenkins.io/", "ci-cd", []string{"cicd", "pipelines"}},
	{"Prometheus", "Monitoring and alerting toolkit", "https://prometheus.io/", "observability", []string{"metrics", "monitoring"}},
	{"Grafana", "Visualization and dashboards", "https://grafana.com/", "observability", []string{"dashboards", "visualization"}},
}

// Seed creates the default admin when no user has its username, and the
// sample catalog when enabled and no tool exists yet.
func Seed(ctx context.Context, db *gorm.DB, cfg config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	db = db.WithContext(ctx)

	if err := seedAdmin(db, cfg, logger); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if !cfg.SeedSampleTools {
		return nil
	}
	if err := seedTools(db, logger); err != nil {
		return fmt.Errorf("seed tools: %w", err)
	}
	return nil
}

func seedAdmin(db *gorm.DB, cfg config.Config, logger *zap.Logger) error {
	var existing models.User
	err := db.Where("username = ?", cfg.DefaultAdminUsername).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user, err := admin.CreateUser(db, cfg.DefaultAdminUsername, cfg.DefaultAdminPassword, models.RoleAdmin)
	if err != nil {
		return err
	}
	logger.Info("created default admin user", zap.String("username", user.Username))
	return nil
}

func seedTools(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&models.Tool{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, s := range sampleTools {
			tagRows, err := tags.Resolve(tx, s.tags)
			if err != nil {
				return err
			}
			tool := models.Tool{
				Name:        s.name,
				Description: s.description,
				URL:         s.url,
				Category:    s.category,
				Tags:        tagRows,
			}
			if err := tx.Omit("Tags.*").Create(&tool).Error; err != nil {
				return err
			}
		}
		logger.Info("seeded sample tools", zap.Int("count", len(sampleTools)))
		return nil
	})
}
