package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/config"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/logging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// @title Control Ops API
// @version 1.0
// @description Tool catalog with favorites, health checks and an audit trail.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token. Format: "Bearer {token}"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	root := &cobra.Command{
		Use:           "controlops-server",
		Short:         "Tool catalog API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a config file (yaml, toml or json)")
	flags.String("database-url", "", "database connection string")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = opts.v.BindPFlag(config.KeyDatabaseURL, flags.Lookup("database-url"))
	_ = opts.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	serve := newServeCmd(opts)
	_ = opts.v.BindPFlag(config.KeyPort, serve.Flags().Lookup("port"))
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newMigrateCmd(opts),
		newHealthCmd(opts),
		newTagsCmd(opts),
	)
	return root
}

// load reads the config file, builds the immutable config and the process logger
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	if err := config.ReadFile(o.v, o.configPath); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(o.v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

// openDB connects and migrates the schema
func openDB(cfg config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", zap.String("dialect", database.DialectFor(cfg.DatabaseURL)))
	return db, nil
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
