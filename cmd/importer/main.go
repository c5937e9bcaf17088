// Command importer copies the legacy Firestore collections into the SQL store and then
// clears any self-owned requests found in the imported data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/app"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/importer"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("directory-importer", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath, projectID string
	var batchSize int
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&projectID, "project", "", "Firestore project id (overrides importer.project_id)")
	fs.IntVar(&batchSize, "batch", 0, "Rows per insert batch (overrides importer.batch_size)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if strings.TrimSpace(configPath) != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}
	if projectID != "" {
		cfg.Importer.ProjectID = projectID
	}
	if batchSize > 0 {
		cfg.Importer.BatchSize = batchSize
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync()
	log := logger.WithModule("importer")

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto-migrate database: %w", err)
	}

	store, err := repository.NewStore(db, changefeed.NewMemoryBroker())
	if err != nil {
		return err
	}
	repair, err := services.NewRepairService(store, nil)
	if err != nil {
		return err
	}

	source, err := importer.NewFirestoreSource(ctx, cfg.Importer.ProjectID, cfg.Importer.CredentialsFile)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	imp, err := importer.New(db, source, repair, cfg.Importer.BatchSize)
	if err != nil {
		return err
	}
	report, err := imp.Run(ctx)
	if err != nil {
		return err
	}

	log.Info("import complete",
		zap.String("project", cfg.Importer.ProjectID),
		zap.Int("requests", report.Requests),
		zap.Int("repaired", report.Repaired),
	)
	return nil
}
