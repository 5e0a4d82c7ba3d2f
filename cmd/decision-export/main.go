package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Gstman420/emergency-response-backend/common/database"
	logpkg "github.com/Gstman420/emergency-response-backend/common/logger"
	"github.com/Gstman420/emergency-response-backend/internal/config"
	"github.com/Gstman420/emergency-response-backend/internal/export"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"go.uber.org/zap"
)

// decision-export 将决策审计日志导出为 xlsx
//
//	decision-export -out decisions.xlsx -resource ambulance -since 2026-03-01T00:00:00Z
func main() {
	out := flag.String("out", "decisions.xlsx", "output .xlsx path")
	resource := flag.String("resource", "", "filter by required resource class")
	resolvedBy := flag.String("resolved-by", "", "filter by resolved_by (automatic|human)")
	since := flag.String("since", "", "only decisions resolved at or after this RFC3339 time")
	until := flag.String("until", "", "only decisions resolved before this RFC3339 time")
	limit := flag.Int("limit", 0, "maximum number of decisions (0 = no limit)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "decision-export")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	filters, err := buildFilters(*resource, *resolvedBy, *since, *until, *limit)
	if err != nil {
		logger.Fatal("Invalid arguments", zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := repository.NewPostgresStore(db, logger)
	decisions, err := store.ListDecisions(ctx, filters)
	if err != nil {
		logger.Fatal("Failed to list decisions", zap.Error(err))
	}

	f, err := os.Create(*out)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err), zap.String("path", *out))
	}
	if err := export.WriteDecisions(f, decisions); err != nil {
		f.Close()
		logger.Fatal("Failed to write workbook", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("Failed to close output file", zap.Error(err))
	}

	logger.Info("Decisions exported",
		zap.String("path", *out),
		zap.Int("count", len(decisions)),
	)
}

func buildFilters(resource, resolvedBy, since, until string, limit int) (repository.DecisionFilters, error) {
	filters := repository.DecisionFilters{Limit: limit}
	if resource != "" {
		filters.RequiredResource = &resource
	}
	if resolvedBy != "" {
		if resolvedBy != "automatic" && resolvedBy != "human" {
			return filters, fmt.Errorf("resolved-by must be automatic or human, got %q", resolvedBy)
		}
		filters.ResolvedBy = &resolvedBy
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filters, fmt.Errorf("invalid -since: %w", err)
		}
		filters.StartTime = &t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return filters, fmt.Errorf("invalid -until: %w", err)
		}
		filters.EndTime = &t
	}
	if limit < 0 {
		return filters, fmt.Errorf("limit must be >= 0")
	}
	return filters, nil
}
