// Package main is the entry point for the scribe MCP server binary.
// scribe mediates structured progress logging for autonomous coding
// agents over a single stdio JSON-RPC connection per process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kdlbs/scribe-mcp/internal/common/config"
	"github.com/kdlbs/scribe-mcp/internal/common/logger"
	"github.com/kdlbs/scribe-mcp/internal/docs"
	"github.com/kdlbs/scribe-mcp/internal/execctx"
	"github.com/kdlbs/scribe-mcp/internal/logging"
	"github.com/kdlbs/scribe-mcp/internal/mcpserver"
	"github.com/kdlbs/scribe-mcp/internal/plugin"
	"github.com/kdlbs/scribe-mcp/internal/projectctx"
	"github.com/kdlbs/scribe-mcp/internal/reminders"
	"github.com/kdlbs/scribe-mcp/internal/repo"
	"github.com/kdlbs/scribe-mcp/internal/sandbox"
	"github.com/kdlbs/scribe-mcp/internal/storage"
	"github.com/kdlbs/scribe-mcp/internal/toolrouter"
)

var repoRootFlag = flag.String("repo-root", "", "Repository root to serve (defaults to the current directory, discovering upward for .scribe or a VCS marker)")

func main() {
	flag.Parse()

	startPath := envOr("SCRIBE_REPO_ROOT", *repoRootFlag)
	if startPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "scribe: resolve working directory: %v\n", err)
			os.Exit(1)
		}
		startPath = wd
	}

	procCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      procCfg.Logging.Level,
		Format:     procCfg.Logging.Format,
		OutputPath: procCfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if err := run(startPath, procCfg, log); err != nil {
		log.Error("scribe server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(startPath string, procCfg *config.Config, log *logger.Logger) error {
	repoCfg, err := repo.DiscoverOrCreate(startPath)
	if err != nil {
		return fmt.Errorf("discover repository: %w", err)
	}
	if err := repo.EnsureConfig(repoCfg); err != nil {
		return fmt.Errorf("ensure repo config: %w", err)
	}

	log.Info("resolved repository",
		zap.String("repo_slug", repoCfg.RepoSlug),
		zap.String("repo_root", repoCfg.RepoRoot),
		zap.String("storage_backend", repoCfg.StorageBackend))

	store, err := storage.Open(storage.Config{
		Backend: repoCfg.StorageBackend,
		DBPath:  repoCfg.DBPath,
		DBURL:   repoCfg.DBURL,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	safety := sandbox.NewSafety()

	registryCtx, stopRegistry := context.WithCancel(context.Background())
	defer stopRegistry()
	registry := plugin.NewRegistry(4, 64)
	registry.Start(registryCtx)

	docEngine := docs.NewEngine(store, safety, registry)
	logEngine := logging.NewEngine(store, registry)

	reminderSettings := reminders.DefaultSettings()
	reminderSettings.SessionAware = procCfg.Reminder.SessionAware
	reminderSettings.MaxPerResponse = procCfg.Reminder.MaxPerResponse
	reminderSettings.TeachingCap = procCfg.Reminder.TeachingCapCount
	reminderEngine, err := reminders.NewEngine(store, reminderSettings, procCfg.Reminder.CachePath)
	if err != nil {
		return fmt.Errorf("build reminder engine: %w", err)
	}

	sessions := execctx.NewManager(store)
	idleTTL := time.Duration(procCfg.Session.IdleTTLMinutes) * time.Minute
	projects := projectctx.NewManager(store, idleTTL)

	router := toolrouter.NewRouter(toolrouter.Deps{
		Store:     store,
		Safety:    safety,
		Config:    repoCfg,
		Sessions:  sessions,
		Projects:  projects,
		LogEngine: logEngine,
		DocEngine: docEngine,
		Reminders: reminderEngine,
		Registry:  registry,
	})

	srv := mcpserver.New(router, log)
	return srv.Serve()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
