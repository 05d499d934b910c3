package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Armin-FalDiS/task-list-bot/internal/auditlog"
	"github.com/Armin-FalDiS/task-list-bot/internal/bot"
	"github.com/Armin-FalDiS/task-list-bot/internal/config"
	"github.com/Armin-FalDiS/task-list-bot/internal/lockfile"
	"github.com/Armin-FalDiS/task-list-bot/internal/monitor"
	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
	"github.com/Armin-FalDiS/task-list-bot/internal/telegram"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "run":
		runCmd(os.Args[2:])
	case "version":
		fmt.Printf("task-list-bot %s (%s)\n", Version, Commit)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `task-list-bot

Usage:
  task-list-bot init [flags]
  task-list-bot run [flags]
  task-list-bot version

Commands:
  init        Write a starter config file.
  run         Run the bot using the local config file. Requires TELEGRAM_BOT_TOKEN.
  version     Print build information.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := filepath.Clean(*cfgPath)
	if !*force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "config already exists: %s (use -force to overwrite)\n", path)
			os.Exit(1)
		}
	}

	if err := config.Save(path, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "write config failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", path)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	forceEmpty := fs.Bool("force-empty", false, "Start with an empty task list when the store document is corrupt")
	_ = fs.Parse(args)

	cfg, err := config.Load(filepath.Clean(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	token, err := config.BotToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// One instance per data dir; a second process would race the store file.
	lock, err := lockfile.AcquireDir(cfg.ResolvedDataDir())
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			fmt.Fprintf(os.Stderr, "another task-list-bot instance is already running for %s\n", cfg.ResolvedDataDir())
		} else {
			fmt.Fprintf(os.Stderr, "failed to lock data dir: %v\n", err)
		}
		os.Exit(1)
	}
	defer func() { _ = lock.Release() }()

	taskFile := cfg.ResolvedTaskFile()
	store, err := tasklist.Open(taskFile)
	if err != nil {
		if errors.Is(err, tasklist.ErrCorruptStore) && *forceEmpty {
			logger.Warn("task store is corrupt, starting empty as requested", "path", taskFile, "error", err)
			store = tasklist.NewEmpty(taskFile)
		} else {
			fmt.Fprintf(os.Stderr, "failed to open task store: %v\n", err)
			if errors.Is(err, tasklist.ErrCorruptStore) {
				fmt.Fprintf(os.Stderr, "inspect or move the file, or rerun with -force-empty to discard it\n")
			}
			os.Exit(1)
		}
	}

	engine, err := tasklist.New(tasklist.Options{
		Logger:     logger,
		Store:      store,
		MaxTasks:   cfg.MaxTasks,
		MaxTextLen: cfg.MaxTaskTextLen,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init engine: %v\n", err)
		os.Exit(1)
	}

	// The audit journal is an optional extra; a broken one must not keep the
	// bot down.
	var audit *auditlog.Store
	if a, err := auditlog.Open(auditlog.Options{
		Logger: logger,
		Path:   filepath.Join(cfg.ResolvedDataDir(), "audit.sqlite"),
	}); err != nil {
		logger.Warn("audit journal disabled", "error", err)
	} else {
		audit = a
		defer func() { _ = audit.Close() }()
	}

	client, err := telegram.NewClient(telegram.ClientOptions{
		Logger: logger,
		Token:  token,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init telegram client: %v\n", err)
		os.Exit(1)
	}

	b, err := bot.New(bot.Options{
		Logger:  logger,
		Config:  cfg,
		Client:  client,
		Engine:  engine,
		Store:   store,
		Audit:   audit,
		Monitor: monitor.NewService(logger),
		Version: Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init bot: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	logger.Info("starting task-list-bot", "version", Version, "transport", cfg.Transport, "store", taskFile)
	runErr := b.Run(ctx)

	// Every commit writes through, but a final save picks up a store created
	// with -force-empty that never saw a mutation.
	if err := store.Save(); err != nil {
		logger.Error("final store save failed", "error", err)
	}

	if runErr != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "bot exited with error: %v\n", runErr)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.TrimSpace(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.TrimSpace(cfg.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
