package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/adapters/git"
	"github.com/xvierd/focus-cli/internal/adapters/notification"
	"github.com/xvierd/focus-cli/internal/adapters/storage"
	"github.com/xvierd/focus-cli/internal/adapters/tracker"
	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/logging"
	"github.com/xvierd/focus-cli/internal/ports"
	"github.com/xvierd/focus-cli/internal/services"
)

// appDeps groups all service-layer dependencies initialized at startup.
type appDeps struct {
	config     *config.Config
	configPath string
	logger     *zap.Logger
	storage    ports.Storage
	backend    *tracker.Client
	rules      *services.RuleStore
	controller *services.SessionController
	state      *services.StateService
	notifier   *notification.Notifier
}

// app holds all initialized service dependencies.
// Populated by initializeServices() and accessible to all commands.
var app appDeps

// loadConfig reads the config file and builds the logger. Flags override
// the file.
func loadConfig() error {
	var err error
	app.configPath = configFile
	if app.configPath == "" {
		if app.configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	app.config, err = config.LoadFrom(app.configPath)
	if err != nil {
		// If config loading fails, use defaults
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		app.config = config.DefaultConfig()
	}

	if backendURL != "" {
		app.config.Backend.BaseURL = backendURL
	}
	if dbPath == "" {
		dbPath = config.GetDBPath(app.config)
	} else if app.config.Log.File == "" {
		app.config.Log.File = filepath.Join(filepath.Dir(dbPath), "focus.log")
	}

	app.logger = logging.NewOrNop(app.config.Log.Level, config.GetLogPath(app.config))
	return nil
}

// initializeServices sets up all the required services and adapters.
func initializeServices() error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := context.Background()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var err error
	app.storage, err = storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.backend = tracker.NewClient(app.config.Backend.BaseURL,
		tracker.WithLogger(app.logger),
		tracker.WithTimeout(time.Duration(app.config.Backend.Timeout)),
	)
	app.notifier = notification.New(&app.config.Notifications)

	app.rules = services.NewRuleStore(app.storage, app.backend, app.logger)
	if err := app.rules.Load(ctx); err != nil {
		return err
	}
	if _, err := app.rules.SeedDefaults(ctx); err != nil {
		return err
	}

	workingDir, _ := os.Getwd()
	app.controller = services.NewSessionController(app.storage, app.rules, app.backend,
		services.WithControllerLogger(app.logger),
		services.WithGitDetector(git.NewDetector(), workingDir),
		services.WithNotifier(app.notifier),
		services.WithPollInterval(time.Duration(app.config.Poll.Interval)),
	)
	if err := app.controller.Init(ctx); err != nil {
		return err
	}
	app.state = services.NewStateService(app.storage, app.rules, app.controller)

	return nil
}

// cleanupServices closes all resources.
func cleanupServices() error {
	if app.controller != nil {
		app.controller.Close()
	}
	if app.logger != nil {
		_ = app.logger.Sync()
	}
	if app.storage != nil {
		err := app.storage.Close()
		app.storage = nil
		return err
	}
	return nil
}

// recoverSession adopts a backend timer started by another focus process.
// A backend that cannot be reached leaves the controller Idle.
func recoverSession(ctx context.Context) error {
	adopted, err := app.controller.Recover(ctx)
	if err != nil {
		app.logger.Warn("could not check backend timer", zap.Error(err))
		return err
	}
	if adopted {
		app.logger.Debug("resumed tracking of running session")
	}
	return nil
}

// setupSignalHandler sets up a context that cancels on interrupt signals.
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return ctx
}
