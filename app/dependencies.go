package app

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaims/coverd/auth"
	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/handlers"
	"github.com/openclaims/coverd/middleware"
	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"github.com/openclaims/coverd/repositories/postgres"
	"github.com/openclaims/coverd/services/events"
	"github.com/openclaims/coverd/services/ledger"
	"github.com/openclaims/coverd/services/lifecycle"
	"github.com/openclaims/coverd/services/oracle"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Policies      repositories.PolicyRepository
	ClaimRegistry repositories.ClaimRegistryRepository
	Events        repositories.EventRepository
	TxManager     repositories.TransactionManager

	// Collaborators
	Ledger   ledger.Ledger
	Oracle   *oracle.Adapter
	Recorder *events.Recorder

	// Engine
	Engine *lifecycle.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	PolicyHandler *handlers.PolicyHandler
	AdminHandler  *handlers.AdminHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initLedger(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	deps.initOracle(cfg)

	if err := deps.initRecorder(); err != nil {
		return nil, fmt.Errorf("failed to initialize event recorder: %w", err)
	}

	deps.initEngine(cfg)
	deps.initAuth(cfg)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Policies = repos.Policies
	d.ClaimRegistry = repos.ClaimRegistry
	d.Events = repos.Events
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initLedger selects the token ledger backend per configuration
func (d *Dependencies) initLedger(cfg *config.Config) error {
	switch cfg.Ledger.Mode {
	case config.LedgerModeMemory:
		d.Ledger = ledger.NewInMemory(models.NormalizeAddress(cfg.Engine.CustodyAddress), d.Logger)
		d.Logger.Warn("using in-memory ledger, balances are not durable")
	case config.LedgerModeRemote:
		d.Ledger = ledger.NewClient(cfg.Ledger, d.Logger)
		d.Logger.Info("using remote ledger", zap.String("base_url", cfg.Ledger.BaseURL))
	default:
		return fmt.Errorf("unknown ledger mode: %s", cfg.Ledger.Mode)
	}
	return nil
}

// initOracle builds the attestation registry from configured endpoints
func (d *Dependencies) initOracle(cfg *config.Config) {
	registry := oracle.NewRegistryFromConfig(cfg.Oracle)
	d.Oracle = oracle.NewAdapter(registry, d.Logger)

	if len(cfg.Oracle.Endpoints) == 0 {
		d.Logger.Warn("no attestation endpoints configured, verification relies on the local claim registry")
	} else {
		d.Logger.Info("attestation sources registered", zap.Int("count", len(cfg.Oracle.Endpoints)))
	}
}

// initRecorder starts the asynchronous event recorder
func (d *Dependencies) initRecorder() error {
	d.Recorder = events.NewRecorder(d.Events, d.Logger, events.DefaultConfig())
	if err := d.Recorder.Start(); err != nil {
		return err
	}
	d.Logger.Info("event recorder started")
	return nil
}

// initEngine wires the lifecycle engine from its collaborators
func (d *Dependencies) initEngine(cfg *config.Config) {
	d.Engine = lifecycle.NewService(
		d.Policies,
		d.ClaimRegistry,
		d.TxManager,
		d.Ledger,
		d.Oracle,
		d.Recorder,
		cfg.Engine,
		d.Logger,
	)
	d.Logger.Info("lifecycle engine initialized",
		zap.Duration("coverage_window", cfg.Engine.CoverageWindow),
		zap.Duration("grace_period", cfg.Engine.GracePeriod))
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	validator := auth.NewValidator(cfg.Auth)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, all bearer tokens will be rejected")
	}
}

func (d *Dependencies) initHandlers() {
	d.PolicyHandler = handlers.NewPolicyHandler(d.Engine, d.Events, d.Logger)
	d.AdminHandler = handlers.NewAdminHandler(d.Engine, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending events before the database goes away
	if d.Recorder != nil {
		if err := d.Recorder.Stop(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop event recorder: %w", err))
		} else {
			d.Logger.Info("event recorder stopped")
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
