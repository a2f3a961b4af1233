package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/config"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/handlers"
	"github.com/medialert/medialert-engine/pkg/logging"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/middleware"
	"github.com/medialert/medialert-engine/pkg/repositories"
	"github.com/medialert/medialert-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := cfg.Database.URL()
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(dbURL)))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             dbURL,
		ApplicationName: "medialert-engine",
		MaxConnections:  cfg.Database.MaxConnections,
		MinConnections:  cfg.Database.MinConnections,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	auditDB, err := database.NewConnection(ctx, &database.Config{
		URL:             dbURL,
		ApplicationName: "medialert-audit",
		MaxConnections:  cfg.Audit.MaxConnections,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect audit pool: %w", err)
	}
	defer auditDB.Close()

	if err := migrate(dbURL, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Repositories
	auditRepo := repositories.NewAuditRepository()
	userRepo := repositories.NewUserRepository(auditRepo, m)
	medicationRepo := repositories.NewMedicationRepository(auditRepo, m)
	alertRepo := repositories.NewAlertRepository(auditRepo, m)
	epsRepo := repositories.NewEPSRepository()

	// Services
	// Post-commit audit writes use their own pool so a saturated request pool
	// cannot starve them.
	recorder := audit.NewRecorder(auditDB, auditRepo, m, logger, audit.WithWriteTimeout(cfg.Audit.WriteTimeout))
	hasher := services.NewBcryptHasher(cfg.Security.BcryptCost)
	userService := services.NewUserService(userRepo, hasher, recorder, logger)
	medicationService := services.NewMedicationService(medicationRepo, recorder, logger)
	alertService := services.NewAlertService(alertRepo, userRepo, epsRepo, recorder, logger)
	epsService := services.NewEPSService(epsRepo, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	if err := bootstrapAdmin(ctx, db, userRepo, userService, cfg.Bootstrap, logger); err != nil {
		return err
	}

	// Auth
	validator, err := auth.NewHMACValidator(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(validator, logger), logger)
	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))

	// Routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, reg, logger).RegisterRoutes(mux)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMedicationsHandler(medicationService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewAlertsHandler(alertService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewAuditHandler(auditService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMeHandler(alertService, userService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewEPSHandler(epsService, logger).RegisterRoutes(mux, authMiddleware, scope)

	// The metrics middleware must sit directly on the mux to see route patterns.
	handler := middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogger(logger),
		middleware.Metrics(m),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting medialert-engine",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// migrate applies pending schema migrations over a short-lived database/sql handle.
func migrate(dbURL string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func bootstrapAdmin(
	ctx context.Context,
	db *database.DB,
	userRepo repositories.UserRepository,
	userService services.UserService,
	cfg config.BootstrapConfig,
	logger *zap.Logger,
) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	scopedCtx, cleanup, err := database.NewScopeProvider(db).WithScope(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire bootstrap connection: %w", err)
	}
	defer cleanup()

	_, err = services.EnsureInitialAdmin(scopedCtx, userRepo, userService, services.InitialAdmin{
		Name:       cfg.AdminName,
		NationalID: cfg.AdminNationalID,
		Email:      cfg.AdminEmail,
		Password:   cfg.AdminPassword,
	}, logger)
	return err
}
