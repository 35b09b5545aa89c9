package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthwatch/healthwatch/internal/config"
	"github.com/healthwatch/healthwatch/internal/domain/insight"
	"github.com/healthwatch/healthwatch/internal/domain/monitoring"
	"github.com/healthwatch/healthwatch/internal/platform/auth"
	"github.com/healthwatch/healthwatch/internal/platform/db"
	"github.com/healthwatch/healthwatch/internal/platform/events"
	"github.com/healthwatch/healthwatch/internal/platform/llm"
	"github.com/healthwatch/healthwatch/internal/platform/middleware"
	"github.com/healthwatch/healthwatch/internal/platform/telemetry"
	"github.com/healthwatch/healthwatch/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthwatch-server",
		Short: "Caregiver health-watch dashboard API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			autoMigrate, _ := cmd.Flags().GetBool("auto-migrate")
			return runServer(autoMigrate)
		},
	}
	cmd.Flags().Bool("auto-migrate", true, "Apply pending migrations and seed the demo patient on startup")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(os.Stdout, statuses)
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo patient dataset if it is not present",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			patientID, err := parsePatientID(cfg.PatientID)
			if err != nil {
				return err
			}
			seeded, err := seedPatient(ctx, pool, patientID, newLogger(cfg.Env, os.Stdout))
			if err != nil {
				return err
			}
			if seeded {
				fmt.Printf("Seeded patient %s.\n", patientID)
			} else {
				fmt.Printf("Patient %s already present, nothing to do.\n", patientID)
			}
			return nil
		},
	}
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func parsePatientID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid PATIENT_ID %q: %w", raw, err)
	}
	return id, nil
}

// buildCompleter returns nil when no usable credential is configured, so the
// generator goes straight to fallback text.
func buildCompleter(cfg *config.Config) insight.Completer {
	cred, ok := cfg.AICredential()
	if !ok {
		return nil
	}
	return llm.NewClient(cfg.LLMConfig(cred))
}

func buildPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

func seedPatient(ctx context.Context, pool *pgxpool.Pool, patientID uuid.UUID, logger zerolog.Logger) (bool, error) {
	data, err := monitoring.DefaultSeed()
	if err != nil {
		return false, err
	}
	seeder := monitoring.NewSeeder(
		monitoring.NewSeedRepoPG(pool),
		monitoring.NewInsightRepoPG(pool),
		db.NewTxManager(pool),
		logger,
	)
	return seeder.Seed(ctx, patientID, data)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

type serverDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	reg     *prometheus.Registry
	metrics *telemetry.Metrics
	checker db.HealthChecker
	handler *monitoring.Handler
}

func newEcho(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.logger)

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(d.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RequestTimeout(d.cfg.RequestTimeout()))

	// Auth middleware
	if d.cfg.IsDev() && d.cfg.AuthSigningKey == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(d.cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.checker))
	e.GET("/metrics", telemetry.Handler(d.reg))

	rl := middleware.DefaultRateLimitConfig()
	if d.cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = d.cfg.RateLimitRPS
	}
	if d.cfg.RateLimitBurst > 0 {
		rl.BurstSize = d.cfg.RateLimitBurst
	}
	api := e.Group("/api", middleware.RateLimit(rl))
	d.handler.RegisterRoutes(api)

	return e
}

func runServer(autoMigrate bool) error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	patientID, err := parsePatientID(cfg.PatientID)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if autoMigrate {
		n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", n).Msg("migrations up to date")

		seeded, err := seedPatient(ctx, pool, patientID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("seed failed")
		}
		if seeded {
			logger.Info().Str("patient_id", patientID.String()).Msg("seeded demo patient")
		}
	}

	reg := newRegistry()
	metrics := telemetry.NewMetrics(reg)

	completer := buildCompleter(cfg)
	gen := insight.NewGenerator(completer, logger, metrics)
	if !gen.Live() {
		logger.Warn().Msg("text generation disabled; insights will use fallback text")
	}

	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	svc := monitoring.NewService(patientID, monitoring.Repositories{
		Patients: monitoring.NewPatientRepoPG(pool),
		Vitals:   monitoring.NewVitalsRepoPG(pool),
		Metrics:  monitoring.NewMetricsRepoPG(pool),
		Insights: monitoring.NewInsightRepoPG(pool),
		Tx:       db.NewTxManager(pool),
	}, gen,
		monitoring.WithPublisher(publisher),
		monitoring.WithMetrics(metrics),
		monitoring.WithLogger(logger),
	)

	e := newEcho(serverDeps{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		metrics: metrics,
		checker: db.PoolChecker{Pool: pool},
		handler: monitoring.NewHandler(svc),
	})

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
