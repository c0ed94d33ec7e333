package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinrx/clinrx/internal/config"
	"github.com/clinrx/clinrx/internal/domain/clinicalnotes"
	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/domain/exam"
	"github.com/clinrx/clinrx/internal/domain/intervention"
	"github.com/clinrx/clinrx/internal/domain/outlier"
	"github.com/clinrx/clinrx/internal/domain/patient"
	"github.com/clinrx/clinrx/internal/domain/prescription"
	"github.com/clinrx/clinrx/internal/domain/segment"
	"github.com/clinrx/clinrx/internal/domain/substance"
	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/auth"
	"github.com/clinrx/clinrx/internal/platform/cache"
	"github.com/clinrx/clinrx/internal/platform/db"
	"github.com/clinrx/clinrx/internal/platform/metrics"
	"github.com/clinrx/clinrx/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinrx-server",
		Short: "Clinical pharmacy decision support API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// targetSchemas resolves --schema and --all-tenants into the schemas to migrate.
func targetSchemas(ctx context.Context, cmd *cobra.Command, pool *pgxpool.Pool) ([]string, error) {
	schema, _ := cmd.Flags().GetString("schema")
	all, _ := cmd.Flags().GetBool("all-tenants")
	if !all {
		return []string{schema}, nil
	}
	tenants, err := db.TenantSchemas(ctx, pool)
	if err != nil {
		return nil, err
	}
	return append([]string{db.PublicSchema}, tenants...), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas, err := targetSchemas(ctx, cmd, pool)
			if err != nil {
				return err
			}
			for _, schema := range schemas {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.MigratorFor(pool, cfg.MigrationsDir, schema).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration of %s failed: %w", schema, err)
				}
				fmt.Printf("Applied %d migration(s) to %s.\n", count, schema)
			}
			return nil
		},
	}
	upCmd.Flags().String("schema", db.PublicSchema, "Target schema for migrations")
	upCmd.Flags().Bool("all-tenants", false, "Migrate public and every registered hospital schema")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas, err := targetSchemas(ctx, cmd, pool)
			if err != nil {
				return err
			}
			for _, schema := range schemas {
				statuses, err := db.MigratorFor(pool, cfg.MigrationsDir, schema).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status of %s: %w", schema, err)
				}

				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.PublicSchema, "Target schema for migrations")
	statusCmd.Flags().Bool("all-tenants", false, "Show public and every registered hospital schema")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage hospital schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate a hospital schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating hospital schema: %s\n", name)
			dir := db.ScopeDir(cfg.MigrationsDir, db.ScopeTenant)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			if _, err := pool.Exec(ctx, `
				INSERT INTO public.hospital_schema (schema_name, description) VALUES ($1, $2)
				ON CONFLICT (schema_name) DO UPDATE SET active = TRUE`, name, description); err != nil {
				return fmt.Errorf("register schema %s: %w", name, err)
			}
			fmt.Println("Hospital schema created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Schema name (lower case letters, digits and _)")
	createCmd.Flags().String("description", "", "Hospital description")

	cmd.AddCommand(createCmd)
	return cmd
}

type routeRegistrar interface {
	RegisterRoutes(g *echo.Group)
}

// buildServer wires every service onto a new echo instance. notes may be
// nil, in which case summaries are always computed from the database.
func buildServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, notes *cache.Cache) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Schema"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.IngestBodyLimit))
	e.Use(metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")

	jwtCfg := auth.JWTConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.AuthIssuer}
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg, cfg.DefaultSchema))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultSchema))
	apiV1.Use(db.Transaction(logger))
	apiV1.Use(middleware.Audit(logger))

	// Catalogs
	segmentSvc := segment.NewService(segment.NewRepoPG(pool))
	drugSvc := drug.NewService(drug.NewRepoPG(pool))
	substanceSvc, err := substance.NewService(substance.NewRepoPG(pool), cfg.RelationCacheSize)
	if err != nil {
		return nil, fmt.Errorf("substance service: %w", err)
	}

	// Patient context
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	examSvc := exam.NewService(exam.NewRepoPG(pool), patientSvc, segmentSvc)
	outlierSvc := outlier.NewService(outlier.NewRepoPG(pool), drugSvc)

	// Review
	prescriptionSvc := prescription.NewService(prescription.NewRepoPG(pool), prescription.Deps{
		Drugs:     drugSvc,
		Relations: substanceSvc,
		Patients:  patientSvc,
		Exams:     examSvc,
		Outliers:  outlierSvc,
	})
	interventionSvc := intervention.NewService(intervention.NewRepoPG(pool), prescriptionSvc, drugSvc)
	notesSvc := clinicalnotes.NewService(clinicalnotes.NewRepoPG(pool), notes)

	for _, h := range []routeRegistrar{
		segment.NewHandler(segmentSvc),
		drug.NewHandler(drugSvc),
		substance.NewHandler(substanceSvc),
		patient.NewHandler(patientSvc),
		exam.NewHandler(examSvc),
		outlier.NewHandler(outlierSvc),
		prescription.NewHandler(prescriptionSvc),
		intervention.NewHandler(interventionSvc),
		clinicalnotes.NewHandler(notesSvc),
	} {
		h.RegisterRoutes(apiV1)
	}

	return e, nil
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var notes *cache.Cache
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure redis")
		}
		defer client.Close()
		notes = cache.New(client, cfg.CacheTTL, logger)
		if err := notes.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, summaries will be computed from the database")
		} else {
			logger.Info().Msg("connected to redis")
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set, note summaries are not cached")
	}

	e, err := buildServer(cfg, logger, pool, notes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
