package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sewaclinic/sewa/internal/config"
	"github.com/sewaclinic/sewa/internal/domain/billing"
	"github.com/sewaclinic/sewa/internal/domain/catalog"
	"github.com/sewaclinic/sewa/internal/domain/identity"
	"github.com/sewaclinic/sewa/internal/domain/inventory"
	"github.com/sewaclinic/sewa/internal/domain/organization"
	"github.com/sewaclinic/sewa/internal/domain/visit"
	"github.com/sewaclinic/sewa/internal/platform/auth"
	"github.com/sewaclinic/sewa/internal/platform/calendar"
	"github.com/sewaclinic/sewa/internal/platform/db"
	"github.com/sewaclinic/sewa/internal/platform/middleware"
	"github.com/sewaclinic/sewa/internal/platform/notify"
	"github.com/sewaclinic/sewa/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sewa-server",
		Short: "Sewa clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedAdminCmd())

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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the default organization and administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgName, _ := cmd.Flags().GetString("org")

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			orgID, err := ensureDefaultOrg(ctx, organization.NewService(organization.NewRepoPG(pool)), orgName)
			if err != nil {
				return err
			}

			userSvc := identity.NewService(identity.NewRepoPG(pool), []byte(cfg.JWTSecret),
				time.Duration(cfg.JWTTTLHours)*time.Hour, logger)
			if err := userSvc.Bootstrap(ctx, orgID); err != nil {
				return err
			}

			fmt.Printf("Administrator %q is ready (organization %s).\n", identity.BootstrapUsername, orgID)
			return nil
		},
	}
	cmd.Flags().String("org", "Main Clinic", "Name of the default organization")
	return cmd
}

// ensureDefaultOrg returns the id of the named organization, creating it when
// no organization exists yet.
func ensureDefaultOrg(ctx context.Context, orgSvc *organization.Service, name string) (string, error) {
	orgs, err := orgSvc.List(ctx)
	if err != nil {
		return "", err
	}
	for _, o := range orgs {
		if o.Name == name {
			return o.ID.String(), nil
		}
	}
	if len(orgs) > 0 {
		return orgs[0].ID.String(), nil
	}

	org := &organization.Organization{Name: name}
	if err := orgSvc.Create(ctx, org); err != nil {
		return "", err
	}
	return org.ID.String(), nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

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

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-Scope"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	// Services
	jwtSecret := []byte(cfg.JWTSecret)
	jwtTTL := time.Duration(cfg.JWTTTLHours) * time.Hour

	hub := notify.NewHub()
	cal := calendar.NewBikramSambat()

	orgRepo := organization.NewRepoPG(pool)
	orgSvc := organization.NewService(orgRepo)

	userRepo := identity.NewRepoPG(pool)
	userSvc := identity.NewService(userRepo, jwtSecret, jwtTTL, logger)

	medRepo := inventory.NewRepoPG(pool)
	medSvc := inventory.NewService(medRepo, hub)

	visitRepo := visit.NewRepoPG(pool)
	visitSvc := visit.NewService(visitRepo, cal, medSvc, hub)

	catalogRepo := catalog.NewRepoPG(pool)
	catalogSvc := catalog.NewService(catalogRepo)

	saleRepo := billing.NewRepoPG(pool)
	billSvc := billing.NewService(pool, saleRepo, visitRepo, medRepo, cfg.Store.TaxRate, hub)

	// Seed a first login on an empty install.
	if orgID, err := ensureDefaultOrg(ctx, orgSvc, "Main Clinic"); err != nil {
		logger.Warn().Err(err).Msg("could not ensure default organization")
	} else if err := userSvc.Bootstrap(ctx, orgID); err != nil {
		logger.Warn().Err(err).Msg("could not seed administrator")
	}

	// Routes. Login is the only endpoint outside the session middleware.
	identityHandler := identity.NewHandler(userSvc)

	public := e.Group("/api/v1")
	identityHandler.RegisterPublicRoutes(public)

	api := e.Group("/api/v1")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET not set, using permissive development auth")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(jwtSecret))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	identityHandler.RegisterRoutes(api)
	organization.NewHandler(orgSvc).RegisterRoutes(api)
	visit.NewHandler(visitSvc).RegisterRoutes(api)
	inventory.NewHandler(medSvc).RegisterRoutes(api)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)
	billing.NewHandler(billSvc).RegisterRoutes(api)
	reporting.NewHandler(pool).RegisterRoutes(api)
	notify.NewHandler(hub).RegisterRoutes(api)

	// Start
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
