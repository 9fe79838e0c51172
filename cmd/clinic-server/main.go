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

	"github.com/clinicplus/api/internal/config"
	"github.com/clinicplus/api/internal/domain/clinic"
	"github.com/clinicplus/api/internal/domain/scheduler"
	"github.com/clinicplus/api/internal/domain/waitlist"
	"github.com/clinicplus/api/internal/platform/auth"
	"github.com/clinicplus/api/internal/platform/db"
	"github.com/clinicplus/api/internal/platform/holiday"
	"github.com/clinicplus/api/internal/platform/middleware"
	"github.com/clinicplus/api/internal/platform/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic realtime API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(holidaysCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
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
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			subdomain, _ := cmd.Flags().GetString("subdomain")
			if name == "" || subdomain == "" {
				return fmt.Errorf("--name and --subdomain are required")
			}

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

			cl := &clinic.Clinic{Name: name, Subdomain: subdomain, Active: true}
			if err := clinic.NewRepoPG(pool).Create(ctx, cl); err != nil {
				return fmt.Errorf("creating clinic: %w", err)
			}
			fmt.Printf("Created clinic %d (%s) at subdomain %q\n", cl.ID, cl.Name, cl.Subdomain)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic display name")
	createCmd.Flags().String("subdomain", "", "Clinic subdomain")
	cmd.AddCommand(createCmd)

	return cmd
}

func holidaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Manage stored holidays",
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch a year's holidays and store them",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			if year == 0 {
				year = time.Now().Year()
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.HolidayAPIToken == "" {
				return fmt.Errorf("HOLIDAY_API_TOKEN is required")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			client := holiday.NewClient(cfg.HolidayAPIURL, cfg.HolidayAPIToken, cfg.HolidayState)
			count, err := holiday.Sync(ctx, client, holiday.NewStore(pool), year)
			if err != nil {
				return fmt.Errorf("holiday sync failed: %w", err)
			}
			fmt.Printf("Stored %d holiday(s) for %d.\n", count, year)
			return nil
		},
	}
	syncCmd.Flags().Int("year", 0, "Year to sync (defaults to the current year)")
	cmd.AddCommand(syncCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Repositories and services
	clinicRepo := clinic.NewRepoPG(pool)
	eventRepo := scheduler.NewRepoPG(pool)
	holidayStore := holiday.NewStore(pool)
	schedulerSvc := scheduler.NewService(eventRepo, clinicRepo, holidayStore)
	authClient := auth.NewClient(cfg.AuthAPIURL, cfg.AuthAPIKey)

	// Realtime hubs, one dispatcher goroutine each
	hubCtx, hubCancel := context.WithCancel(ctx)
	defer hubCancel()

	waitHub := ws.NewHub(logger)
	waitManager := waitlist.NewManager(waitHub, authClient, logger)
	waitDispatcher := ws.NewDispatcher(waitHub, waitManager, waitlist.MsgError, 256, logger)
	go waitDispatcher.Run(hubCtx)

	schedHub := ws.NewHub(logger)
	schedManager := scheduler.NewManager(schedHub, authClient, schedulerSvc, logger)
	schedDispatcher := ws.NewDispatcher(schedHub, schedManager, scheduler.MsgError, 256, logger)
	go schedDispatcher.Run(hubCtx)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Clinic"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Rate limiting on the API surface
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))

	// WebSocket endpoints authenticate in-band via the connection
	// handshake, so they sit outside the JWT middleware.
	waitlist.NewHandler(waitHub, waitDispatcher, clinicRepo, logger).Register(apiV1)
	scheduler.NewHandler(schedHub, schedDispatcher, clinicRepo, logger).Register(apiV1)

	// REST surface: JWT-verified, clinic-resolved, audited
	protected := apiV1.Group("",
		auth.JWTMiddleware([]byte(cfg.JWTSecret)),
		db.ClinicMiddleware(clinicRepo, cfg.DefaultClinic),
		middleware.Audit(logger),
	)
	protected.GET("/me", meHandler)
	protected.GET("/clinic", clinicHandler, auth.Require("clinic:clinic:view"))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	hubCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// meHandler returns the verified token claims of the caller.
func meHandler(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing claims")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"userId":       claims.UserID,
		"clinicId":     claims.ClinicID,
		"superuser":    claims.Superuser,
		"clinicMaster": claims.ClinicMaster,
		"permissions":  claims.Permissions,
	})
}

// clinicHandler returns the clinic resolved for the request.
func clinicHandler(c echo.Context) error {
	cl, ok := c.Get("clinic").(*clinic.Clinic)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no clinic resolved")
	}
	return c.JSON(http.StatusOK, cl)
}
