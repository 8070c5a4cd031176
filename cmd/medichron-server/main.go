package main

import (
	"context"
	"crypto/rand"
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

	"github.com/medichron/medichron/internal/config"
	"github.com/medichron/medichron/internal/domain/contact"
	"github.com/medichron/medichron/internal/domain/identity"
	"github.com/medichron/medichron/internal/domain/records"
	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
	"github.com/medichron/medichron/internal/platform/db"
	"github.com/medichron/medichron/internal/platform/middleware"
	"github.com/medichron/medichron/internal/platform/privacy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medichron-server",
		Short: "Medichron patient records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())

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

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
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
	cmd.AddCommand(statusCmd)

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-patients",
		Short: "Bulk-import patients from a CSV file",
		Long: "Reads a CSV file with columns username,email,password,first_name," +
			"last_name,national_id (plus optional phone,location) and registers " +
			"each row as a patient. The whole file is one transaction: any bad " +
			"row rolls everything back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			cipher, err := buildCipher(cfg, logger)
			if err != nil {
				return err
			}

			repo := identity.NewRepo(pool, cipher, logger)
			hasher := auth.NewPasswordHasher(cfg.BcryptCost)
			svc := identity.NewService(repo, hasher, nil)
			importer := identity.NewImporter(pool, svc)

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			count, err := importer.ImportPatients(ctx, f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d patient(s).\n", count)
			return nil
		},
	}
	cmd.Flags().String("file", "", "Path to the CSV file")
	return cmd
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// buildCipher constructs the national-ID field cipher. Without a configured
// key an ephemeral one is generated so local development works, but every
// stored ciphertext becomes unreadable on restart.
func buildCipher(cfg *config.Config, logger zerolog.Logger) (*privacy.FieldCipher, error) {
	key := cfg.EncryptionKeyBytes()
	if key == nil {
		ephemeral, err := privacy.NewEphemeralKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral encryption key: %w", err)
		}
		key = ephemeral
		logger.Warn().Msg("============================================================")
		logger.Warn().Msg("FIELD_ENCRYPTION_KEY is not set. Using an EPHEMERAL key.")
		logger.Warn().Msg("Every national-ID encrypted by this process becomes")
		logger.Warn().Msg("UNRECOVERABLE when the process restarts. Set a persistent")
		logger.Warn().Msg("64-hex-character key before storing real data.")
		logger.Warn().Msg("============================================================")
	}
	return privacy.NewFieldCipher(key)
}

func signingKey(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	// Dev fallback; config.Validate rejects an empty secret in production.
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET is not set; issued tokens will not survive a restart")
	return key, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	cipher, err := buildCipher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize field cipher")
	}

	key, err := signingKey(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize token signing key")
	}
	tokens := auth.NewTokenIssuer(key, "medichron", time.Duration(cfg.TokenTTLMinutes)*time.Minute)

	revoked := auth.NewRevocationStore()
	defer revoked.Close()

	viewPolicy, err := auth.ParseRecordViewPolicy(cfg.RecordViewPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid record view policy")
	}
	guard := auth.NewGuard(viewPolicy)
	logger.Info().Str("record_view_policy", string(viewPolicy)).Msg("authorization guard configured")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	// Route groups: the public surface carries registration, login, the QR
	// scan lookup, and contact submission; everything else needs a token.
	public := e.Group("/api/v1")
	authed := e.Group("/api/v1", auth.Middleware(tokens, revoked), middleware.Audit(logger))

	identityRepo := identity.NewRepo(pool, cipher, logger)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	identitySvc := identity.NewService(identityRepo, hasher, tokens)
	identityHandler := identity.NewHandler(identitySvc, revoked)
	identityHandler.RegisterRoutes(public, authed)

	recordsRepo := records.NewRepo(pool)
	recordsSvc := records.NewService(recordsRepo, identityRepo, guard)
	recordsHandler := records.NewHandler(recordsSvc)
	recordsHandler.RegisterRoutes(authed)

	contactRepo := contact.NewRepo(pool)
	contactSvc := contact.NewService(contactRepo)
	contactHandler := contact.NewHandler(contactSvc)
	contactHandler.RegisterRoutes(public, authed)

	// Start server with graceful shutdown
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
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// errorHandler maps domain errors onto stable HTTP statuses. Internal
// failures are logged with the request id and collapsed to a generic
// message so stack traces, ciphertext, and digests never reach a client.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := apperr.Status(err)
		message := apperr.Message(err)

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}

		if status >= http.StatusInternalServerError {
			requestID, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", requestID).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"error": message})
	}
}
