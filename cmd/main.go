package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-auth/config"
	"clinic-auth/controller"
	_ "clinic-auth/docs" // Import for swagger
	"clinic-auth/handler"
	"clinic-auth/migrations"
	"clinic-auth/pipeline"
	"clinic-auth/pkg/logger"
	"clinic-auth/repository"
	"clinic-auth/service"
	"clinic-auth/validator"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// @title Clinic Authentication Service API
// @version 1.0
// @description Phone OTP and password authentication for the clinic directory and booking platform
// @contact.name API Support
// @contact.email support@example.com
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
// @description Enter JWT Bearer token in format: Bearer {token}
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Mode)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Infow("Starting Clinic Authentication Service",
		"version", "1.0.0",
		"env", cfg.Application.Env,
		"port", cfg.HTTPServer.Port,
		"log_level", cfg.Logger.Level,
		"log_mode", cfg.Logger.Mode,
	)

	// Connect to database
	db, err := connectDB(cfg, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	log.Infow("Database connected successfully",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	// Run migrations
	if err := migrations.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatalw("Failed to run database migrations", "error", err)
	}
	if version, dirty, err := migrations.Version(cfg.Database.URL()); err == nil {
		log.Infow("Database migrations completed successfully", "version", version, "dirty", dirty)
	}

	// Connect to Redis for rate limiting and sessions
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalw("Failed to connect to Redis", "error", err)
	}

	log.Infow("Redis connected successfully", "host", cfg.Redis.Host, "port", cfg.Redis.Port)

	// Initialize validator
	v := validator.New()

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	otpStore := repository.NewOTPStore(db, service.NewNumericGenerator(), cfg.OTP.Length)
	rateLimitRepo := repository.NewRedisRateLimitRepository(redisClient, log)

	// Initialize services
	accountService := service.NewAccountService(accountRepo, log)
	tokenService := service.NewTokenService(redisClient, log)
	jwtService := service.NewJWTService(cfg, log, tokenService)
	otpService := service.NewOTPService(otpStore, rateLimitRepo, cfg, log)

	auth := pipeline.NewAuth(pipeline.AuthDeps{
		Accounts: accountRepo,
		Recorder: accountRepo,
		Hasher:   service.NewBcryptHasher(cfg.Security.BcryptCost),
		Tokens:   jwtService,
		OTP:      otpService,
		Notifier: service.NewLogNotifier(log),
		OTPTTL:   cfg.OTP.ExpirationTime,
		Logger:   log,
	})

	// Initialize controllers
	controllers := handler.Controllers{
		Auth: controller.NewAuthController(auth, jwtService, v, log),
		OTP:  controller.NewOTPController(auth, v, log),
		User: controller.NewUserController(accountService, log),
		Health: controller.NewHealthController(cfg.Application.Name, map[string]controller.HealthCheckFunc{
			"database": db.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Register routes
	handler.RegisterRoutes(e, controllers, jwtService, cfg, log)

	// Start server in a goroutine
	serverAddr := fmt.Sprintf(":%d", cfg.HTTPServer.Port)
	go func() {
		log.Infow("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Infow("Shutting down server gracefully...")

	// Create a deadline for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Application.GracefulShutdownTimeout)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Failed to shutdown server gracefully", "error", err)
		os.Exit(1)
	}

	log.Infow("Server shutdown completed successfully")
}

func connectDB(cfg *config.Config, log *logger.Logger) (*sqlx.DB, error) {
	const attempts = 30

	var db *sqlx.DB
	var err error

	// Retry while the database container starts
	for i := 0; i < attempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.Database.DSN())
		if err == nil {
			break
		}

		log.Warnw("Database connection attempt failed", "attempt", i+1, "max_attempts", attempts, "error", err)
		time.Sleep(1 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
