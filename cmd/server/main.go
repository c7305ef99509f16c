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

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"authapi/docs"
	"authapi/internal/auth"
	"authapi/internal/cache"
	"authapi/internal/config"
	"authapi/internal/db"
	"authapi/internal/handler"
	"authapi/internal/logger"
	"authapi/internal/mail"
	"authapi/internal/metrics"
	"authapi/internal/obs"
	"authapi/internal/otp"
	"authapi/internal/repository"
	"authapi/internal/router"
	"authapi/internal/service"
)

const version = "1.0.0"

// @title Auth API
// @version 1.0
// @description Authentication backend: registration, email verification, JWT sessions, password reset and profiles.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.AppName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB, cfg.ResetDB, log); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(ctx); err != nil {
		// The limiter and profile cache fail open; keep serving.
		log.Warn("redis unavailable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	jwtService, err := auth.NewJWTService(auth.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		AccessTTL:     cfg.JWT.AccessExpiresIn,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshExpiresIn,
		ResetSecret:   cfg.ResetSecret(),
		ResetTTL:      cfg.JWT.ResetExpiresIn,
	})
	if err != nil {
		return err
	}

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		jwtService,
		auth.NewBcryptHasher(cfg.BcryptCost),
		otp.NewEngine(cfg.OTP.TTL),
		mailer,
		service.WithRecorder(recorder),
		service.WithLogger(log.Named("auth")),
	)
	userService := service.NewUserService(userRepo, cacheClient)

	// Initialize handlers
	handlers := router.Handlers{
		Auth: handler.NewAuthHandler(authService, cfg.IsProduction()),
		User: handler.NewUserHandler(userService),
		Health: handler.NewHealthHandler(cfg.AppName, version, map[string]handler.PingFunc{
			"mysql": pingDB(gormDB),
			"redis": cacheClient.Ping,
		}),
	}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	router.Register(e, cfg, router.Deps{
		Log:      log,
		Verifier: jwtService,
		Counter:  cacheClient,
		Recorder: recorder,
		Tracing:  cfg.OTLPEndpoint != "",
	}, handlers)

	if cfg.SwaggerEnabled {
		log.Info("swagger documentation available", zap.String("url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html"))
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newMailer(cfg *config.Config, log *zap.Logger) (*mail.Mailer, error) {
	var sender mail.Sender
	if cfg.Email.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.MailFrom(),
		}, log.Named("smtp"))
	} else {
		log.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		sender = mail.NewLogSender(log.Named("mail"))
	}

	renderer, err := mail.NewRenderer(cfg.AppName)
	if err != nil {
		return nil, err
	}
	support := cfg.Email.SupportEmail
	if support == "" {
		support = cfg.MailFrom()
	}
	return mail.NewMailer(sender, renderer, support), nil
}

func pingDB(gormDB *gorm.DB) handler.PingFunc {
	return func(ctx context.Context) error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
