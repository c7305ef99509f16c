package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"authapi/internal/auth"
	"authapi/internal/config"
	"authapi/internal/db"
	"authapi/internal/logger"
	"authapi/internal/model"
	"authapi/internal/repository"
)

// seedConfig describes the owner account to provision.
type seedConfig struct {
	Email     string `envconfig:"SEED_OWNER_EMAIL" required:"true"`
	Password  string `envconfig:"SEED_OWNER_PASSWORD" required:"true"`
	FirstName string `envconfig:"SEED_OWNER_FIRST_NAME" default:"System"`
	LastName  string `envconfig:"SEED_OWNER_LAST_NAME" default:"Owner"`
}

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

	var sc seedConfig
	if err := envconfig.Process("", &sc); err != nil {
		log.Fatal("seed config", zap.Error(err))
	}
	if len(sc.Password) < 8 {
		log.Fatal("SEED_OWNER_PASSWORD must be at least 8 characters")
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, log)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	if err := db.Migrate(gormDB, false, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewUserRepository(gormDB)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	created, err := seedOwner(ctx, repo, hasher, sc)
	if err != nil {
		log.Fatal("seed owner", zap.Error(err))
	}
	log.Info("owner account ready", zap.String("email", strings.ToLower(sc.Email)), zap.Bool("created", created))
}

// seedOwner creates the owner account, or promotes and resets an existing one.
func seedOwner(ctx context.Context, repo repository.UserRepository, hasher auth.PasswordHasher, sc seedConfig) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(sc.Email))
	hash, err := hasher.Hash(sc.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	existing, err := repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		owner := &model.User{
			FirstName:    sc.FirstName,
			LastName:     sc.LastName,
			Email:        email,
			PasswordHash: hash,
			Role:         model.RoleOwner,
			IsVerified:   true,
		}
		if err := repo.Create(ctx, owner); err != nil {
			return false, fmt.Errorf("create owner: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("find owner: %w", err)
	}

	_, err = repo.UpdateByID(ctx, existing.ID, map[string]interface{}{
		"password_hash":  hash,
		"role":           model.RoleOwner,
		"is_verified":    true,
		"otp":            nil,
		"otp_expires_at": nil,
	})
	if err != nil {
		return false, fmt.Errorf("update owner: %w", err)
	}
	return false, nil
}
