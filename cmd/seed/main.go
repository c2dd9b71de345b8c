package main

import (
	"context"
	"os"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/service"
)

var seedAnimals = []service.UpsertAnimalInput{
	{ID: "dog-42", Name: "Rex", Species: "dog", Description: "Senior shepherd mix, loves long naps in the sun."},
	{ID: "dog-7", Name: "Luna", Species: "dog", Description: "Three-legged terrier with endless energy."},
	{ID: "cat-3", Name: "Mishka", Species: "cat", Description: "Shy tabby recovering from surgery."},
	{ID: "cat-11", Name: "Pepper", Species: "cat", Status: constants.AnimalStatusAdopted, Description: "Found a home in spring."},
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.Debug); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()

	// 动物档案
	animalService := service.NewAnimalService(repository.NewAnimalRepository(models.DB))
	for _, input := range seedAnimals {
		animal, err := animalService.Upsert(ctx, input)
		if err != nil {
			stdLog.Printf("Failed to seed animal %s: %v", input.ID, err)
			continue
		}
		stdLog.Printf("Seeded animal: %s (%s)", animal.ID, animal.Status)
	}

	// 演示账号，密码需满足密码策略
	authService := service.NewAuthService(cfg.JWT, repository.NewUserRepository(models.DB))
	authService.SetPasswordPolicy(cfg.Security.PasswordPolicy)
	accounts := []service.EnsureUserInput{
		{
			Email:       envOr("PP_SEED_MODERATOR_EMAIL", "moderator@pawpledge.local"),
			Password:    os.Getenv("PP_SEED_MODERATOR_PASSWORD"),
			DisplayName: "Shelter Moderator",
			Role:        constants.RoleModerator,
		},
		{
			Email:       envOr("PP_SEED_DONOR_EMAIL", "donor@pawpledge.local"),
			Password:    os.Getenv("PP_SEED_DONOR_PASSWORD"),
			DisplayName: "Demo Donor",
			Role:        constants.RoleUser,
		},
	}
	for _, account := range accounts {
		if account.Password == "" {
			stdLog.Printf("Skipped account %s: password env is not set", account.Email)
			continue
		}
		user, created, err := authService.EnsureUser(ctx, account)
		if err != nil {
			stdLog.Printf("Failed to seed account %s: %v", account.Email, err)
			continue
		}
		if created {
			stdLog.Printf("Created account: %s (%s)", user.Email, user.Role)
		} else {
			stdLog.Printf("Account already exists: %s", user.Email)
		}
	}

	stdLog.Printf("Seed finished")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
