package seed

import (
  "context"
  "fmt"

  "gorm.io/gorm"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/repos"
  "github.com/danlsims/AIChatbot/internal/services"
  "github.com/danlsims/AIChatbot/internal/types"
  "github.com/danlsims/AIChatbot/internal/utils"
)

// SeedAll bootstraps the initial admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no user exists for that email yet.
func SeedAll(
  db            *gorm.DB,
  log           *logger.Logger,
  userRepo      repos.UserRepo,
  authService   services.AuthService,
) error {
  adminEmail := utils.GetEnv("ADMIN_EMAIL", "", log)
  adminPassword := utils.GetEnv("ADMIN_PASSWORD", "", log)
  if adminEmail == "" || adminPassword == "" {
    log.Info("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
    return nil
  }

  ctx := context.Background()
  exists, err := userRepo.EmailExists(ctx, nil, adminEmail)
  if err != nil {
    return fmt.Errorf("failed to check admin email existence: %w", err)
  }
  if exists {
    log.Info("Admin user already exists, skipping admin seed", "email", adminEmail)
    return nil
  }

  admin := &types.User{
    Email:     adminEmail,
    FirstName: "Admin",
    LastName:  "User",
    Password:  adminPassword,
  }
  if err := authService.RegisterUser(ctx, admin); err != nil {
    return fmt.Errorf("failed to seed admin user: %w", err)
  }
  log.Info("Admin user seeded successfully :)", "email", adminEmail)
  return nil
}
