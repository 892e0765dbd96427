package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/repos"
  "github.com/danlsims/AIChatbot/internal/requestdata"
  "github.com/danlsims/AIChatbot/internal/types"
)

type MeService interface {
  GetMe(ctx context.Context, tx *gorm.DB) (types.User, error)
}

type meService struct {
  db          *gorm.DB
  log         *logger.Logger
  userRepo    repos.UserRepo
}

func NewMeService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) MeService {
  serviceLog := log.With("service", "MeService")
  return &meService{
    db: db,
    log: serviceLog,
    userRepo: userRepo,
  }
}

func (ms *meService) GetMe(ctx context.Context, tx *gorm.DB) (types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    ms.log.Warn("Request Data is not set in context.")
    return types.User{}, fmt.Errorf("Request Data is not set in context.")
  }
  if rd.UserID == uuid.Nil {
    ms.log.Warn("User ID not set in Request Data.")
    return types.User{}, fmt.Errorf("User ID not set in Request Data.")
  }

  foundUsers, fErr := ms.userRepo.GetByIDs(ctx, tx, []uuid.UUID{rd.UserID})
  if fErr != nil {
    ms.log.Warn("Error fetching user:", "error", fErr)
    return types.User{}, fmt.Errorf("error fetching user: %w", fErr)
  }
  if len(foundUsers) == 0 {
    return types.User{}, fmt.Errorf("user does not exist")
  }
  return *foundUsers[0], nil
}
