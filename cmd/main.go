package main

import (
  "context"
  "fmt"
  "os"
  "strings"
  "time"

  "github.com/danlsims/AIChatbot/internal/db"
  "github.com/danlsims/AIChatbot/internal/handlers"
  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/middleware"
  "github.com/danlsims/AIChatbot/internal/notify"
  "github.com/danlsims/AIChatbot/internal/repos"
  "github.com/danlsims/AIChatbot/internal/seed"
  "github.com/danlsims/AIChatbot/internal/server"
  "github.com/danlsims/AIChatbot/internal/services"
  "github.com/danlsims/AIChatbot/internal/utils"
)

func main() {
  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  allowedOrigins := utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log)
  log.Info("Environment variables loaded for Main :)")

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("DB init failed, Cannot proceed.", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  conversationRepo := repos.NewConversationRepo(thePG, log)
  messageRepo := repos.NewMessageRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Notification Registry + Redis PubSub
  log.Info("Setting Up Notification Registry From Main Now :)")
  registry := notify.NewRegistry(log)
  redisChanName := "aichatbot_message_updates"
  redisPubSub, err := notify.NewRedisPubSub(log, redisAddress, redisPassword, redisChanName)
  if err != nil {
    log.Warn("Failed to init redis pubsub, running single-node", "error", err)
  } else {
    if err := redisPubSub.StartSubscriber(registry); err != nil {
      log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
    } else {
      registry.SetRedisPubSub(redisPubSub)
      log.Info("Redis pubsub is active!")
    }
  }
  log.Info("Notification Registry Set Up From Main Successful :)")

  // Services Setup
  log.Info("Setting up Services from Main now...")
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  meService := services.NewMeService(thePG, log, userRepo)
  agentService, err := services.NewAgentService(log)
  if err != nil {
    log.Error("Fatal error: Cannot init AgentService", "error", err)
    os.Exit(1)
  }
  chatService := services.NewChatService(thePG, log, conversationRepo, messageRepo, agentService, registry)
  bucketService, err := services.NewBucketService(context.Background(), log)
  if err != nil {
    log.Error("Fatal error: Cannot init BucketService", "error", err)
    os.Exit(1)
  }
  kbService, err := services.NewKnowledgeBaseService(log)
  if err != nil {
    log.Error("Fatal error: Cannot init KnowledgeBaseService", "error", err)
    os.Exit(1)
  }
  log.Info("Services Set Up From Main Successful :)")

  // Seed Setup
  log.Info("Attempting to Seed The Postgres From Main now...")
  if err := seed.SeedAll(thePG, log, userRepo, authService); err != nil {
    log.Warn("Failed to seed data :(", "error", err)
  }
  log.Info("Seeding of Postgres From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  authHandler := handlers.NewAuthHandler(authService, chatService)
  meHandler := handlers.NewMeHandler(meService)
  chatHandler := handlers.NewChatHandler(chatService)
  streamHandler := handlers.NewStreamHandler(log, chatService, registry)
  uploadHandler := handlers.NewUploadHandler(log, bucketService, kbService)
  kbSyncHandler := handlers.NewKBSyncHandler(log, kbService)
  log.Info("Handlers Set Up From Main Successful :)")

  // MiddleWare Setup
  log.Info("Setting Up Middleware from Main now...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)
  log.Info("Middleware Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:    authHandler,
    AuthMiddleware: authMiddleware,
    MeHandler:      meHandler,
    ChatHandler:    chatHandler,
    StreamHandler:  streamHandler,
    UploadHandler:  uploadHandler,
    KBSyncHandler:  kbSyncHandler,
    AllowedOrigins: strings.Split(allowedOrigins, ","),
  })
  log.Info("Router Set Up From Main Successful :)")

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }

  // On Shutdown
  if redisPubSub != nil {
    redisPubSub.Stop()
  }
}
