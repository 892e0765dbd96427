package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/handlers"
  "github.com/danlsims/AIChatbot/internal/middleware"
)

type RouterConfig struct {
  AuthHandler           *handlers.AuthHandler
  AuthMiddleware        *middleware.AuthMiddleware
  MeHandler             *handlers.MeHandler
  ChatHandler           *handlers.ChatHandler
  StreamHandler         *handlers.StreamHandler
  UploadHandler         *handlers.UploadHandler
  KBSyncHandler         *handlers.KBSyncHandler
  AllowedOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  allowedOrigins := cfg.AllowedOrigins
  if len(allowedOrigins) == 0 {
    allowedOrigins = []string{"http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowedOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))
  router.Use(middleware.AttachErrorData())

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
    // Upload does its own bearer shape check; signatures are verified at the
    // gateway in front of this service.
    api.POST("/kb/upload", cfg.UploadHandler.Upload)
    api.POST("/kb/sync-events", cfg.KBSyncHandler.SyncEvents)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  protected.POST("/password", cfg.AuthHandler.ChangePassword)

  //ME
  protected.GET("/me", cfg.MeHandler.GetMe)

  //Conversations
  protected.POST("/conversations", cfg.ChatHandler.CreateConversation)
  protected.GET("/conversations", cfg.ChatHandler.ListConversations)
  protected.GET("/conversations/:conversationID", cfg.ChatHandler.GetConversation)
  protected.PATCH("/conversations/:conversationID", cfg.ChatHandler.RenameConversation)
  protected.DELETE("/conversations/:conversationID", cfg.ChatHandler.DeleteConversation)
  protected.GET("/conversations/:conversationID/messages", cfg.ChatHandler.GetMessages)
  protected.POST("/conversations/:conversationID/messages", cfg.ChatHandler.SendMessage)
  protected.GET("/conversations/:conversationID/stream", cfg.StreamHandler.Stream)

  return router
}
