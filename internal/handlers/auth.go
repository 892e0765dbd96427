package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/services"
  "github.com/danlsims/AIChatbot/internal/types"
)

type AuthHandler struct {
  authService     services.AuthService
  chatService     services.ChatService
}

func NewAuthHandler(authService services.AuthService, chatService services.ChatService) *AuthHandler {
  return &AuthHandler{authService: authService, chatService: chatService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req struct {
    Email           string              `json:"email"`
    FirstName       string              `json:"first_name"`
    LastName        string              `json:"last_name"`
    Password        string              `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  user := types.User{
    Email:        req.Email,
    FirstName:    req.FirstName,
    LastName:     req.LastName,
    Password:     req.Password,
  }
  err := ah.authService.RegisterUser(c.Request.Context(), &user)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req struct {
    Email           string          `json:"email"`
    Password        string          `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  accessToken, refreshToken, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
    return
  }
  accessTTL := ah.authService.GetAccessTTL()
  expiresIn := int(accessTTL.Seconds())

  c.JSON(http.StatusOK, gin.H{"access_token": accessToken, "refresh_token": refreshToken, "expires_in": expiresIn})
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
  accessToken, refreshToken, err := ah.authService.Refresh(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
    return
  }
  accessTTL := ah.authService.GetAccessTTL()
  expiresIn := int(accessTTL.Seconds())

  c.JSON(http.StatusOK, gin.H{"access_token": accessToken, "refresh_token": refreshToken, "expires_in": expiresIn})
}

func (ah *AuthHandler) Logout(c *gin.Context) {
  err := ah.authService.Logout(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  // Cached conversations and messages do not outlive the session.
  ah.chatService.ClearCaches()
  c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (ah *AuthHandler) ChangePassword(c *gin.Context) {
  var req struct {
    CurrentPassword   string        `json:"current_password"`
    NewPassword       string        `json:"new_password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  err := ah.authService.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"message": "password changed successfully"})
}
