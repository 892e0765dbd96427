package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/errordata"
  "github.com/danlsims/AIChatbot/internal/services"
)

type ChatHandler struct {
  chatService     services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
  return &ChatHandler{chatService: chatService}
}

func (ch *ChatHandler) CreateConversation(c *gin.Context) {
  var req struct {
    Title       string      `json:"title"`
  }
  // An empty body is fine; the service picks a default title.
  _ = c.ShouldBindJSON(&req)
  conversation, err := ch.chatService.CreateConversation(c.Request.Context(), req.Title)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

func (ch *ChatHandler) ListConversations(c *gin.Context) {
  ctx := c.Request.Context()
  conversations, err := ch.chatService.ListConversations(ctx)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  resp := gin.H{"conversations": conversations}
  if ed := errordata.GetErrorData(ctx); ed != nil && ed.HasMessage() {
    resp["warning"] = ed.Message
  }
  c.JSON(http.StatusOK, resp)
}

func (ch *ChatHandler) GetConversation(c *gin.Context) {
  conversation, err := ch.chatService.GetConversation(c.Request.Context(), c.Param("conversationID"))
  if err != nil {
    if errors.Is(err, services.ErrConversationNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

func (ch *ChatHandler) RenameConversation(c *gin.Context) {
  var req struct {
    Title       string      `json:"title"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  conversation, err := ch.chatService.RenameConversation(c.Request.Context(), c.Param("conversationID"), req.Title)
  if err != nil {
    if errors.Is(err, services.ErrConversationNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

func (ch *ChatHandler) DeleteConversation(c *gin.Context) {
  err := ch.chatService.DeleteConversation(c.Request.Context(), c.Param("conversationID"))
  if err != nil {
    if errors.Is(err, services.ErrConversationNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"message": "conversation deleted successfully"})
}

func (ch *ChatHandler) GetMessages(c *gin.Context) {
  ctx := c.Request.Context()
  messages, err := ch.chatService.GetMessages(ctx, c.Param("conversationID"))
  if err != nil {
    if errors.Is(err, services.ErrConversationNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  resp := gin.H{"messages": messages}
  if ed := errordata.GetErrorData(ctx); ed != nil && ed.HasMessage() {
    resp["warning"] = ed.Message
  }
  c.JSON(http.StatusOK, resp)
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
  var req struct {
    Content       string      `json:"content"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
    return
  }
  message, err := ch.chatService.SendMessage(c.Request.Context(), c.Param("conversationID"), req.Content)
  if err != nil {
    switch {
    case errors.Is(err, services.ErrConversationNotFound):
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    case errors.Is(err, services.ErrSendInFlight):
      c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
    default:
      c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    }
    return
  }
  c.JSON(http.StatusOK, gin.H{"message": message})
}
