package handlers

import (
  "encoding/json"
  "errors"
  "fmt"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/notify"
  "github.com/danlsims/AIChatbot/internal/services"
)

const streamHeartbeatInterval = 25 * time.Second

type StreamHandler struct {
  log             *logger.Logger
  chatService     services.ChatService
  registry        *notify.Registry
}

func NewStreamHandler(log *logger.Logger, chatService services.ChatService, registry *notify.Registry) *StreamHandler {
  return &StreamHandler{
    log:         log.With("handler", "StreamHandler"),
    chatService: chatService,
    registry:    registry,
  }
}

// Stream pushes message updates for one conversation over SSE. Each event is
// the full message snapshot, so a client that misses an event converges on
// the next one.
func (sh *StreamHandler) Stream(c *gin.Context) {
  conversationID := c.Param("conversationID")
  // Ownership check before any stream state is allocated.
  if _, err := sh.chatService.GetConversation(c.Request.Context(), conversationID); err != nil {
    if errors.Is(err, services.ErrConversationNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }

  flusher, ok := c.Writer.(http.Flusher)
  if !ok {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
    return
  }

  c.Writer.Header().Set("Content-Type", "text/event-stream")
  c.Writer.Header().Set("Cache-Control", "no-cache")
  c.Writer.Header().Set("Connection", "keep-alive")
  c.Writer.WriteHeader(http.StatusOK)
  flusher.Flush()

  sub := sh.registry.Subscribe(conversationID)
  defer sub.Cancel()

  heartbeat := time.NewTicker(streamHeartbeatInterval)
  defer heartbeat.Stop()

  ctx := c.Request.Context()
  for {
    select {
    case <-ctx.Done():
      sh.log.Debug("stream client disconnected", "conversationID", conversationID)
      return
    case <-heartbeat.C:
      fmt.Fprint(c.Writer, ": heartbeat\n\n")
      flusher.Flush()
    case msg, open := <-sub.C:
      if !open {
        return
      }
      payload, err := json.Marshal(msg)
      if err != nil {
        sh.log.Warn("failed to marshal message update for stream", "error", err)
        continue
      }
      fmt.Fprintf(c.Writer, "event: message\ndata: %s\n\n", payload)
      flusher.Flush()
    }
  }
}
