package handlers

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/services"
)

type KBSyncHandler struct {
  log           *logger.Logger
  kbService     services.KnowledgeBaseService
}

func NewKBSyncHandler(log *logger.Logger, kbService services.KnowledgeBaseService) *KBSyncHandler {
  return &KBSyncHandler{
    log:       log.With("handler", "KBSyncHandler"),
    kbService: kbService,
  }
}

type bucketEventRecord struct {
  EventName     string      `json:"eventName"`
  ObjectKey     string      `json:"objectKey"`
}

// SyncEvents receives bucket change notifications and starts one ingestion
// job when any record is a newly created PDF. Deletions and non-PDF objects
// are ignored.
func (kh *KBSyncHandler) SyncEvents(c *gin.Context) {
  var req struct {
    Records       []bucketEventRecord     `json:"records"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }

  shouldSync := false
  for _, record := range req.Records {
    if !strings.HasPrefix(record.EventName, "ObjectCreated") {
      kh.log.Debug("skipping non-create bucket event", "eventName", record.EventName, "objectKey", record.ObjectKey)
      continue
    }
    if !strings.HasSuffix(strings.ToLower(record.ObjectKey), ".pdf") {
      kh.log.Debug("skipping non-pdf bucket event", "objectKey", record.ObjectKey)
      continue
    }
    shouldSync = true
  }
  if !shouldSync {
    c.JSON(http.StatusOK, gin.H{"message": "no relevant records, nothing to sync"})
    return
  }

  job, err := kh.kbService.StartIngestionJob(c.Request.Context())
  if err != nil {
    kh.log.Warn("failed to start ingestion job from bucket events", "error", err)
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start ingestion job"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"ingestionJob": job})
}
