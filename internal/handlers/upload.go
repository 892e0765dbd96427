package handlers

import (
  "fmt"
  "net/http"
  "path/filepath"
  "strings"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/services"
)

const maxUploadBytes = 50 << 20

type UploadHandler struct {
  log               *logger.Logger
  bucketService     services.BucketService
  kbService         services.KnowledgeBaseService
}

func NewUploadHandler(log *logger.Logger, bucketService services.BucketService, kbService services.KnowledgeBaseService) *UploadHandler {
  return &UploadHandler{
    log:           log.With("handler", "UploadHandler"),
    bucketService: bucketService,
    kbService:     kbService,
  }
}

// Upload receives a knowledge-base document, stores it in the bucket and
// kicks off an ingestion job so the new content becomes searchable.
func (uh *UploadHandler) Upload(c *gin.Context) {
  if !hasBearerTokenShape(c.GetHeader("Authorization")) {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token"})
    return
  }

  c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
  fileHeader, err := c.FormFile("file")
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
    return
  }
  if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
    c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are supported"})
    return
  }

  file, err := fileHeader.Open()
  if err != nil {
    uh.log.Warn("failed to open uploaded file", "error", err)
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
    return
  }
  defer file.Close()

  objectName := fmt.Sprintf("uploads/%d-%s", time.Now().UnixMilli(), filepath.Base(fileHeader.Filename))
  location, err := uh.bucketService.UploadDocument(c.Request.Context(), objectName, "application/pdf", file)
  if err != nil {
    uh.log.Warn("failed to upload document to bucket", "error", err)
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store document"})
    return
  }

  resp := gin.H{
    "fileName": fileHeader.Filename,
    "location": location,
  }
  job, err := uh.kbService.StartIngestionJob(c.Request.Context())
  if err != nil {
    // The document is already durable; the sync can be retried later.
    uh.log.Warn("document stored but ingestion job failed to start", "error", err, "location", location)
    resp["warning"] = "document stored but knowledge-base sync could not be started"
  } else {
    resp["ingestionJob"] = job
  }
  c.JSON(http.StatusOK, resp)
}

// hasBearerTokenShape checks the Authorization header carries something that
// looks like a JWT (three dot-separated segments). Signature verification
// happens upstream at the gateway; this only rejects obviously broken
// requests early.
func hasBearerTokenShape(header string) bool {
  if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
    return false
  }
  token := strings.TrimSpace(header[7:])
  if token == "" {
    return false
  }
  parts := strings.Split(token, ".")
  if len(parts) != 3 {
    return false
  }
  for _, p := range parts {
    if p == "" {
      return false
    }
  }
  return true
}
