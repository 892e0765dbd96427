package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/utils"
)

// IngestionJob is the sync job the knowledge-base service starts when new
// documents land in the bucket.
type IngestionJob struct {
  ID        string    `json:"ingestionJobId"`
  Status    string    `json:"status"`
}

// KnowledgeBaseService triggers re-indexing of the knowledge base after a
// document upload or a bucket change event.
type KnowledgeBaseService interface {
  StartIngestionJob(ctx context.Context) (*IngestionJob, error)
}

type knowledgeBaseService struct {
  log               *logger.Logger
  client            *http.Client
  baseURL           string
  knowledgeBaseID   string
  dataSourceID      string
  apiKey            string
}

func NewKnowledgeBaseService(log *logger.Logger) (KnowledgeBaseService, error) {
  serviceLog := log.With("service", "KnowledgeBaseService")

  baseURL := utils.GetEnv("KB_SYNC_API_URL", "", serviceLog)
  if baseURL == "" {
    return nil, fmt.Errorf("missing KB_SYNC_API_URL environment variable")
  }
  knowledgeBaseID := utils.GetEnv("KB_ID", "", serviceLog)
  if knowledgeBaseID == "" {
    return nil, fmt.Errorf("missing KB_ID environment variable")
  }
  // The data source id sometimes arrives as a comma-joined list from the
  // provisioning stack; only the first entry is the real id.
  dataSourceID := utils.GetEnv("KB_DATA_SOURCE_ID", "", serviceLog)
  if dataSourceID == "" {
    return nil, fmt.Errorf("missing KB_DATA_SOURCE_ID environment variable")
  }
  if idx := strings.Index(dataSourceID, ","); idx >= 0 {
    dataSourceID = strings.TrimSpace(dataSourceID[:idx])
  }
  apiKey := utils.GetEnv("KB_API_KEY", "", serviceLog)
  if apiKey == "" {
    serviceLog.Warn("KB_API_KEY not set; sync calls might fail or be unauthorized")
  }

  httpClient := &http.Client{Timeout: 15 * time.Second}
  return &knowledgeBaseService{
    log:             serviceLog,
    client:          httpClient,
    baseURL:         baseURL,
    knowledgeBaseID: knowledgeBaseID,
    dataSourceID:    dataSourceID,
    apiKey:          apiKey,
  }, nil
}

func (ks *knowledgeBaseService) StartIngestionJob(ctx context.Context) (*IngestionJob, error) {
  payload, err := json.Marshal(map[string]string{
    "knowledgeBaseId": ks.knowledgeBaseID,
    "dataSourceId":    ks.dataSourceID,
  })
  if err != nil {
    return nil, err
  }
  reqURL := fmt.Sprintf("%s/knowledge-bases/%s/data-sources/%s/ingestion-jobs", ks.baseURL, ks.knowledgeBaseID, ks.dataSourceID)
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
  if err != nil {
    ks.log.Warn("failed to build ingestion job request", "error", err)
    return nil, err
  }
  req.Header.Set("Content-Type", "application/json")
  if ks.apiKey != "" {
    req.Header.Set("Authorization", "Bearer "+ks.apiKey)
  }

  resp, err := ks.client.Do(req)
  if err != nil {
    ks.log.Warn("failed to call knowledge-base sync endpoint", "error", err)
    return nil, err
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    bodyBytes, _ := io.ReadAll(resp.Body)
    ks.log.Warn("knowledge-base sync endpoint responded with non-2xx", "statusCode", resp.StatusCode, "body", string(bodyBytes))
    return nil, fmt.Errorf("ingestion job request failed with HTTP %d: %s", resp.StatusCode, string(bodyBytes))
  }

  var job IngestionJob
  if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
    ks.log.Warn("failed to decode ingestion job response", "error", err)
    return nil, fmt.Errorf("failed to decode ingestion job response: %w", err)
  }
  ks.log.Info("Ingestion job started successfully :)", "jobID", job.ID, "status", job.Status)
  return &job, nil
}
