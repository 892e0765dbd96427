package services

import (
  "context"
  "fmt"
  "io"
  "time"

  "cloud.google.com/go/storage"
  "google.golang.org/api/option"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/utils"
)

// BucketService persists uploaded knowledge-base documents in object storage.
type BucketService interface {
  UploadDocument(ctx context.Context, objectName, contentType string, body io.Reader) (string, error)
}

type bucketService struct {
  log         *logger.Logger
  client      *storage.Client
  bucketName  string
}

func NewBucketService(ctx context.Context, log *logger.Logger) (BucketService, error) {
  serviceLog := log.With("service", "BucketService")

  bucketName := utils.GetEnv("KB_BUCKET_NAME", "", serviceLog)
  if bucketName == "" {
    return nil, fmt.Errorf("missing KB_BUCKET_NAME environment variable")
  }
  credentialsFile := utils.GetEnv("GCS_CREDENTIALS_FILE", "", serviceLog)

  var opts []option.ClientOption
  if credentialsFile != "" {
    opts = append(opts, option.WithCredentialsFile(credentialsFile))
  }
  serviceLog.Info("Attempting to create GCS storage client now...")
  client, err := storage.NewClient(ctx, opts...)
  if err != nil {
    serviceLog.Error("Failed to create GCS storage client", "error", err)
    return nil, fmt.Errorf("Failed to create GCS storage client: %w", err)
  }
  serviceLog.Info("Successfully created GCS storage client :)", "bucket", bucketName)

  return &bucketService{
    log:        serviceLog,
    client:     client,
    bucketName: bucketName,
  }, nil
}

// UploadDocument writes the document into the knowledge-base bucket and
// returns its object-store location. The metadata marks where the document
// came from so the ingestion pipeline can tell interface uploads apart from
// bulk loads.
func (bs *bucketService) UploadDocument(ctx context.Context, objectName, contentType string, body io.Reader) (string, error) {
  obj := bs.client.Bucket(bs.bucketName).Object(objectName)
  writer := obj.NewWriter(ctx)
  writer.ContentType = contentType
  writer.Metadata = map[string]string{
    "uploaded-by":      "web-interface",
    "upload-timestamp": time.Now().UTC().Format(time.RFC3339),
  }
  if _, err := io.Copy(writer, body); err != nil {
    writer.Close()
    bs.log.Warn("Failed to write document to bucket, Cannot proceed. Returning error.", "error", err, "object", objectName)
    return "", fmt.Errorf("Failed to write document to bucket: %w", err)
  }
  if err := writer.Close(); err != nil {
    bs.log.Warn("Failed to finalize document upload, Cannot proceed. Returning error.", "error", err, "object", objectName)
    return "", fmt.Errorf("Failed to finalize document upload: %w", err)
  }
  location := fmt.Sprintf("gs://%s/%s", bs.bucketName, objectName)
  bs.log.Info("Document uploaded successfully :)", "location", location)
  return location, nil
}
