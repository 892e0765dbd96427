package handlers

import (
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "strings"
  "testing"

  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/logger"
)

func newKBSyncTestRouter(t *testing.T, kb *fakeKBService) *gin.Engine {
  t.Helper()
  gin.SetMode(gin.TestMode)
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  router := gin.New()
  kh := NewKBSyncHandler(log, kb)
  router.POST("/api/kb/sync-events", kh.SyncEvents)
  return router
}

func postSyncEvents(t *testing.T, router *gin.Engine, payload string) *httptest.ResponseRecorder {
  t.Helper()
  req := httptest.NewRequest(http.MethodPost, "/api/kb/sync-events", strings.NewReader(payload))
  req.Header.Set("Content-Type", "application/json")
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)
  return w
}

func TestSyncEventsStartsJobForCreatedPDF(t *testing.T) {
  kb := &fakeKBService{}
  router := newKBSyncTestRouter(t, kb)

  w := postSyncEvents(t, router, `{"records":[{"eventName":"ObjectCreated:Put","objectKey":"uploads/doc.pdf"}]}`)
  if w.Code != http.StatusOK {
    t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
  }
  if kb.started != 1 {
    t.Errorf("ingestion jobs started = %d, want 1", kb.started)
  }
  var resp map[string]interface{}
  if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
    t.Fatalf("decode response: %v", err)
  }
  if resp["ingestionJob"] == nil {
    t.Error("ingestionJob missing from response")
  }
}

func TestSyncEventsSkipsIrrelevantRecords(t *testing.T) {
  cases := []struct {
    name    string
    payload string
  }{
    {"deletion", `{"records":[{"eventName":"ObjectRemoved:Delete","objectKey":"uploads/doc.pdf"}]}`},
    {"non-pdf", `{"records":[{"eventName":"ObjectCreated:Put","objectKey":"uploads/readme.txt"}]}`},
    {"empty", `{"records":[]}`},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      kb := &fakeKBService{}
      router := newKBSyncTestRouter(t, kb)
      w := postSyncEvents(t, router, tc.payload)
      if w.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200", w.Code)
      }
      if kb.started != 0 {
        t.Errorf("ingestion jobs started = %d, want 0", kb.started)
      }
    })
  }
}

func TestSyncEventsSingleJobForMixedBatch(t *testing.T) {
  kb := &fakeKBService{}
  router := newKBSyncTestRouter(t, kb)

  payload := `{"records":[
    {"eventName":"ObjectCreated:Put","objectKey":"uploads/a.pdf"},
    {"eventName":"ObjectCreated:Put","objectKey":"uploads/b.PDF"},
    {"eventName":"ObjectRemoved:Delete","objectKey":"uploads/c.pdf"}
  ]}`
  w := postSyncEvents(t, router, payload)
  if w.Code != http.StatusOK {
    t.Fatalf("status = %d, want 200", w.Code)
  }
  if kb.started != 1 {
    t.Errorf("ingestion jobs started = %d, want exactly 1 for the whole batch", kb.started)
  }
}

func TestSyncEventsInvalidBody(t *testing.T) {
  router := newKBSyncTestRouter(t, &fakeKBService{})
  w := postSyncEvents(t, router, `not json`)
  if w.Code != http.StatusBadRequest {
    t.Errorf("status = %d, want 400", w.Code)
  }
}
