package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "os"
  "unicode/utf8"

  "github.com/danlsims/AIChatbot/internal/logger"
)

// AgentService drives the managed generative-agent endpoint. The completion
// arrives as a chunked body which is surfaced to the caller fragment by
// fragment; the caller awaits each fragment in turn, there is no parallel
// fragment processing.
type AgentService interface {
  InvokeAgent(ctx context.Context, sessionID, inputText string, onFragment func(fragment string) error) (*AgentResult, error)
}

// AgentResult carries whatever the agent returned besides the streamed text.
type AgentResult struct {
  Citations   json.RawMessage
}

// AgentError is a non-2xx response from the agent endpoint, kept with its
// status code so callers can distinguish failure categories.
type AgentError struct {
  StatusCode  int
  Body        string
}

func (e *AgentError) Error() string {
  return fmt.Sprintf("agent HTTP %d: %s", e.StatusCode, e.Body)
}

type agentService struct {
  log               *logger.Logger
  client            *http.Client
  baseURL           string
  agentID           string
  agentAliasID      string
  apiKey            string
}

func NewAgentService(log *logger.Logger) (AgentService, error) {
  serviceLog := log.With("service", "AgentService")
  baseURL := os.Getenv("AGENT_API_URL")
  if baseURL == "" {
    return nil, fmt.Errorf("missing AGENT_API_URL environment variable")
  }
  agentID := os.Getenv("AGENT_ID")
  if agentID == "" {
    return nil, fmt.Errorf("missing AGENT_ID environment variable")
  }
  agentAliasID := os.Getenv("AGENT_ALIAS_ID")
  if agentAliasID == "" {
    return nil, fmt.Errorf("missing AGENT_ALIAS_ID environment variable")
  }
  apiKey := os.Getenv("AGENT_API_KEY")
  if apiKey == "" {
    serviceLog.Warn("AGENT_API_KEY not set; calls might fail or be unauthorized")
  }
  // No overall timeout: the completion stream runs for an unbounded duration
  // and is bounded only by the request context.
  httpClient := &http.Client{}
  return &agentService{
    log:          serviceLog,
    client:       httpClient,
    baseURL:      baseURL,
    agentID:      agentID,
    agentAliasID: agentAliasID,
    apiKey:       apiKey,
  }, nil
}

func (as *agentService) InvokeAgent(ctx context.Context, sessionID, inputText string, onFragment func(fragment string) error) (*AgentResult, error) {
  body, err := json.Marshal(map[string]string{"inputText": inputText})
  if err != nil {
    return nil, err
  }
  reqURL := fmt.Sprintf("%s/agents/%s/aliases/%s/sessions/%s/text", as.baseURL, as.agentID, as.agentAliasID, sessionID)
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
  if err != nil {
    as.log.Warn("failed to build agent request", "error", err)
    return nil, err
  }
  req.Header.Set("Content-Type", "application/json")
  if as.apiKey != "" {
    req.Header.Set("Authorization", "Bearer "+as.apiKey)
  }

  resp, err := as.client.Do(req)
  if err != nil {
    as.log.Warn("failed to call agent endpoint", "error", err)
    return nil, err
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    bodyBytes, _ := io.ReadAll(resp.Body)
    as.log.Warn("agent endpoint responded with non-2xx", "statusCode", resp.StatusCode, "body", string(bodyBytes))
    return nil, &AgentError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
  }

  result := &AgentResult{}
  if raw := resp.Header.Get("X-Kb-Citations"); raw != "" {
    result.Citations = json.RawMessage(raw)
  }

  if err := as.consumeStream(resp.Body, onFragment); err != nil {
    return result, err
  }
  return result, nil
}

// consumeStream reads the chunked body and emits UTF-8 text fragments. A
// network chunk can split a multi-byte rune, so trailing incomplete bytes
// are held back until the next read.
func (as *agentService) consumeStream(r io.Reader, onFragment func(fragment string) error) error {
  buf := make([]byte, 4096)
  var pending []byte
  for {
    n, readErr := r.Read(buf)
    if n > 0 {
      pending = append(pending, buf[:n]...)
      cut := completeRuneBoundary(pending)
      if cut > 0 {
        fragment := string(pending[:cut])
        pending = append(pending[:0:0], pending[cut:]...)
        if err := onFragment(fragment); err != nil {
          return err
        }
      }
    }
    if readErr == io.EOF {
      if len(pending) > 0 {
        return onFragment(string(pending))
      }
      return nil
    }
    if readErr != nil {
      as.log.Warn("agent stream read failed", "error", readErr)
      return readErr
    }
  }
}

// completeRuneBoundary returns the length of the longest prefix of b that
// ends on a complete UTF-8 rune.
func completeRuneBoundary(b []byte) int {
  end := len(b)
  for back := 1; back <= utf8.UTFMax && back <= end; back++ {
    start := end - back
    if utf8.RuneStart(b[start]) {
      if utf8.FullRune(b[start:]) {
        return end
      }
      // Incomplete trailing sequence: hold it back.
      return start
    }
  }
  return end
}
