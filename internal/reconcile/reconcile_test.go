package reconcile

import (
  "strings"
  "testing"
  "time"

  "github.com/danlsims/AIChatbot/internal/types"
)

var testPolicy = DefaultPolicy()

func msg(id, convID, role, content string, ts time.Time, complete bool) types.Message {
  return types.Message{
    ID:             id,
    ConversationID: convID,
    Role:           role,
    Content:        content,
    Timestamp:      ts,
    IsComplete:     complete,
  }
}

func ids(msgs []types.Message) []string {
  out := make([]string, 0, len(msgs))
  for _, m := range msgs {
    out = append(out, m.ID)
  }
  return out
}

func TestMergeOptimisticSupersession(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("temp-user-1", "c1", types.RoleUser, "hello", base, true),
  }
  incoming := []types.Message{
    msg("srv-99", "c1", types.RoleUser, "hello", base.Add(2*time.Second), true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  if len(merged) != 1 {
    t.Fatalf("expected 1 message, got %d: %v", len(merged), ids(merged))
  }
  if merged[0].ID != "srv-99" {
    t.Errorf("expected server message to supersede optimistic one, got id %q", merged[0].ID)
  }
}

func TestMergeOptimisticOutsideWindowKept(t *testing.T) {
  base := time.Now().Truncate(time.Minute)
  existing := []types.Message{
    msg("temp-user-1", "c1", types.RoleUser, "hello", base, true),
  }
  // Same content but 30s later, well outside the +/-2 bucket tolerance.
  incoming := []types.Message{
    msg("srv-99", "c1", types.RoleUser, "hello", base.Add(30*time.Second), true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  if len(merged) != 2 {
    t.Fatalf("expected both messages to survive, got %v", ids(merged))
  }
}

func TestMergePlaceholderEviction(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("placeholder-abc", "c1", types.RoleAssistant, "...", base, false),
  }
  incoming := []types.Message{
    msg("srv-1", "c1", types.RoleAssistant, "real answer", base.Add(time.Second), true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  for _, m := range merged {
    if strings.HasPrefix(m.ID, PlaceholderPrefix) {
      t.Errorf("placeholder %q survived the merge", m.ID)
    }
  }
  if len(merged) != 1 || merged[0].ID != "srv-1" {
    t.Errorf("expected only the real assistant message, got %v", ids(merged))
  }
}

func TestMergeCrossConversationFiltering(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a1", "c1", types.RoleUser, "one", base, true),
    msg("b1", "c2", types.RoleUser, "other conv", base, true),
  }
  incoming := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "two", base.Add(time.Second), true),
    msg("b2", "", types.RoleUser, "stray", base.Add(2*time.Second), true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  for _, m := range merged {
    if m.ConversationID != "c1" {
      t.Errorf("message %q has conversation id %q, want c1", m.ID, m.ConversationID)
    }
  }
  // b1 is filtered out, b2 is coerced in.
  if len(merged) != 3 {
    t.Errorf("expected 3 messages, got %v", ids(merged))
  }
}

func TestMergeNoDuplicateIDs(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a1", "c1", types.RoleUser, "one", base, true),
    msg("a2", "c1", types.RoleAssistant, "partial", base.Add(time.Second), false),
  }
  incoming := []types.Message{
    msg("a1", "c1", types.RoleUser, "one", base, true),
    msg("a2", "c1", types.RoleAssistant, "full", base.Add(time.Second), true),
    msg("a2", "c1", types.RoleAssistant, "full", base.Add(time.Second), true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  seen := map[string]bool{}
  for _, m := range merged {
    if seen[m.ID] {
      t.Errorf("duplicate id %q in merged output", m.ID)
    }
    seen[m.ID] = true
  }
}

func TestMergeCompleteReplacesIncomplete(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "partial", base, false),
  }
  incoming := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "final answer", base, true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  if len(merged) != 1 {
    t.Fatalf("expected 1 message, got %v", ids(merged))
  }
  if !merged[0].IsComplete || merged[0].Content != "final answer" {
    t.Errorf("complete incoming message should replace incomplete existing one, got %+v", merged[0])
  }
}

func TestMergeNeverRegressesComplete(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "final answer", base, true),
  }
  incoming := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "partial", base, false),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  if len(merged) != 1 {
    t.Fatalf("expected 1 message, got %v", ids(merged))
  }
  if !merged[0].IsComplete || merged[0].Content != "final answer" {
    t.Errorf("complete message regressed: %+v", merged[0])
  }
}

func TestMergeOrdering(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a3", "c1", types.RoleUser, "third", base.Add(2*time.Second), true),
    msg("a1", "c1", types.RoleUser, "first", base, true),
  }
  incoming := []types.Message{
    msg("a2", "c1", types.RoleAssistant, "second", base.Add(time.Second), true),
    msg("a0", "c1", types.RoleUser, "no timestamp", time.Time{}, true),
  }

  merged := Merge(existing, incoming, "c1", testPolicy)
  for i := 1; i < len(merged); i++ {
    if merged[i].Timestamp.Before(merged[i-1].Timestamp) {
      t.Fatalf("output not sorted ascending: %v", ids(merged))
    }
  }
  if merged[0].ID != "a0" {
    t.Errorf("message without timestamp should sort first, got %v", ids(merged))
  }
}

func TestMergeIdempotent(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("temp-user-1", "c1", types.RoleUser, "hello", base, true),
    msg("placeholder-x", "c1", types.RoleAssistant, "...", base.Add(time.Second), false),
    msg("a2", "c1", types.RoleAssistant, "partial", base.Add(time.Second), false),
  }
  incoming := []types.Message{
    msg("srv-1", "c1", types.RoleUser, "hello", base.Add(2*time.Second), true),
    msg("a2", "c1", types.RoleAssistant, "final", base.Add(3*time.Second), true),
  }

  once := Merge(existing, incoming, "c1", testPolicy)
  twice := Merge(once, incoming, "c1", testPolicy)

  if len(once) != len(twice) {
    t.Fatalf("idempotence violated: %v vs %v", ids(once), ids(twice))
  }
  for i := range once {
    if once[i].ID != twice[i].ID || once[i].Content != twice[i].Content || once[i].IsComplete != twice[i].IsComplete {
      t.Errorf("idempotence violated at %d: %+v vs %+v", i, once[i], twice[i])
    }
  }
}

func TestMergeEmptyConversationIDFailOpen(t *testing.T) {
  base := time.Now()
  existing := []types.Message{
    msg("a1", "c1", types.RoleUser, "old", base, true),
  }
  incoming := []types.Message{
    msg("b1", "c2", types.RoleUser, "fresh", base.Add(time.Second), true),
  }

  merged := Merge(existing, incoming, "", testPolicy)
  if len(merged) != 1 || merged[0].ID != "b1" {
    t.Errorf("expected incoming returned verbatim, got %v", ids(merged))
  }
}

func TestMergeSynthesizesMissingID(t *testing.T) {
  base := time.Now()
  incoming := []types.Message{
    msg("", "c1", types.RoleAssistant, "orphan", base, true),
  }

  merged := Merge(nil, incoming, "c1", testPolicy)
  if len(merged) != 1 {
    t.Fatalf("message without id was dropped")
  }
  if merged[0].ID == "" {
    t.Errorf("expected a synthesized id")
  }
}
