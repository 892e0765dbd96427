package reconcile

import (
  "fmt"
  "sort"
  "strings"
  "time"

  "github.com/google/uuid"

  "github.com/danlsims/AIChatbot/internal/types"
)

// Message id prefixes recognized across the system. Server-assigned ids are
// opaque tokens and never carry one of these.
const (
  // OptimisticUserPrefix marks a user message created locally before the
  // server confirmed it.
  OptimisticUserPrefix = "temp-user-"
  // PlaceholderPrefix marks a transient assistant message holding UI space
  // before any real content exists.
  PlaceholderPrefix = "placeholder-"
  // generatedPrefix is used when an incoming message arrives without an id.
  generatedPrefix = "generated-"
)

// DedupePolicy controls how optimistic user messages are matched against
// their server-confirmed counterparts: messages with near-identical content
// whose timestamps land within BucketTolerance buckets of BucketWidth each
// are considered the same message. Wider buckets or tolerance dedupe more
// aggressively at the cost of wrongly merging distinct messages with equal
// content sent close together.
type DedupePolicy struct {
  BucketWidth       time.Duration
  BucketTolerance   int
}

func DefaultPolicy() DedupePolicy {
  return DedupePolicy{
    BucketWidth:     5 * time.Second,
    BucketTolerance: 2,
  }
}

func (p DedupePolicy) bucket(t time.Time) int64 {
  width := p.BucketWidth.Milliseconds()
  if width <= 0 {
    width = 1
  }
  return t.UnixMilli() / width
}

func (p DedupePolicy) key(content string, bucket int64) string {
  return fmt.Sprintf("%s-%d", strings.TrimSpace(content), bucket)
}

// Merge reconciles the currently-displayed message sequence for one
// conversation with a newly-fetched or newly-pushed one, producing a single
// deduplicated sequence sorted ascending by timestamp.
//
// Merge never fails: messages from other conversations are filtered or
// coerced rather than rejected, missing ids are synthesized, and repeated
// application with the same incoming batch is idempotent. A complete message
// is never replaced by an incomplete one with the same id.
func Merge(existing, incoming []types.Message, conversationID string, policy DedupePolicy) []types.Message {
  // No conversation to merge against: prefer fresh data over a partial merge.
  if conversationID == "" {
    out := make([]types.Message, len(incoming))
    copy(out, incoming)
    return out
  }

  byID := make(map[string]int)
  optimisticByKey := make(map[string]string)
  merged := make([]types.Message, 0, len(existing)+len(incoming))

  for _, msg := range existing {
    if msg.ID == "" || msg.ConversationID != conversationID {
      continue
    }
    if strings.HasPrefix(msg.ID, OptimisticUserPrefix) {
      optimisticByKey[policy.key(msg.Content, policy.bucket(msg.Timestamp))] = msg.ID
    }
    if isPlaceholderOnly(msg) {
      continue
    }
    if _, seen := byID[msg.ID]; seen {
      continue
    }
    byID[msg.ID] = len(merged)
    merged = append(merged, msg)
  }

  for _, msg := range incoming {
    if msg.ID == "" {
      msg.ID = fmt.Sprintf("%s%d-%s", generatedPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
    }
    if msg.ConversationID != conversationID {
      msg.ConversationID = conversationID
    }

    // A server-confirmed user message supersedes the optimistic entry it
    // duplicates, matched by content within the tolerance window.
    if msg.Role == types.RoleUser && !strings.HasPrefix(msg.ID, OptimisticUserPrefix) && strings.TrimSpace(msg.Content) != "" {
      bucket := policy.bucket(msg.Timestamp)
      for off := int64(-policy.BucketTolerance); off <= int64(policy.BucketTolerance); off++ {
        mapKey := policy.key(msg.Content, bucket+off)
        tempID, ok := optimisticByKey[mapKey]
        if !ok {
          continue
        }
        if idx, present := byID[tempID]; present {
          merged = append(merged[:idx], merged[idx+1:]...)
          delete(byID, tempID)
          for id, i := range byID {
            if i > idx {
              byID[id] = i - 1
            }
          }
        }
        delete(optimisticByKey, mapKey)
        break
      }
    }

    if idx, present := byID[msg.ID]; !present {
      byID[msg.ID] = len(merged)
      merged = append(merged, msg)
    } else if msg.IsComplete && !merged[idx].IsComplete {
      // An incremental streaming update superseding a stale snapshot; the
      // reverse direction would regress a finished message and is ignored.
      merged[idx] = msg
    }
  }

  valid := merged[:0]
  for _, msg := range merged {
    if msg.ID != "" {
      valid = append(valid, msg)
    }
  }

  // Missing timestamps are the zero time and sort first.
  sort.SliceStable(valid, func(i, j int) bool {
    return valid[i].Timestamp.Before(valid[j].Timestamp)
  })
  return valid
}

// isPlaceholderOnly reports whether the message exists only to occupy UI
// space: a placeholder-prefixed id with no real content yet.
func isPlaceholderOnly(msg types.Message) bool {
  if !strings.HasPrefix(msg.ID, PlaceholderPrefix) {
    return false
  }
  trimmed := strings.TrimSpace(msg.Content)
  return trimmed == "" || trimmed == "..."
}
