package repos

import (
    "context"
    "errors"

    "gorm.io/gorm"

    "github.com/danlsims/AIChatbot/internal/errordata"
    "github.com/danlsims/AIChatbot/internal/logger"
    "github.com/danlsims/AIChatbot/internal/reconcile"
    "github.com/danlsims/AIChatbot/internal/storecache"
    "github.com/danlsims/AIChatbot/internal/types"
)

// ErrCompleteRegression is returned when a write would flip an already
// complete message back to incomplete. The merge-time guard alone cannot
// protect reload-from-store paths, so the store client refuses the write too.
var ErrCompleteRegression = errors.New("refusing to overwrite a complete message with an incomplete one")

const messageCacheSize = 128

type MessageRepo interface {
    Save(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
    ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string) ([]types.Message, error)
    DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID string) error
    HasIncompleteAssistant(ctx context.Context, tx *gorm.DB, conversationID string) (bool, error)
    ClearCache()
}

type messageRepo struct {
    db          *gorm.DB
    log         *logger.Logger
    cache       *storecache.Cache[[]types.Message]
    policy      reconcile.DedupePolicy
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
    return &messageRepo{
        db:     db,
        log:    baseLog.With("repo", "MessageRepo"),
        cache:  storecache.New[[]types.Message](messageCacheSize),
        policy: reconcile.DefaultPolicy(),
    }
}

// Save upserts a message by id and writes through to the per-conversation
// cache. Streaming updates hit this repeatedly for the same id with growing
// content.
func (mr *messageRepo) Save(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    var existing types.Message
    err := tx.WithContext(ctx).Where("id = ?", msg.ID).First(&existing).Error
    switch {
    case err == nil:
        if existing.IsComplete && !msg.IsComplete {
            mr.log.Warn("rejected isComplete regression", "messageID", msg.ID)
            return nil, ErrCompleteRegression
        }
        if err := tx.WithContext(ctx).
            Model(&types.Message{}).
            Where("id = ?", msg.ID).
            Updates(map[string]interface{}{
                "content":     msg.Content,
                "timestamp":   msg.Timestamp,
                "is_complete": msg.IsComplete,
                "citations":   msg.Citations,
            }).Error; err != nil {
            mr.log.Error("failed to update message", "error", err, "messageID", msg.ID)
            return nil, err
        }
    case errors.Is(err, gorm.ErrRecordNotFound):
        if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
            mr.log.Error("failed to create message", "error", err, "messageID", msg.ID)
            return nil, err
        }
    default:
        mr.log.Error("failed to look up message before save", "error", err, "messageID", msg.ID)
        return nil, err
    }
    mr.writeThrough(*msg)
    return msg, nil
}

// writeThrough refreshes the cached snapshot after a successful store write.
// The just-persisted row is authoritative for its id, so the stale cached
// copy is dropped before the merge: the merge keeps ordering and dedupe
// semantics but would otherwise ignore an incomplete-over-incomplete update,
// pinning the first empty snapshot for the whole stream.
func (mr *messageRepo) writeThrough(msg types.Message) {
    cached, _ := mr.cache.Get(msg.ConversationID)
    pruned := make([]types.Message, 0, len(cached))
    for _, m := range cached {
        if m.ID != msg.ID {
            pruned = append(pruned, m)
        }
    }
    merged := reconcile.Merge(pruned, []types.Message{msg}, msg.ConversationID, mr.policy)
    mr.cache.Set(msg.ConversationID, merged)
}

// ListByConversation reads the conversation's messages ascending by timestamp.
// A successful store read is authoritative: the merge runs with the store
// rows as the base and the cache as the overlay, so a stale cached incomplete
// snapshot can never shadow a fresher store row, while a cached complete
// message that finalized after the read still supersedes the store's
// incomplete copy. The cached snapshot is served whole only when the store
// read itself fails.
func (mr *messageRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID string) ([]types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    var rows []types.Message
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", conversationID).
        Order("timestamp ASC").
        Find(&rows).Error; err != nil {
        mr.log.Warn("message list failed, serving cached messages", "error", err, "conversationID", conversationID)
        if ed := errordata.GetErrorData(ctx); ed != nil {
            ed.SetMessage("message list served from cache")
        }
        cached, _ := mr.cache.Get(conversationID)
        return cached, nil
    }
    cached, _ := mr.cache.Get(conversationID)
    merged := reconcile.Merge(rows, cached, conversationID, mr.policy)
    mr.cache.Set(conversationID, merged)
    return merged, nil
}

func (mr *messageRepo) DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID string) error {
    if tx == nil {
        tx = mr.db
    }
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", conversationID).
        Delete(&types.Message{}).Error; err != nil {
        mr.log.Error("failed to delete messages by conversation", "error", err, "conversationID", conversationID)
        return err
    }
    mr.cache.Delete(conversationID)
    return nil
}

func (mr *messageRepo) HasIncompleteAssistant(ctx context.Context, tx *gorm.DB, conversationID string) (bool, error) {
    if tx == nil {
        tx = mr.db
    }
    var count int64
    if err := tx.WithContext(ctx).
        Model(&types.Message{}).
        Where("conversation_id = ? AND role = ? AND is_complete = ?", conversationID, types.RoleAssistant, false).
        Count(&count).Error; err != nil {
        mr.log.Error("failed to count incomplete assistant messages", "error", err, "conversationID", conversationID)
        return false, err
    }
    return count > 0, nil
}

func (mr *messageRepo) ClearCache() {
    mr.cache.Clear()
}
