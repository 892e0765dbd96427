package repos

import (
    "context"
    "sort"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/danlsims/AIChatbot/internal/errordata"
    "github.com/danlsims/AIChatbot/internal/logger"
    "github.com/danlsims/AIChatbot/internal/storecache"
    "github.com/danlsims/AIChatbot/internal/types"
)

// listRetryDelay is how long ListByUser waits before its single automatic
// retry when the store read fails.
const listRetryDelay = 3 * time.Second

const conversationCacheSize = 256

type ConversationRepo interface {
    Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error)
    GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id string) (*types.Conversation, error)
    ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error)
    Update(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error)
    Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id string) error
    ClearCache()
}

type conversationRepo struct {
    db          *gorm.DB
    log         *logger.Logger
    cache       *storecache.Cache[*types.Conversation]
    retryDelay  time.Duration
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
    return &conversationRepo{
        db:         db,
        log:        baseLog.With("repo", "ConversationRepo"),
        cache:      storecache.New[*types.Conversation](conversationCacheSize),
        retryDelay: listRetryDelay,
    }
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    if err := tx.WithContext(ctx).Create(conv).Error; err != nil {
        cr.log.Error("failed to create conversation", "error", err)
        return nil, err
    }
    cr.cacheSnapshot(conv)
    return conv, nil
}

// GetByID hands out a detached copy, never the cached value itself. Callers
// mutate the returned conversation before writing it back through Update, and
// the cache must not pick those edits up until the store accepts them.
func (cr *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id string) (*types.Conversation, error) {
    if cached, ok := cr.cache.Get(id); ok && cached.UserID == userID {
        detached := *cached
        return &detached, nil
    }
    if tx == nil {
        tx = cr.db
    }
    var conv types.Conversation
    if err := tx.WithContext(ctx).
        Where("user_id = ? AND id = ?", userID, id).
        First(&conv).Error; err != nil {
        return nil, err
    }
    cr.cacheSnapshot(&conv)
    return &conv, nil
}

// cacheSnapshot stores a copy so later edits to the caller's value cannot
// leak into the cache.
func (cr *conversationRepo) cacheSnapshot(conv *types.Conversation) {
    snapshot := *conv
    cr.cache.Set(conv.ID, &snapshot)
}

// ListByUser reads the user's conversations newest first. On a store failure
// it retries once after a fixed delay, then degrades to last-known-good
// cached rows. An empty result is a legitimate state and never triggers the
// fallback.
func (cr *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    convs, err := cr.listOnce(ctx, tx, userID)
    if err != nil {
        cr.log.Warn("conversation list failed, retrying once", "error", err)
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(cr.retryDelay):
        }
        convs, err = cr.listOnce(ctx, tx, userID)
    }
    if err != nil {
        cr.log.Warn("conversation list retry failed, serving cached conversations", "error", err)
        if ed := errordata.GetErrorData(ctx); ed != nil {
            ed.SetMessage("conversation list served from cache")
        }
        return cr.cachedByUser(userID), nil
    }
    for _, conv := range convs {
        cr.cacheSnapshot(conv)
    }
    return convs, nil
}

func (cr *conversationRepo) listOnce(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
    var convs []*types.Conversation
    if err := tx.WithContext(ctx).
        Where("user_id = ?", userID).
        Order("created_at DESC").
        Limit(50).
        Find(&convs).Error; err != nil {
        return nil, err
    }
    return convs, nil
}

func (cr *conversationRepo) cachedByUser(userID uuid.UUID) []*types.Conversation {
    convs := make([]*types.Conversation, 0)
    for _, conv := range cr.cache.Values() {
        if conv.UserID == userID {
            detached := *conv
            convs = append(convs, &detached)
        }
    }
    sort.Slice(convs, func(i, j int) bool {
        return convs[i].CreatedAt.After(convs[j].CreatedAt)
    })
    return convs
}

func (cr *conversationRepo) Update(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    if err := tx.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("user_id = ? AND id = ?", conv.UserID, conv.ID).
        Updates(map[string]interface{}{
            "title":         conv.Title,
            "message_count": conv.MessageCount,
            "updated_at":    conv.UpdatedAt,
        }).Error; err != nil {
        cr.log.Error("failed to update conversation", "error", err)
        // The cached row may predate values the store just rejected, and it
        // must not outlive them either way. Drop it and let the next read
        // repopulate from the store.
        cr.cache.Delete(conv.ID)
        return nil, err
    }
    cr.cacheSnapshot(conv)
    return conv, nil
}

func (cr *conversationRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id string) error {
    if tx == nil {
        tx = cr.db
    }
    if err := tx.WithContext(ctx).
        Where("user_id = ? AND id = ?", userID, id).
        Delete(&types.Conversation{}).Error; err != nil {
        cr.log.Error("failed to delete conversation", "error", err)
        return err
    }
    cr.cache.Delete(id)
    return nil
}

func (cr *conversationRepo) ClearCache() {
    cr.cache.Clear()
}
