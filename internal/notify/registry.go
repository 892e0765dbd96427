package notify

import (
    "sync"

    "github.com/google/uuid"

    "github.com/danlsims/AIChatbot/internal/logger"
    "github.com/danlsims/AIChatbot/internal/types"
)

const subscriptionBuffer = 64

// Subscription is a scoped handle on one conversation's message-update feed.
// Cancel releases it; C is closed afterwards.
type Subscription struct {
    ID              uuid.UUID
    ConversationID  string
    C               chan types.Message

    registry        *Registry
    once            sync.Once
}

func (s *Subscription) Cancel() {
    s.once.Do(func() {
        s.registry.remove(s)
        close(s.C)
    })
}

// Registry fans streaming message updates out to every subscriber of the
// message's conversation. Multiple UI surfaces can observe the same
// conversation independently; subscribing never clobbers anyone else's
// registration.
type Registry struct {
    log         *logger.Logger
    mu          sync.RWMutex
    subs        map[string]map[uuid.UUID]*Subscription

    redisPubSub *RedisPubSub
}

func NewRegistry(log *logger.Logger) *Registry {
    return &Registry{
        log:  log.With("component", "NotifyRegistry"),
        subs: make(map[string]map[uuid.UUID]*Subscription),
    }
}

func (r *Registry) SetRedisPubSub(rp *RedisPubSub) {
    r.redisPubSub = rp
}

func (r *Registry) Subscribe(conversationID string) *Subscription {
    sub := &Subscription{
        ID:             uuid.New(),
        ConversationID: conversationID,
        C:              make(chan types.Message, subscriptionBuffer),
        registry:       r,
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.subs[conversationID] == nil {
        r.subs[conversationID] = make(map[uuid.UUID]*Subscription)
    }
    r.subs[conversationID][sub.ID] = sub
    r.log.Debug("subscriber added", "subscription", sub.ID, "conversationID", conversationID)
    return sub
}

func (r *Registry) remove(sub *Subscription) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if subsMap, ok := r.subs[sub.ConversationID]; ok {
        delete(subsMap, sub.ID)
        if len(subsMap) == 0 {
            delete(r.subs, sub.ConversationID)
        }
    }
}

// Publish delivers the update locally and, when redis is wired, to the other
// nodes as well.
func (r *Registry) Publish(msg types.Message) {
    r.publishLocal(msg)
    if r.redisPubSub != nil {
        if err := r.redisPubSub.Publish(msg); err != nil {
            r.log.Warn("Failed to publish message update to Redis", "error", err)
        }
    }
}

func (r *Registry) publishLocal(msg types.Message) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    subsMap, ok := r.subs[msg.ConversationID]
    if !ok {
        return
    }
    for _, sub := range subsMap {
        select {
        case sub.C <- msg:
        default:
            r.log.Warn("Dropping message update; subscriber buffer full", "subscription", sub.ID, "conversationID", msg.ConversationID)
        }
    }
}
