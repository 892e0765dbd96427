package services

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "strconv"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/danlsims/AIChatbot/internal/logger"
  "github.com/danlsims/AIChatbot/internal/notify"
  "github.com/danlsims/AIChatbot/internal/repos"
  "github.com/danlsims/AIChatbot/internal/requestdata"
  "github.com/danlsims/AIChatbot/internal/types"
)

var (
  ErrConversationNotFound = errors.New("conversation not found")
  // ErrSendInFlight is returned when a send is attempted while an assistant
  // response for the same conversation is still streaming.
  ErrSendInFlight = errors.New("a response is already in flight for this conversation")
)

type ChatService interface {
  //Conversation Level
  CreateConversation(ctx context.Context, title string) (*types.Conversation, error)
  ListConversations(ctx context.Context) ([]*types.Conversation, error)
  GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error)
  RenameConversation(ctx context.Context, conversationID, title string) (*types.Conversation, error)
  DeleteConversation(ctx context.Context, conversationID string) error
  //Message Level
  GetMessages(ctx context.Context, conversationID string) ([]types.Message, error)
  SendMessage(ctx context.Context, conversationID, content string) (*types.Message, error)

  ClearCaches()
}

type chatService struct {
  db                *gorm.DB
  log               *logger.Logger
  conversationRepo  repos.ConversationRepo
  messageRepo       repos.MessageRepo
  agentService      AgentService
  registry          *notify.Registry
}

func NewChatService(db *gorm.DB, log *logger.Logger, conversationRepo repos.ConversationRepo, messageRepo repos.MessageRepo, agentService AgentService, registry *notify.Registry) ChatService {
  return &chatService{
    db:               db,
    log:              log.With("service", "ChatService"),
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
    agentService:     agentService,
    registry:         registry,
  }
}

//----------------------------------------------------------------------------------------------------------------------
// Conversation Management
//----------------------------------------------------------------------------------------------------------------------

func (cs *chatService) CreateConversation(ctx context.Context, title string) (*types.Conversation, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("no authenticated user in context")
  }
  now := time.Now().UTC()
  if title == "" {
    title = fmt.Sprintf("New Conversation %s", now.Format("1/2/2006"))
  }
  conv := &types.Conversation{
    ID:           newOpaqueID(),
    UserID:       rd.UserID,
    Title:        title,
    MessageCount: 0,
    CreatedAt:    now,
    UpdatedAt:    now,
  }
  created, err := cs.conversationRepo.Create(ctx, nil, conv)
  if err != nil {
    cs.log.Warn("Failed to create conversation, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to create conversation: %w", err)
  }
  cs.log.Info("Conversation created", "conversationID", created.ID)
  return created, nil
}

func (cs *chatService) ListConversations(ctx context.Context) ([]*types.Conversation, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("no authenticated user in context")
  }
  return cs.conversationRepo.ListByUser(ctx, nil, rd.UserID)
}

func (cs *chatService) GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("no authenticated user in context")
  }
  conv, err := cs.conversationRepo.GetByID(ctx, nil, rd.UserID, conversationID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrConversationNotFound
    }
    return nil, err
  }
  return conv, nil
}

func (cs *chatService) RenameConversation(ctx context.Context, conversationID, title string) (*types.Conversation, error) {
  if title == "" {
    return nil, fmt.Errorf("conversation title must not be empty")
  }
  conv, err := cs.GetConversation(ctx, conversationID)
  if err != nil {
    return nil, err
  }
  conv.Title = title
  conv.UpdatedAt = time.Now().UTC()
  updated, err := cs.conversationRepo.Update(ctx, nil, conv)
  if err != nil {
    cs.log.Warn("Failed to rename conversation, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to rename conversation: %w", err)
  }
  return updated, nil
}

// DeleteConversation removes the messages first so a failure part way
// through never leaves orphaned rows behind a missing conversation.
func (cs *chatService) DeleteConversation(ctx context.Context, conversationID string) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return fmt.Errorf("no authenticated user in context")
  }
  if _, err := cs.GetConversation(ctx, conversationID); err != nil {
    return err
  }
  return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := cs.messageRepo.DeleteByConversation(ctx, tx, conversationID); err != nil {
      return fmt.Errorf("Failed to delete conversation messages: %w", err)
    }
    if err := cs.conversationRepo.Delete(ctx, tx, rd.UserID, conversationID); err != nil {
      return fmt.Errorf("Failed to delete conversation: %w", err)
    }
    return nil
  })
}

//----------------------------------------------------------------------------------------------------------------------
// Message Management
//----------------------------------------------------------------------------------------------------------------------

func (cs *chatService) GetMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
  if _, err := cs.GetConversation(ctx, conversationID); err != nil {
    return nil, err
  }
  return cs.messageRepo.ListByConversation(ctx, nil, conversationID)
}

// SendMessage drives one full exchange: it durably records the user message,
// materializes the assistant's reply fragment by fragment, and keeps the
// store and the notification registry consistent with what the user sees at
// every intermediate step. Agent-invocation failures never surface as an
// error; they degrade to a completed assistant message explaining what
// happened.
func (cs *chatService) SendMessage(ctx context.Context, conversationID, content string) (*types.Message, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("no authenticated user in context")
  }
  conv, err := cs.GetConversation(ctx, conversationID)
  if err != nil {
    return nil, err
  }
  inFlight, err := cs.messageRepo.HasIncompleteAssistant(ctx, nil, conversationID)
  if err != nil {
    return nil, err
  }
  if inFlight {
    cs.log.Warn("Rejecting send while a response is still streaming", "conversationID", conversationID)
    return nil, ErrSendInFlight
  }

  now := time.Now().UTC()

  // The user message must be durably recorded before the agent is invoked,
  // so a failed invocation never loses what the user sent.
  userMessage := &types.Message{
    ID:             newOpaqueID(),
    ConversationID: conversationID,
    UserID:         rd.UserID,
    Role:           types.RoleUser,
    Content:        content,
    Timestamp:      now,
    IsComplete:     true,
  }
  if _, err := cs.messageRepo.Save(ctx, nil, userMessage); err != nil {
    cs.log.Warn("Failed to save user message, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to save user message: %w", err)
  }

  assistantMessage := &types.Message{
    ID:             newOpaqueID(),
    ConversationID: conversationID,
    UserID:         rd.UserID,
    Role:           types.RoleAssistant,
    Content:        "",
    Timestamp:      time.Now().UTC(),
    IsComplete:     false,
  }
  if _, err := cs.messageRepo.Save(ctx, nil, assistantMessage); err != nil {
    cs.log.Warn("Failed to save assistant placeholder, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to save assistant placeholder: %w", err)
  }

  conv.UpdatedAt = now
  conv.MessageCount = conv.MessageCount + 2
  if _, err := cs.conversationRepo.Update(ctx, nil, conv); err != nil {
    // Optimistic counter only; the exchange still proceeds.
    cs.log.Warn("Failed to bump conversation counters", "error", err)
  }

  // The conversation id doubles as the agent session id, which is how the
  // agent correlates this turn with the rest of the conversation.
  result, invokeErr := cs.agentService.InvokeAgent(ctx, conversationID, content, func(fragment string) error {
    assistantMessage.Content += fragment
    if _, err := cs.messageRepo.Save(ctx, nil, assistantMessage); err != nil {
      return err
    }
    cs.registry.Publish(*assistantMessage)
    return nil
  })
  if invokeErr != nil {
    assistantMessage.Content = agentFailureText(invokeErr)
    return cs.finalizeAssistantMessage(ctx, assistantMessage, nil)
  }
  if assistantMessage.Content == "" {
    assistantMessage.Content = "I received your message but got an empty response. Please try asking your question again."
  }
  return cs.finalizeAssistantMessage(ctx, assistantMessage, result)
}

func (cs *chatService) finalizeAssistantMessage(ctx context.Context, msg *types.Message, result *AgentResult) (*types.Message, error) {
  msg.IsComplete = true
  msg.Timestamp = time.Now().UTC()
  if result != nil && len(result.Citations) > 0 {
    msg.Citations = datatypes.JSON(result.Citations)
  }
  if _, err := cs.messageRepo.Save(ctx, nil, msg); err != nil {
    cs.log.Warn("Failed to save final assistant message, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to save final assistant message: %w", err)
  }
  cs.registry.Publish(*msg)
  return msg, nil
}

func (cs *chatService) ClearCaches() {
  cs.conversationRepo.ClearCache()
  cs.messageRepo.ClearCache()
}

// agentFailureText converts an agent-invocation failure into the sentence
// rendered in the assistant bubble.
func agentFailureText(err error) string {
  text := "Sorry, I encountered an error while processing your request. "
  var ae *AgentError
  if errors.As(err, &ae) {
    switch ae.StatusCode {
    case http.StatusUnauthorized, http.StatusForbidden:
      return text + "It seems there's a permission issue. Please check your credentials."
    case http.StatusBadRequest, http.StatusUnprocessableEntity:
      return text + "There was a validation error with the request."
    case http.StatusTooManyRequests:
      return text + "The service is currently busy. Please try again in a moment."
    case http.StatusNotFound:
      return text + "The agent could not be found. Please check the configuration."
    }
  }
  return text + fmt.Sprintf("Error: %v", err)
}

// newOpaqueID mints a server-assigned id: millisecond timestamp in base 36
// plus a random suffix. Never collides with the client's provisional
// prefixes.
func newOpaqueID() string {
  return strconv.FormatInt(time.Now().UnixMilli(), 36) + uuid.NewString()[:8]
}
