package notify

import (
	"testing"
	"time"

	"github.com/danlsims/AIChatbot/internal/logger"
	"github.com/danlsims/AIChatbot/internal/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewRegistry(log)
}

func recv(t *testing.T, c chan types.Message) types.Message {
	t.Helper()
	select {
	case msg := <-c:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message update")
		return types.Message{}
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	r := newTestRegistry(t)
	subA := r.Subscribe("conv-1")
	defer subA.Cancel()
	subB := r.Subscribe("conv-1")
	defer subB.Cancel()

	r.Publish(types.Message{ID: "m1", ConversationID: "conv-1", Content: "hello"})

	if got := recv(t, subA.C); got.ID != "m1" {
		t.Errorf("subscriber A got %q, want m1", got.ID)
	}
	if got := recv(t, subB.C); got.ID != "m1" {
		t.Errorf("subscriber B got %q, want m1", got.ID)
	}
}

func TestPublishScopedToConversation(t *testing.T) {
	r := newTestRegistry(t)
	sub := r.Subscribe("conv-1")
	defer sub.Cancel()

	r.Publish(types.Message{ID: "other", ConversationID: "conv-2"})
	r.Publish(types.Message{ID: "mine", ConversationID: "conv-1"})

	if got := recv(t, sub.C); got.ID != "mine" {
		t.Errorf("got %q, want mine", got.ID)
	}
	select {
	case msg := <-sub.C:
		t.Errorf("unexpected extra message %q", msg.ID)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	r := newTestRegistry(t)
	sub := r.Subscribe("conv-1")
	sub.Cancel()
	// Cancel twice must be safe.
	sub.Cancel()

	r.Publish(types.Message{ID: "m1", ConversationID: "conv-1"})

	if _, open := <-sub.C; open {
		t.Error("channel still open after Cancel")
	}
	if len(r.subs["conv-1"]) != 0 {
		t.Errorf("registry still tracks %d subscriptions", len(r.subs["conv-1"]))
	}
}

func TestPublishNeverBlocksOnFullBuffer(t *testing.T) {
	r := newTestRegistry(t)
	sub := r.Subscribe("conv-1")
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer+10; i++ {
			r.Publish(types.Message{ID: "m", ConversationID: "conv-1"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a saturated subscriber")
	}
}
