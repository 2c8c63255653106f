package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adapter "marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/config"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]entity.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]entity.Event)}
}

func (p *recordingPublisher) PublishToUser(userID string, event entity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], event)
}

func (p *recordingPublisher) eventsOf(userID, eventType string) []entity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []entity.Event
	for _, e := range p.events[userID] {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	clock     *testClock
	publisher *recordingPublisher

	conversationRepo repository.ConversationRepository
	orderRepo        repository.CustomOrderRepository
	fulfillmentRepo  repository.FulfillmentOrderRepository
	notificationRepo repository.NotificationRepository
	users            *adapter.MemoryUserRepository

	conversations *ConversationUseCase
	messages      *MessageUseCase
	orders        *CustomOrderUseCase
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	requestRecipient string
	fulfillmentRepo  repository.FulfillmentOrderRepository
	notificationRepo repository.NotificationRepository
}

func withRequestRecipient(r string) fixtureOption {
	return func(c *fixtureConfig) { c.requestRecipient = r }
}

func withFulfillmentRepo(r repository.FulfillmentOrderRepository) fixtureOption {
	return func(c *fixtureConfig) { c.fulfillmentRepo = r }
}

func withNotificationRepo(r repository.NotificationRepository) fixtureOption {
	return func(c *fixtureConfig) { c.notificationRepo = r }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	clock := newTestClock()
	cfg := fixtureConfig{requestRecipient: config.NotifyBuyer}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		clock:            clock,
		publisher:        newRecordingPublisher(),
		conversationRepo: adapter.NewMemoryConversationRepository(clock.Now),
		orderRepo:        adapter.NewMemoryCustomOrderRepository(clock.Now),
		fulfillmentRepo:  cfg.fulfillmentRepo,
		notificationRepo: cfg.notificationRepo,
		users: adapter.NewMemoryUserRepository(
			&entity.User{ID: "seller-1", Username: "nimali", DisplayName: "Nimali"},
			&entity.User{ID: "buyer-1", Username: "kasun", DisplayName: "Kasun"},
			&entity.User{ID: "buyer-2", Username: "dilan", DisplayName: "Dilan"},
		),
	}
	if f.fulfillmentRepo == nil {
		f.fulfillmentRepo = adapter.NewMemoryFulfillmentOrderRepository(clock.Now)
	}
	if f.notificationRepo == nil {
		f.notificationRepo = adapter.NewMemoryNotificationRepository(clock.Now)
	}

	f.conversations = NewConversationUseCase(f.conversationRepo, nil)
	f.messages = NewMessageUseCase(f.conversationRepo, f.publisher, nil, 2000)
	f.orders = NewCustomOrderUseCase(
		f.orderRepo,
		f.conversationRepo,
		f.users,
		NewFulfillmentMaterializer(f.fulfillmentRepo),
		NewNotificationDispatcher(f.notificationRepo, f.publisher),
		f.publisher,
		nil,
		CustomOrderSettings{Validity: 7 * 24 * time.Hour, RequestRecipient: cfg.requestRecipient},
	)
	f.orders.now = clock.Now

	return f
}

func (f *fixture) conversation(t *testing.T, a, aName, b, bName string) *entity.Conversation {
	t.Helper()
	conv, _, err := f.conversations.GetOrCreateConversation(context.Background(), GetOrCreateConversationInput{
		SelfID: a, SelfName: aName, OtherID: b, OtherName: bName,
	})
	require.NoError(t, err)
	return conv
}
