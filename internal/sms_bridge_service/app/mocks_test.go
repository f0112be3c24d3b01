package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryCorrelationStore() *repository.CorrelationStore {
	return repository.NewCorrelationStore(memory.NewKVStore(), discardLogger())
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Mocks ---

type MockChannelMapStore struct {
	mock.Mock
}

func (m *MockChannelMapStore) LoadChannelMap(ctx context.Context, userID string) (*domain.UserChannelMap, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserChannelMap), args.Error(1)
}

func (m *MockChannelMapStore) SaveChannelMap(ctx context.Context, userID string, cm *domain.UserChannelMap) error {
	args := m.Called(ctx, userID, cm)
	return args.Error(0)
}

type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, userID string) (domain.Identity, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Identity), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, from, to, text string) error {
	args := m.Called(ctx, from, to, text)
	return args.Error(0)
}

type MockIntroducer struct {
	mock.Mock
}

func (m *MockIntroducer) Introduce(ctx context.Context, msg domain.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type MockPlatformSender struct {
	mock.Mock
}

func (m *MockPlatformSender) SendAsUser(ctx context.Context, conversationID, userID, text string) error {
	args := m.Called(ctx, conversationID, userID, text)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	args := m.Called(ctx, subject, data, msgID)
	return args.Error(0)
}

type MockNumberInventory struct {
	mock.Mock
}

func (m *MockNumberInventory) ListNumbers(ctx context.Context) ([]domain.GatewayNumber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GatewayNumber), args.Error(1)
}

func (m *MockNumberInventory) UpdateCallback(ctx context.Context, number domain.GatewayNumber, callbackURL string) error {
	args := m.Called(ctx, number, callbackURL)
	return args.Error(0)
}

// fakeDelivery records how a job was settled.
type fakeDelivery struct {
	data      []byte
	delivered uint64
	metaErr   error

	acked    bool
	termed   bool
	nakDelay time.Duration
	naked    bool
}

func (d *fakeDelivery) Data() []byte    { return d.data }
func (d *fakeDelivery) Subject() string { return "test.jobs" }

func (d *fakeDelivery) Metadata() (*jetstream.MsgMetadata, error) {
	if d.metaErr != nil {
		return nil, d.metaErr
	}
	return &jetstream.MsgMetadata{NumDelivered: d.delivered}, nil
}

func (d *fakeDelivery) Ack() error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) NakWithDelay(delay time.Duration) error {
	d.naked = true
	d.nakDelay = delay
	return nil
}

func (d *fakeDelivery) Term() error {
	d.termed = true
	return nil
}
