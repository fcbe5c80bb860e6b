package usecase

import (
	"sync"
	"time"

	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"go.uber.org/zap"
)

const defaultEventHistory = 100

// EventBus fans out events to subscribers and keeps a short history for
// status queries. Every published event is also written to the logger.
type EventBus struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[int]chan domain.Event
	nextID      int
	history     []domain.Event
	historySize int
	timeNow     func() time.Time
}

func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		logger:      logger,
		subscribers: make(map[int]chan domain.Event),
		historySize: defaultEventHistory,
		timeNow:     time.Now,
	}
}

// Subscribe returns a channel of future events and a func that detaches it.
func (b *EventBus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *EventBus) Publish(event domain.Event) {
	if event.Time.IsZero() {
		event.Time = b.timeNow()
	}
	b.log(event)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Event subscriber is lagging, dropping event",
				zap.Int("subscriber", id), zap.String("kind", string(event.Kind)))
		}
	}
}

// Recent returns up to n of the latest events, oldest first.
func (b *EventBus) Recent(n int) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	result := make([]domain.Event, n)
	copy(result, b.history[len(b.history)-n:])
	return result
}

func (b *EventBus) log(event domain.Event) {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("symbol", event.Symbol),
	}
	if event.Error != "" {
		b.logger.Error(event.Message, append(fields, zap.String("error", event.Error))...)
		return
	}
	b.logger.Info(event.Message, fields...)
}
