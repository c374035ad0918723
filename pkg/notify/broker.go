package notify

import (
	"context"
	"sync"
	"time"

	"github.com/bluehorizon/skydesk/pkg/enums"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

const defaultSubscriberBuffer = 64

// Broker is the in-process notifier. Each subscriber gets a buffered
// channel; a subscriber that falls behind loses events rather than
// stalling the publisher.
type Broker struct {
	logg *logger.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Event
	now    func() time.Time
}

func NewBroker(logg *logger.Logger) *Broker {
	return &Broker{
		logg: logg,
		subs: make(map[uint64]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a listener. The returned cancel func closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) Publish(ctx context.Context, name enums.EventName, payload any) {
	event := Event{Name: name, Payload: payload, Timestamp: b.now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.logg != nil {
		logCtx := b.logg.WithFields(ctx, map[string]any{"event": string(name), "dropped": dropped})
		b.logg.Warn(logCtx, "notifier subscriber buffer full; event dropped")
	}
}
