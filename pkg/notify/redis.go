package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bluehorizon/skydesk/pkg/enums"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

const redisPublishTimeout = 2 * time.Second

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) (int64, error)
}

// RedisPublisher forwards events to a redis pub/sub channel so companion
// processes (tray helper, second window) observe the same state changes.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	logg    *logger.Logger
}

func NewRedisPublisher(client redisPublisher, channel string, logg *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logg: logg}
}

func (p *RedisPublisher) Publish(ctx context.Context, name enums.EventName, payload any) {
	body, err := json.Marshal(Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		p.logError(ctx, name, "encode event for redis", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisPublishTimeout)
	defer cancel()
	if _, err := p.client.Publish(pubCtx, p.channel, body); err != nil {
		p.logError(ctx, name, "publish event to redis", err)
	}
}

func (p *RedisPublisher) logError(ctx context.Context, name enums.EventName, msg string, err error) {
	if p.logg == nil {
		return
	}
	p.logg.Error(p.logg.WithFields(ctx, map[string]any{"event": string(name), "channel": p.channel}), msg, err)
}
