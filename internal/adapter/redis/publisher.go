package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/hearth/internal/domain"
)

var _ domain.StatusPublisher = (*StatusPublisher)(nil)

// StatusPublisher broadcasts status snapshots over Redis Pub/Sub so
// presentation layers on other instances can follow the pool.
type StatusPublisher struct {
	rdb  *goredis.Client
	keys keyspace
}

func NewStatusPublisher(rdb *goredis.Client, pool string) *StatusPublisher {
	return &StatusPublisher{rdb: rdb, keys: keyspace(pool)}
}

func (p *StatusPublisher) PublishStatus(ctx context.Context, view domain.StatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.keys.status(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// Subscribe streams status snapshots until ctx is cancelled. Slow receivers
// drop snapshots rather than block the subscription.
func (p *StatusPublisher) Subscribe(ctx context.Context) <-chan domain.StatusView {
	sub := p.rdb.Subscribe(ctx, p.keys.status())
	out := make(chan domain.StatusView, 16)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var view domain.StatusView
				if err := json.Unmarshal([]byte(msg.Payload), &view); err != nil {
					slog.WarnContext(ctx, "Failed to unmarshal status message", "error", err)
					continue
				}
				select {
				case out <- view:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
