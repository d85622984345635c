package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"laundriku/agent/internal/domain"
)

const (
	channelSyncCompleted = "laundriku:sync:completed"
	keyPendingCount      = "laundriku:sync:pending_count"
)

// RedisPublisher publishes sync events on pub/sub channels and mirrors the
// pending count into a key so dashboards can read it without subscribing.
type RedisPublisher struct {
	client *redis.Client
	outlet string
}

func NewRedisPublisher(ctx context.Context, addr, password string, db int, outletID string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisPublisher{client: client, outlet: outletID}, nil
}

func (p *RedisPublisher) SyncCompleted(ctx context.Context, report domain.SyncReport) error {
	payload := struct {
		OutletID string            `json:"outlet_id"`
		Report   domain.SyncReport `json:"report"`
	}{OutletID: p.outlet, Report: report}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channelSyncCompleted, data).Err()
}

func (p *RedisPublisher) PendingCountChanged(ctx context.Context, count int) error {
	return p.client.Set(ctx, keyPendingCount+":"+p.outlet, strconv.Itoa(count), 0).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
