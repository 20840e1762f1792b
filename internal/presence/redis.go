// Package presence mirrors room membership changes into Redis for external
// consumers (dashboards, ops tooling). It is an observer of the relay, not
// part of the delivery path: failures are logged and dropped.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is one membership change as published on the presence channel.
type Record struct {
	RoomID string    `json:"roomId"`
	Name   string    `json:"name"`
	Event  string    `json:"event"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}

const (
	eventJoined = "joined"
	eventLeft   = "left"

	// opTimeout bounds one publish-and-set round trip against an
	// unresponsive Redis.
	opTimeout = 2 * time.Second
)

// Commands is the slice of the Redis API the mirror uses.
// Satisfied by *redis.Client.
type Commands interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisPresence struct {
	client  Commands
	channel string
	ttl     time.Duration
	logger  *slog.Logger
}

func NewRedisPresence(client Commands, channel string, ttl time.Duration, logger *slog.Logger) *RedisPresence {
	return &RedisPresence{client: client, channel: channel, ttl: ttl, logger: logger}
}

func (p *RedisPresence) MemberJoined(ctx context.Context, roomID, name string, count int) {
	p.notify(ctx, Record{RoomID: roomID, Name: name, Event: eventJoined, Count: count, At: time.Now()})
}

func (p *RedisPresence) MemberLeft(ctx context.Context, roomID, name string, count int) {
	p.notify(ctx, Record{RoomID: roomID, Name: name, Event: eventLeft, Count: count, At: time.Now()})
}

// notify hands the record off to a goroutine so a slow Redis never stalls a
// read pump or the manager loop. The goroutine is detached from the
// caller's cancellation (the connection may already be tearing down) and
// bounded by its own timeout instead.
func (p *RedisPresence) notify(ctx context.Context, rec Record) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		p.publish(ctx, rec)
		p.setCount(ctx, rec.RoomID, rec.Count)
	}()
}

func (p *RedisPresence) publish(ctx context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		p.logger.Error("marshalling presence record", "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish presence record", "roomId", rec.RoomID, "error", err)
	}
}

// setCount keeps a per-room occupancy key with a TTL so abandoned rooms age
// out of Redis even if the process dies between updates. A zero count
// deletes the key immediately, matching the registry's empty-room cleanup.
func (p *RedisPresence) setCount(ctx context.Context, roomID string, count int) {
	key := formatKey(roomID)
	var err error
	if count == 0 {
		err = p.client.Del(ctx, key).Err()
	} else {
		err = p.client.Set(ctx, key, count, p.ttl).Err()
	}
	if err != nil {
		p.logger.Warn("failed to update room occupancy key", "roomId", roomID, "error", err)
	}
}

func formatKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:count", roomID)
}
