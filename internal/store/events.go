package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	commonredis "obra-data/internal/common/redis"
	"obra-data/internal/domain"
)

// RedisStreamPublisher appends change events to a Redis Stream.
type RedisStreamPublisher struct {
	c      *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(c *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{c: c, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev domain.Event) error {
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	_, err := commonredis.PublishToStream(ctx, p.c, p.stream, p.maxLen, map[string]interface{}{
		"event_id":    ev.ID,
		"event_type":  string(ev.Type),
		"entity_id":   ev.EntityID,
		"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		"data":        data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	return nil
}

// StoredEvent is an event read back together with its stream id.
type StoredEvent struct {
	StreamID string `json:"stream_id"`
	domain.Event
}

// Recent reads up to count events after stream id after ("" from the start).
func (p *RedisStreamPublisher) Recent(ctx context.Context, after string, count int64) ([]StoredEvent, error) {
	msgs, err := commonredis.ReadStream(ctx, p.c, p.stream, after, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	out := make([]StoredEvent, 0, len(msgs))
	for _, m := range msgs {
		ev, err := decodeEvent(m.Values)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", m.ID, err)
		}
		out = append(out, StoredEvent{StreamID: m.ID, Event: ev})
	}
	return out, nil
}

func decodeEvent(values map[string]interface{}) (domain.Event, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	ev := domain.Event{ID: str("event_id"), Type: domain.EventType(str("event_type"))}
	if s := str("entity_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ev, fmt.Errorf("bad entity_id %q: %w", s, err)
		}
		ev.EntityID = id
	}
	if s := str("occurred_at"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return ev, fmt.Errorf("bad occurred_at %q: %w", s, err)
		}
		ev.OccurredAt = t
	}
	if s := str("data"); s != "" {
		if err := json.Unmarshal([]byte(s), &ev.Data); err != nil {
			return ev, fmt.Errorf("bad data: %w", err)
		}
	}
	return ev, nil
}
