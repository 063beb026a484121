package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pscheid92/collabcast/internal/canvas"
	"github.com/pscheid92/collabcast/internal/metrics"
)

// EventLog stores one room's canvas event history in a Redis list. Retention
// is enforced on every append with LTRIM, so the list never grows past the
// configured limit.
type EventLog struct {
	client    *Client
	key       string
	retention int
}

var _ canvas.EventLog = (*EventLog)(nil)

func NewEventLog(client *Client, room string, retention int) *EventLog {
	return &EventLog{
		client:    client,
		key:       "canvas:events:" + room,
		retention: retention,
	}
}

func (l *EventLog) Append(ctx context.Context, event canvas.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas event: %w", err)
	}

	pipe := l.client.rdb.TxPipeline()
	pipe.RPush(ctx, l.key, data)
	pipe.LTrim(ctx, l.key, int64(-l.retention), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.StoreOpsTotal.WithLabelValues("redis", "append", "error").Inc()
		return fmt.Errorf("failed to append canvas event: %w", err)
	}
	metrics.StoreOpsTotal.WithLabelValues("redis", "append", "ok").Inc()
	return nil
}

func (l *EventLog) Load(ctx context.Context) ([]canvas.Event, error) {
	raw, err := l.client.rdb.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("redis", "load", "error").Inc()
		return nil, fmt.Errorf("failed to load canvas events: %w", err)
	}

	events := make([]canvas.Event, 0, len(raw))
	for _, item := range raw {
		var event canvas.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// Skip corrupt entries rather than losing the whole history.
			continue
		}
		events = append(events, event)
	}
	metrics.StoreOpsTotal.WithLabelValues("redis", "load", "ok").Inc()
	return events, nil
}

func (l *EventLog) Clear(ctx context.Context) error {
	if err := l.client.rdb.Del(ctx, l.key).Err(); err != nil {
		metrics.StoreOpsTotal.WithLabelValues("redis", "clear", "error").Inc()
		return fmt.Errorf("failed to clear canvas events: %w", err)
	}
	metrics.StoreOpsTotal.WithLabelValues("redis", "clear", "ok").Inc()
	return nil
}

// Close is a no-op: the Redis client is shared across rooms and owned by
// the application.
func (l *EventLog) Close() error {
	return nil
}
