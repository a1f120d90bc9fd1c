// Package notifications fans forum change events out to in-process
// listeners, other instances over Redis pub/sub, and websocket clients.
package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	// ChangesChannel carries every change event.
	ChangesChannel = "forum:changes"

	topicChannelPrefix = "forum:topic:"
)

// TopicChannel derives the Redis channel that mirrors the events of one topic.
func TopicChannel(topicID uint) string {
	return topicChannelPrefix + strconv.FormatUint(uint64(topicID), 10)
}

// Notifier publishes change payloads into Redis channels.
type Notifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewNotifier creates a Notifier. A nil client disables it.
func NewNotifier(rdb *redis.Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{rdb: rdb, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishChange sends payload to the global channel and to the topic's channel.
func (n *Notifier) PublishChange(ctx context.Context, topicID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	_, err := n.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, ChangesChannel, payload)
		if topicID != 0 {
			p.Publish(ctx, TopicChannel(topicID), payload)
		}
		return nil
	})
	return err
}

// StartChangeSubscriber subscribes to ChangesChannel and calls onMessage for
// each payload. Per-topic channels are left to external consumers. The
// subscription is confirmed before StartChangeSubscriber returns.
func (n *Notifier) StartChangeSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ChangesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							n.logger.Error("panic in change subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
