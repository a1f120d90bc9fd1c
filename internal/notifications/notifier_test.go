package notifications

import (
	"context"
	"testing"
	"time"

	"agora/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNotifier_DisabledIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishChange(context.Background(), 1, []byte("{}")))
	assert.NoError(t, n.StartChangeSubscriber(context.Background(), func(string) {
		t.Fatal("disabled notifier must not deliver")
	}))
}

func TestTopicChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "forum:topic:1", TopicChannel(1))
	assert.Equal(t, "forum:topic:100", TopicChannel(100))
}

func TestNotifier_PublishesToBothChannels(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb, testutil.DiscardLogger())
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, ChangesChannel, TopicChannel(7))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	require.NoError(t, n.PublishChange(ctx, 7, []byte(`{"id":"a"}`)))

	seen := map[string]string{}
	for len(seen) < 2 {
		select {
		case msg := <-ch:
			seen[msg.Channel] = msg.Payload
		case <-time.After(testEventuallyTimeout):
			t.Fatalf("timed out, got %v", seen)
		}
	}
	assert.Equal(t, `{"id":"a"}`, seen[ChangesChannel])
	assert.Equal(t, `{"id":"a"}`, seen[TopicChannel(7)])
}

func TestNotifier_SubscriberListensOnChangesChannelOnly(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb, testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 8)
	require.NoError(t, n.StartChangeSubscriber(ctx, func(payload string) {
		payloads <- payload
	}))

	require.NoError(t, rdb.Publish(context.Background(), TopicChannel(3), "topic-only").Err())
	require.NoError(t, rdb.Publish(context.Background(), "forum:other", "other").Err())
	require.NoError(t, n.PublishChange(context.Background(), 3, []byte("one")))
	require.NoError(t, n.PublishChange(context.Background(), 0, []byte("two")))

	assert.Equal(t, "one", <-payloads)
	assert.Equal(t, "two", <-payloads)
	assert.Never(t, func() bool { return len(payloads) > 0 }, 100*time.Millisecond, testPollInterval)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb, testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 2)
	require.NoError(t, n.StartChangeSubscriber(ctx, func(payload string) {
		if payload == "boom" {
			panic("listener exploded")
		}
		payloads <- payload
	}))

	require.NoError(t, n.PublishChange(ctx, 0, []byte("boom")))
	require.NoError(t, n.PublishChange(ctx, 0, []byte("after")))

	select {
	case got := <-payloads:
		assert.Equal(t, "after", got)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("subscriber stopped after a panic")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewNotifier(rdb, testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	payloads := make(chan string, 2)
	require.NoError(t, n.StartChangeSubscriber(ctx, func(payload string) {
		payloads <- payload
	}))

	require.NoError(t, n.PublishChange(context.Background(), 0, []byte("before-cancel")))
	assert.Equal(t, "before-cancel", <-payloads)

	cancel()
	time.Sleep(20 * time.Millisecond)

	_ = n.PublishChange(context.Background(), 0, []byte("after-cancel"))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, testPollInterval)
}
