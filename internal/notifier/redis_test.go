package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "gophnotes:user:alice:events", Channel("alice"))
}

func TestRedis_PublishSubscribe(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := NewRedisSubscriber(client, nil)
	events, closeFn, err := sub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer closeFn()

	n := New(NewRedisPublisher(client), SessionStoreFuncs{}, nil)
	n.NotifySessionsChanged(ctx, "alice")
	defer n.Wait()

	select {
	case ev := <-events:
		assert.Equal(t, SessionsChangedEvent(), ev)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestRedis_OtherUsersChannelIsolated(t *testing.T) {
	client, s := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, closeFn, err := NewRedisSubscriber(client, nil).Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, NewRedisPublisher(client).Publish(ctx, "bob", SessionsChangedEvent()))
	// malformed payloads are skipped, not delivered
	s.Publish(Channel("alice"), "not json")
	require.NoError(t, NewRedisPublisher(client).Publish(ctx, "alice", Event{Type: "custom"}))

	select {
	case ev := <-events:
		assert.Equal(t, Event{Type: "custom"}, ev)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestRedis_SubscribeClosesOnCancel(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, closeFn, err := NewRedisSubscriber(client, nil).Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer closeFn()

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestRedis_PublishErrorIsSwallowedByNotifier(t *testing.T) {
	client, s := setupTestRedis(t)
	s.Close()

	n := New(NewRedisPublisher(client), SessionStoreFuncs{}, nil, WithTimeout(200*time.Millisecond))
	assert.NotPanics(t, func() { n.NotifySessionsChanged(context.Background(), "alice") })
	n.Wait()

	err := NewRedisPublisher(client).Publish(context.Background(), "alice", SessionsChangedEvent())
	assert.Error(t, err)
}
