package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(context.Background(), Config{URL: "not-a-url"}, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestPublishOpensBreakerAfterRepeatedFailures(t *testing.T) {
	logger := zerolog.Nop()
	// Nothing listens on this port, so every publish fails.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	broker := newBroker(client, &logger)
	defer broker.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := broker.Publish(ctx, "careportal.events", map[string]string{"n": "x"})
		require.Error(t, err)
	}

	err := broker.Publish(ctx, "careportal.events", map[string]string{"n": "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	logger := zerolog.Nop()
	broker := newBroker(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), &logger)
	defer broker.Close()

	err := broker.Publish(context.Background(), "c", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal message")
}
