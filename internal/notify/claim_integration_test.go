//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/flight-price-tracker/internal/notify"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedisClaimer(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	c := notify.NewRedisClaimer(client)

	ok, err := c.Claim(ctx, "a1:q1:email", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, "a1:q1:email", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, "a1:q1:email"))

	ok, err = c.Claim(ctx, "a1:q1:email", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "fpt:delivery:a1:q1:email").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
