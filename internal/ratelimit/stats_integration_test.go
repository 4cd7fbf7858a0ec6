//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStatsStore_Record(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer rdb.Close()

	store := NewRedisStatsStore(rdb, "test:ratelimit:", time.Hour)
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, StatsEvent{Key: "k", Allowed: true, Method: "POST", Path: "/api/save_user_info", At: at}))
	require.NoError(t, store.Record(ctx, StatsEvent{Key: "k", Allowed: false, Method: "POST", Path: "/api/save_user_info", At: at}))

	total, err := rdb.HGetAll(ctx, "test:ratelimit:total").Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"allowed": "1", "denied": "1"}, total)

	route, err := rdb.HGet(ctx, "test:ratelimit:route", "POST /api/save_user_info:denied").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", route)

	ttl, err := rdb.TTL(ctx, "test:ratelimit:minute:202603011030").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
