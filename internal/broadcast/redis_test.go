package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"victory-readmodel/internal/domain"
)

// setupRedis starts a Redis container and returns a connected client.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, RedisOptions{Addr: fmt.Sprintf("%s:%s", host, port.Port())}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisPublisher_Publish(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "victory:snapshot")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(client, "victory:snapshot", "victory:snapshot:latest", nil)

	_, err = p.Latest(ctx)
	assert.ErrorIs(t, err, redis.Nil)

	snap := domain.Snapshot{
		GeneratedAtMs: 1700000000000,
		Vaults:        domain.VaultSection{Available: true, Victory: decimal.RequireFromString("123456789012345678901234567890")},
		Health:        domain.Health{Overall: domain.HealthWarning},
	}
	require.NoError(t, p.Publish(ctx, snap))

	select {
	case msg := <-sub.Channel():
		var got domain.Snapshot
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, snap.GeneratedAtMs, got.GeneratedAtMs)
	case <-time.After(5 * time.Second):
		t.Fatal("no message on channel")
	}

	latest, err := p.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Vaults.Victory.Equal(snap.Vaults.Victory))
	assert.Equal(t, domain.HealthWarning, latest.Health.Overall)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOptions{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}
