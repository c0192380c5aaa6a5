package provision

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*Gate, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gate, err := NewGate(client)
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })
	return gate, client
}

func TestMarkCompleteIdempotent(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	tenantID := uuid.New()

	require.False(t, gate.IsComplete(ctx, tenantID))

	changed, err := gate.MarkComplete(ctx, tenantID)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, gate.IsComplete(ctx, tenantID))

	// Second call must not report a change (and therefore publishes nothing).
	changed, err = gate.MarkComplete(ctx, tenantID)
	require.NoError(t, err)
	require.False(t, changed)
	require.True(t, gate.IsComplete(ctx, tenantID))
}

func TestCompletionSurvivesNewGate(t *testing.T) {
	gate, client := newTestGate(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := gate.MarkComplete(ctx, tenantID)
	require.NoError(t, err)

	// A gate constructed after the fact (a late subscriber) resolves the
	// durable flag on its first lookup.
	late, err := NewGate(client)
	require.NoError(t, err)
	defer late.Close()
	require.True(t, late.IsComplete(ctx, tenantID))
}

func TestCompletionBroadcast(t *testing.T) {
	mr := miniredis.RunT(t)
	writerClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	readerClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer writerClient.Close()
	defer readerClient.Close()

	writer, err := NewGate(writerClient)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := NewGate(readerClient)
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	tenantID := uuid.New()

	_, err = writer.MarkComplete(ctx, tenantID)
	require.NoError(t, err)

	// The reader observes the completion through pub/sub or, at worst,
	// through the durable flag. Either way it must converge to true and
	// never flip back.
	require.Eventually(t, func() bool {
		return reader.IsComplete(ctx, tenantID)
	}, 2*time.Second, 10*time.Millisecond)
	require.True(t, reader.IsComplete(ctx, tenantID))
}

func TestUnknownTenantIncomplete(t *testing.T) {
	gate, _ := newTestGate(t)
	require.False(t, gate.IsComplete(context.Background(), uuid.New()))
}
