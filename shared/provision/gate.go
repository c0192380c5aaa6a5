package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	setupKeyPrefix = "tenant:setup:"
	setupChannel   = "tenant:setup-complete"
)

// Gate tracks which tenants have completed onboarding. The flag is durable in
// Redis, cached per process, and fanned out over pub/sub so every service
// observes a completion without re-reading Redis on each request.
//
// The flag is monotonic: readers can observe false -> true but never the
// reverse. Only true values are cached, so a subscriber that connects late
// still resolves the current state on its first lookup.
type Gate struct {
	client *redis.Client

	mu       sync.RWMutex
	complete map[uuid.UUID]bool

	sub    *redis.PubSub
	cancel context.CancelFunc
}

// NewGate creates a gate backed by the given Redis client and starts the
// completion listener.
func NewGate(client *redis.Client) (*Gate, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gate{
		client:   client,
		complete: make(map[uuid.UUID]bool),
		cancel:   cancel,
	}

	g.sub = client.Subscribe(ctx, setupChannel)
	// Force the subscription before returning so no publish slips between
	// gate construction and the listener being ready.
	if _, err := g.sub.Receive(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", setupChannel, err)
	}
	go g.listen(ctx)

	return g, nil
}

// listen consumes completion broadcasts and promotes them into the local cache.
func (g *Gate) listen(ctx context.Context) {
	ch := g.sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			tenantID, err := uuid.Parse(msg.Payload)
			if err != nil {
				logrus.Warnf("Setup gate: ignoring malformed completion payload %q", msg.Payload)
				continue
			}
			g.mu.Lock()
			g.complete[tenantID] = true
			g.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// IsComplete reports whether the tenant has finished onboarding. The local
// cache answers immediately once a completion has been observed; otherwise
// the durable flag is consulted and cached on a positive answer.
func (g *Gate) IsComplete(ctx context.Context, tenantID uuid.UUID) bool {
	g.mu.RLock()
	done := g.complete[tenantID]
	g.mu.RUnlock()
	if done {
		return true
	}

	val, err := g.client.Get(ctx, setupKeyPrefix+tenantID.String()).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("Setup gate: redis read failed for tenant %s: %v", tenantID, err)
		}
		return false
	}
	if val != "1" {
		return false
	}

	g.mu.Lock()
	g.complete[tenantID] = true
	g.mu.Unlock()
	return true
}

// MarkComplete flips the tenant's setup flag. It is idempotent: only the
// first call persists and broadcasts, repeat calls report changed=false and
// publish nothing.
func (g *Gate) MarkComplete(ctx context.Context, tenantID uuid.UUID) (changed bool, err error) {
	set, err := g.client.SetNX(ctx, setupKeyPrefix+tenantID.String(), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to persist setup flag: %w", err)
	}

	g.mu.Lock()
	g.complete[tenantID] = true
	g.mu.Unlock()

	if !set {
		return false, nil
	}

	if err := g.client.Publish(ctx, setupChannel, tenantID.String()).Err(); err != nil {
		// The durable flag is already written; late subscribers still
		// resolve correctly on their first lookup.
		logrus.Warnf("Setup gate: failed to broadcast completion for tenant %s: %v", tenantID, err)
	}
	return true, nil
}

// Close stops the completion listener.
func (g *Gate) Close() error {
	g.cancel()
	if g.sub != nil {
		return g.sub.Close()
	}
	return nil
}
