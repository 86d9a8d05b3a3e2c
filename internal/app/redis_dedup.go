package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupGuard suppresses rapid duplicate webhook deliveries. It is an
// optimization only: the engine's order-side guards make redelivery safe, the
// guard just saves redundant verification round-trips to the provider.
//
// An event is marked delivered only after it was processed successfully. A
// delivery that fails leaves no mark, so the provider's retry reaches the
// engine instead of being swallowed as a duplicate.
type DedupGuard interface {
	// AlreadyDelivered reports whether eventID completed processing inside
	// the dedup window.
	AlreadyDelivered(ctx context.Context, eventID string) bool
	// MarkDelivered records that eventID was processed successfully.
	MarkDelivered(ctx context.Context, eventID string)
}

const dedupWindow = 10 * time.Minute

// RedisDedupGuard implements the guard on Redis so the window is shared
// across replicas.
type RedisDedupGuard struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisDedupGuard(client redis.UniversalClient, prefix string) *RedisDedupGuard {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "orderflow:webhook_dedup"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisDedupGuard{client: client, prefix: trimmedPrefix}
}

func (g *RedisDedupGuard) AlreadyDelivered(ctx context.Context, eventID string) bool {
	if g == nil || g.client == nil || strings.TrimSpace(eventID) == "" {
		return false
	}

	seen, err := g.client.Exists(ctx, g.key(eventID)).Result()
	if err != nil {
		// Redis trouble must never drop an event; fail open.
		return false
	}
	return seen > 0
}

func (g *RedisDedupGuard) MarkDelivered(ctx context.Context, eventID string) {
	if g == nil || g.client == nil || strings.TrimSpace(eventID) == "" {
		return
	}

	if err := g.client.Set(ctx, g.key(eventID), 1, dedupWindow).Err(); err != nil {
		log.Printf("level=warn component=dedup_guard msg=\"mark failed\" event_id=%s err=%v", eventID, err)
	}
}

func (g *RedisDedupGuard) key(eventID string) string {
	return g.prefix + ":" + eventID
}

// MemoryDedupGuard is the single-replica fallback used when Redis is not
// configured.
type MemoryDedupGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDedupGuard() *MemoryDedupGuard {
	return &MemoryDedupGuard{seen: make(map[string]time.Time)}
}

func (g *MemoryDedupGuard) AlreadyDelivered(_ context.Context, eventID string) bool {
	if strings.TrimSpace(eventID) == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune()
	_, ok := g.seen[eventID]
	return ok
}

func (g *MemoryDedupGuard) MarkDelivered(_ context.Context, eventID string) {
	if strings.TrimSpace(eventID) == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune()
	g.seen[eventID] = time.Now()
}

func (g *MemoryDedupGuard) prune() {
	now := time.Now()
	for id, at := range g.seen {
		if now.Sub(at) > dedupWindow {
			delete(g.seen, id)
		}
	}
}
