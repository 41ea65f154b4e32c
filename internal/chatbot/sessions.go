package chatbot

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	DefaultSessionCapacity = 100
	DefaultSessionIdleTTL  = time.Hour
	defaultJanitorInterval = 10 * time.Minute
)

// conversation is the in-memory transcript of one chat session.
type conversation struct {
	mu       sync.Mutex
	history  []*schema.Message
	lastUsed time.Time
}

// append records one turn and refreshes the idle clock.
func (c *conversation) append(role schema.RoleType, content string) {
	c.mu.Lock()
	c.history = append(c.history, &schema.Message{Role: role, Content: content})
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

// snapshot returns a copy of the transcript safe to hand to a provider.
func (c *conversation) snapshot() []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*schema.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Registry keeps per-session conversations in a bounded LRU map. When the
// capacity is exceeded the least recently used session is dropped.
type Registry struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type registryEntry struct {
	id   string
	conv *conversation
}

// NewRegistry builds a registry holding at most capacity sessions.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultSessionCapacity
	}
	return &Registry{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Acquire returns the conversation for a session id, creating it on first
// use and marking it most recently used. Creating beyond capacity evicts
// the least recently used session.
func (r *Registry) Acquire(sessionID string) *conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.entries[sessionID]; ok {
		r.order.MoveToFront(elem)
		return elem.Value.(*registryEntry).conv
	}

	conv := &conversation{lastUsed: time.Now()}
	r.entries[sessionID] = r.order.PushFront(&registryEntry{id: sessionID, conv: conv})

	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.removeLocked(oldest)
	}
	return conv
}

// Evict drops a session if present.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.entries[sessionID]; ok {
		r.removeLocked(elem)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

func (r *Registry) removeLocked(elem *list.Element) {
	entry := elem.Value.(*registryEntry)
	r.order.Remove(elem)
	delete(r.entries, entry.id)
}

// StartJanitor evicts sessions idle longer than maxIdle on every interval
// tick until the context is cancelled.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultSessionIdleTTL
	}
	go r.janitorLoop(ctx, interval, maxIdle)
}

func (r *Registry) janitorLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(maxIdle); n > 0 {
				log.Printf("chatbot: evicted %d idle sessions", n)
			}
		}
	}
}

func (r *Registry) evictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted int
	for elem := r.order.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*registryEntry)
		entry.conv.mu.Lock()
		idle := entry.conv.lastUsed.Before(cutoff)
		entry.conv.mu.Unlock()
		if idle {
			r.removeLocked(elem)
			evicted++
		}
		elem = prev
	}
	return evicted
}
