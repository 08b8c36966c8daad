package services

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrStale reports a load superseded by a newer one for the same view,
// or whose request went away. Its result must not be rendered.
var ErrStale = errors.New("stale response")

// Generations hands out increasing load ids per key and remembers the latest.
type Generations struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{latest: make(map[string]uint64)}
}

// GenerationKey scopes generations to one session and view.
func GenerationKey(sessionID, view string) string {
	return sessionID + "/" + view
}

// Begin starts a new load for key and returns its id.
func (g *Generations) Begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.latest[key] = g.next
	return g.next
}

// IsLatest reports whether id is the most recent load for key.
func (g *Generations) IsLatest(key string, id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[key] == id
}

// Check returns ErrStale when ctx is done or id was superseded.
func (g *Generations) Check(ctx context.Context, key string, id uint64) error {
	if ctx.Err() != nil {
		return ErrStale
	}
	if !g.IsLatest(key, id) {
		return ErrStale
	}
	return nil
}

// Forget drops every key of a session, e.g. on logout.
func (g *Generations) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prefix := sessionID + "/"
	for k := range g.latest {
		if strings.HasPrefix(k, prefix) {
			delete(g.latest, k)
		}
	}
}

// Len returns the number of tracked keys.
func (g *Generations) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.latest)
}
