package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rezervacia/internal/wizard"
)

// MemorySessionRepository keeps sessions in process. Values are stored
// serialized so callers never share a *wizard.Wizard.
type MemorySessionRepository struct {
	mu         sync.Mutex
	sessions   map[string]memoryEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions:   make(map[string]memoryEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	if ok && r.expired(entry.expiresAt) {
		delete(r.sessions, sessionID)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return nil, nil
	}

	var w wizard.Wizard
	if err := json.Unmarshal(entry.data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &w, nil
}

func (r *MemorySessionRepository) SaveSession(ctx context.Context, w *wizard.Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var expiresAt time.Time
	if r.ttl > 0 {
		expiresAt = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	r.sessions[w.SessionID] = memoryEntry{data: data, expiresAt: expiresAt}
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// Sweep drops expired sessions and rate limit windows.
func (r *MemorySessionRepository) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.sessions {
		if r.expired(entry.expiresAt) {
			delete(r.sessions, id)
			removed++
		}
	}
	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *MemorySessionRepository) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *MemorySessionRepository) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && r.now().After(expiresAt)
}
