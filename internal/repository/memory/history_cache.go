package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-videochat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the full transcript of a session from the backing store.
type FetchFunc func(ctx context.Context) ([]*entity.ChatRecord, error)

// historyEntry is the resident copy of one session transcript.
//
// primed means the entry has been hydrated from the backing store at least
// once; until then the entry only buffers optimistic appends and reads must
// go through GetOrFetch. byId guards append idempotency.
type historyEntry struct {
	mu      sync.Mutex
	records []*entity.ChatRecord
	byId    map[uuid.UUID]struct{}
	primed  bool
}

// HistoryCache keeps per-session transcripts in memory so repeated history
// reads within a session don't hit Postgres. It is a cache, never the source
// of truth: a miss or eviction is always recoverable through the fetch
// function, and a failed fetch leaves whatever was cached untouched.
type HistoryCache struct {
	entries *cache.Cache
	group   singleflight.Group
	mu      sync.Mutex // guards entry creation
}

func NewHistoryCache(ttl, cleanupInterval time.Duration) *HistoryCache {
	return &HistoryCache{
		entries: cache.New(ttl, cleanupInterval),
	}
}

func (h *HistoryCache) entry(sessionId uuid.UUID) *historyEntry {
	key := sessionId.String()
	if x, found := h.entries.Get(key); found {
		return x.(*historyEntry)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if x, found := h.entries.Get(key); found {
		return x.(*historyEntry)
	}
	e := &historyEntry{byId: make(map[uuid.UUID]struct{})}
	h.entries.Set(key, e, cache.DefaultExpiration)
	return e
}

func (h *HistoryCache) peek(sessionId uuid.UUID) (*historyEntry, bool) {
	if x, found := h.entries.Get(sessionId.String()); found {
		return x.(*historyEntry), true
	}
	return nil, false
}

// GetOrFetch returns the transcript of a session, hydrating the entry from
// the backing store on first access. Concurrent callers for the same session
// share a single fetch. The returned slice is a copy in (created_at, id)
// ascending order.
func (h *HistoryCache) GetOrFetch(ctx context.Context, sessionId uuid.UUID, fetch FetchFunc) ([]*entity.ChatRecord, error) {
	e := h.entry(sessionId)

	e.mu.Lock()
	if e.primed {
		records := snapshot(e.records)
		e.mu.Unlock()
		return records, nil
	}
	e.mu.Unlock()

	_, err, _ := h.group.Do(sessionId.String(), func() (interface{}, error) {
		// Re-check under the group: a concurrent caller may have primed
		// the entry while this one was queued.
		e.mu.Lock()
		primed := e.primed
		e.mu.Unlock()
		if primed {
			return nil, nil
		}

		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.records = merge(fetched, e.records)
		for _, r := range e.records {
			e.byId[r.Id] = struct{}{}
		}
		e.primed = true
		e.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		// Entry stays as it was: unprimed, buffered appends intact.
		return nil, err
	}

	e.mu.Lock()
	records := snapshot(e.records)
	e.mu.Unlock()
	return records, nil
}

// Peek returns whatever is resident for the session without touching the
// backing store. After an Invalidate this serves the stale-but-immediate
// read while GetOrFetch callers wait on the rehydrating fetch. The bool
// reports whether anything was resident.
func (h *HistoryCache) Peek(sessionId uuid.UUID) ([]*entity.ChatRecord, bool) {
	e, found := h.peek(sessionId)
	if !found {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.records) == 0 {
		return nil, false
	}
	return snapshot(e.records), true
}

// Append records a newly persisted message into the cached transcript.
// Appending the same record twice is a no-op, and appending to a cold entry
// buffers the record without marking the entry primed, so the next read
// still hydrates from the store and merges.
func (h *HistoryCache) Append(sessionId uuid.UUID, record *entity.ChatRecord) {
	e := h.entry(sessionId)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byId[record.Id]; exists {
		return
	}
	e.byId[record.Id] = struct{}{}

	// Common case: the new record sorts after everything cached.
	if n := len(e.records); n == 0 || e.records[n-1].Less(record) {
		e.records = append(e.records, record)
		return
	}
	e.records = append(e.records, record)
	sort.SliceStable(e.records, func(i, j int) bool {
		return e.records[i].Less(e.records[j])
	})
}

// Primed reports whether the session transcript has been hydrated.
func (h *HistoryCache) Primed(sessionId uuid.UUID) bool {
	e, found := h.peek(sessionId)
	if !found {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.primed
}

// Invalidate demotes an entry back to cold. Buffered records are kept so a
// later read merges them with the fresh fetch instead of losing them.
func (h *HistoryCache) Invalidate(sessionId uuid.UUID) {
	e, found := h.peek(sessionId)
	if !found {
		return
	}
	e.mu.Lock()
	e.primed = false
	e.mu.Unlock()
}

// ListAll groups the currently resident transcripts by session. It never
// triggers fetches; a session appears only if something is already cached
// for it, so callers wanting a complete view must prime each session first.
func (h *HistoryCache) ListAll() map[uuid.UUID][]*entity.ChatRecord {
	out := make(map[uuid.UUID][]*entity.ChatRecord)
	for key, item := range h.entries.Items() {
		sessionId, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		e := item.Object.(*historyEntry)
		e.mu.Lock()
		if len(e.records) > 0 {
			out[sessionId] = snapshot(e.records)
		}
		e.mu.Unlock()
	}
	return out
}

// Delete drops the entry entirely, e.g. when the session itself is deleted.
func (h *HistoryCache) Delete(sessionId uuid.UUID) {
	h.entries.Delete(sessionId.String())
}

// Len reports how many records are currently cached for a session, primed
// or not.
func (h *HistoryCache) Len(sessionId uuid.UUID) int {
	e, found := h.peek(sessionId)
	if !found {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

func snapshot(records []*entity.ChatRecord) []*entity.ChatRecord {
	out := make([]*entity.ChatRecord, len(records))
	copy(out, records)
	return out
}

// merge unions two transcript slices by record id and restores the canonical
// (created_at, id) order. The store copy wins on id collisions since it is
// authoritative.
func merge(fromStore, buffered []*entity.ChatRecord) []*entity.ChatRecord {
	seen := make(map[uuid.UUID]struct{}, len(fromStore)+len(buffered))
	out := make([]*entity.ChatRecord, 0, len(fromStore)+len(buffered))
	for _, r := range fromStore {
		if _, dup := seen[r.Id]; dup {
			continue
		}
		seen[r.Id] = struct{}{}
		out = append(out, r)
	}
	for _, r := range buffered {
		if _, dup := seen[r.Id]; dup {
			continue
		}
		seen[r.Id] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out
}
