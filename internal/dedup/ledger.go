// Package dedup tracks which items and episodes have already been
// evaluated, so the same content is never queued twice.
package dedup

import (
	"sync"
	"time"
)

// SeenLedger maps dedup keys to the time they were first recorded.
//
// The ledger's lock is intentionally held across membership check,
// filter evaluation, and insert: two concurrent polls of overlapping
// sources could otherwise both observe "not seen" and both queue a
// duplicate match.
type SeenLedger struct {
	mu    sync.Mutex
	items map[string]time.Time
}

// NewSeenLedger returns an empty ledger.
func NewSeenLedger() *SeenLedger {
	return &SeenLedger{items: make(map[string]time.Time)}
}

// Process runs fn with the ledger locked. fn receives whether key is
// already present and returns true to record the key. The critical
// section spans the whole call, so whatever evaluation fn performs is
// atomic with respect to other Process calls for the same key.
func (l *SeenLedger) Process(key string, fn func(alreadySeen bool) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, seen := l.items[key]
	if fn(seen) && !seen {
		l.items[key] = time.Now().UTC()
	}
}

// Contains reports whether key has been recorded.
func (l *SeenLedger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[key]
	return ok
}

// Len returns the number of recorded keys.
func (l *SeenLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Cleanup removes entries older than maxAge and returns how many were
// dropped. Pure housekeeping; safe to run off the poll path.
func (l *SeenLedger) Cleanup(maxAge time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, seenAt := range l.items {
		if now.Sub(seenAt) >= maxAge {
			delete(l.items, key)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of the ledger contents for persistence.
func (l *SeenLedger) Snapshot() map[string]time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[string]time.Time, len(l.items))
	for k, v := range l.items {
		cp[k] = v
	}
	return cp
}

// Restore replaces the ledger contents, used once at startup.
func (l *SeenLedger) Restore(items map[string]time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make(map[string]time.Time, len(items))
	for k, v := range items {
		l.items[k] = v
	}
}

// EpisodeLedger tracks, per interest, which episode identifiers have
// already been matched.
type EpisodeLedger struct {
	mu       sync.Mutex
	episodes map[string]map[string]struct{}
}

// NewEpisodeLedger returns an empty ledger.
func NewEpisodeLedger() *EpisodeLedger {
	return &EpisodeLedger{episodes: make(map[string]map[string]struct{})}
}

// SeenOrRecord reports whether the episode was already recorded for the
// interest, recording it on first sighting. Check and record happen
// under one lock so concurrent evaluations of the same episode cannot
// both pass the gate.
func (l *EpisodeLedger) SeenOrRecord(interestID, episodeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.episodes[interestID]
	if !ok {
		set = make(map[string]struct{})
		l.episodes[interestID] = set
	}
	if _, ok := set[episodeID]; ok {
		return true
	}
	set[episodeID] = struct{}{}
	return false
}

// Snapshot returns a copy of the ledger contents for persistence.
func (l *EpisodeLedger) Snapshot() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[string][]string, len(l.episodes))
	for interestID, set := range l.episodes {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		cp[interestID] = ids
	}
	return cp
}

// Restore replaces the ledger contents, used once at startup.
func (l *EpisodeLedger) Restore(episodes map[string][]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.episodes = make(map[string]map[string]struct{}, len(episodes))
	for interestID, ids := range episodes {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		l.episodes[interestID] = set
	}
}
