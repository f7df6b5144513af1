// Package scheduler holds the in-memory firing index and the one-second
// tick loop that drives alarm delivery
package scheduler

import (
	"sync"
	"time"
)

// Entry is one armed alarm in the index
type Entry struct {
	CodeID string
	At     time.Time
}

// Index buckets armed alarms by the UTC wall second they fire at, with a
// reverse map for O(1) re-arm and removal. Lookup on a tick touches only
// the bucket for that second, so a tick's cost is independent of the total
// number of armed alarms
type Index struct {
	mu sync.RWMutex

	// hour -> minute -> second -> code_id -> firing instant
	buckets map[int]map[int]map[int]map[string]time.Time

	// code_id -> firing instant currently indexed
	reverse map[string]time.Time
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		buckets: make(map[int]map[int]map[int]map[string]time.Time),
		reverse: make(map[string]time.Time),
	}
}

// Add arms codeID at the given UTC instant. Adding an already indexed code
// moves it, so replays and reconciles are idempotent
func (ix *Index) Add(codeID string, at time.Time) {
	at = at.UTC().Truncate(time.Second)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.reverse[codeID]; ok {
		if prev.Equal(at) {
			return
		}
		ix.removeLocked(codeID, prev)
	}

	h, m, s := at.Clock()
	mm, ok := ix.buckets[h]
	if !ok {
		mm = make(map[int]map[int]map[string]time.Time)
		ix.buckets[h] = mm
	}
	ss, ok := mm[m]
	if !ok {
		ss = make(map[int]map[string]time.Time)
		mm[m] = ss
	}
	codes, ok := ss[s]
	if !ok {
		codes = make(map[string]time.Time)
		ss[s] = codes
	}
	codes[codeID] = at
	ix.reverse[codeID] = at
}

// Remove disarms codeID. Unknown codes are a no-op
func (ix *Index) Remove(codeID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if at, ok := ix.reverse[codeID]; ok {
		ix.removeLocked(codeID, at)
	}
}

func (ix *Index) removeLocked(codeID string, at time.Time) {
	delete(ix.reverse, codeID)
	h, m, s := at.Clock()
	mm := ix.buckets[h]
	if mm == nil {
		return
	}
	ss := mm[m]
	if ss == nil {
		return
	}
	codes := ss[s]
	if codes == nil {
		return
	}
	delete(codes, codeID)
	if len(codes) == 0 {
		delete(ss, s)
		if len(ss) == 0 {
			delete(mm, m)
			if len(mm) == 0 {
				delete(ix.buckets, h)
			}
		}
	}
}

// Due returns the entries firing at the wall second of `at`. Entries whose
// instant lands on a later date in the same bucket stay armed
func (ix *Index) Due(at time.Time) []Entry {
	at = at.UTC().Truncate(time.Second)
	h, m, s := at.Clock()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	codes := ix.bucket(h, m, s)
	if len(codes) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(codes))
	for id, inst := range codes {
		if !inst.After(at) {
			out = append(out, Entry{CodeID: id, At: inst})
		}
	}
	return out
}

// Contains reports whether codeID is armed, and at which instant
func (ix *Index) Contains(codeID string) (time.Time, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	at, ok := ix.reverse[codeID]
	return at, ok
}

// Len returns the number of armed alarms
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.reverse)
}

// Snapshot returns every armed code and instant; reconcile diffs against it
func (ix *Index) Snapshot() map[string]time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]time.Time, len(ix.reverse))
	for id, at := range ix.reverse {
		out[id] = at
	}
	return out
}

func (ix *Index) bucket(h, m, s int) map[string]time.Time {
	mm := ix.buckets[h]
	if mm == nil {
		return nil
	}
	ss := mm[m]
	if ss == nil {
		return nil
	}
	return ss[s]
}
