package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing window submissions are counted over.
	DefaultWindow = 300 * time.Second
	// DefaultMaxPerWindow is how many submissions a student may land
	// inside one window.
	DefaultMaxPerWindow = 3
)

type entry struct {
	At       time.Time
	ClientIP string
}

// Ledger tracks recent submission timestamps per student. It is in-memory
// and single-process: a best-effort defense, not a security boundary, and
// it does not coordinate across instances.
type Ledger struct {
	mu           sync.Mutex
	entries      map[string][]entry
	window       time.Duration
	maxPerWindow int
}

func NewLedger() *Ledger {
	l := &Ledger{
		entries:      make(map[string][]entry),
		window:       DefaultWindow,
		maxPerWindow: DefaultMaxPerWindow,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.cleanup(time.Now())
		}
	}()

	return l
}

// NewLedgerWithLimits is used by tests; it starts no cleanup goroutine.
func NewLedgerWithLimits(window time.Duration, maxPerWindow int) *Ledger {
	return &Ledger{
		entries:      make(map[string][]entry),
		window:       window,
		maxPerWindow: maxPerWindow,
	}
}

// TryAdmit prunes the student's entries to [now-window, now], rejects when
// the pruned count has reached the cap, and otherwise records (now, ip).
// The whole read-prune-append runs under the lock so two concurrent
// submissions cannot both take the last slot.
func (l *Ledger) TryAdmit(studentID, clientIP string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(studentID, now)
	if len(kept) >= l.maxPerWindow {
		return false
	}

	l.entries[studentID] = append(kept, entry{At: now, ClientIP: clientIP})
	return true
}

// prune must be called with the lock held.
func (l *Ledger) prune(studentID string, now time.Time) []entry {
	cutoff := now.Add(-l.window)
	all := l.entries[studentID]
	kept := all[:0]
	for _, e := range all {
		if e.At.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(l.entries, studentID)
		return nil
	}
	l.entries[studentID] = kept
	return kept
}

func (l *Ledger) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for studentID := range l.entries {
		l.prune(studentID, now)
	}
}
