// Package dedup detects repeated presses of the same button by the same user.
package dedup

import (
	"sync"
	"time"

	"github.com/Proton-105/stepbot/internal/idempotency"
)

// DefaultThreshold is the gap under which two presses count as a double tap.
const DefaultThreshold = time.Second

// window holds the latest press first and the previous one second.
type window struct {
	last, prev time.Time
}

// Detector keeps the last two press times per fingerprint. It only reports, it never suppresses.
type Detector struct {
	mu        sync.Mutex
	windows   map[string]*window
	threshold time.Duration
}

func New(threshold time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{
		windows:   make(map[string]*window),
		threshold: threshold,
	}
}

// Fingerprint identifies a press by user and raw payload.
func Fingerprint(userID int64, payload string) string {
	return idempotency.Key("press", userID, payload)
}

// Record stores a press at time at and reports whether it follows the previous press of the
// same fingerprint within the threshold.
func (d *Detector) Record(userID int64, payload string, at time.Time) bool {
	key := Fingerprint(userID, payload)

	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[key]
	if !ok {
		d.windows[key] = &window{last: at}
		return false
	}

	w.prev, w.last = w.last, at
	gap := w.last.Sub(w.prev)
	if gap < 0 {
		gap = -gap
	}
	return gap < d.threshold
}

// Prune drops fingerprints whose last press is older than maxAge and returns how many were dropped.
func (d *Detector) Prune(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, w := range d.windows {
		if w.last.Before(cutoff) {
			delete(d.windows, key)
			removed++
		}
	}
	return removed
}

func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.windows)
}
