package transcription

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDedupWindow is how long a final message key stays live.
const DefaultDedupWindow = 10 * time.Second

// Deduplicator drops the second copy of an utterance delivered over both the
// primary and the app-message channel. It is not safe for concurrent use;
// Session serializes access.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	lastInterim string
	finals      map[string]time.Time
}

// NewDeduplicator creates a deduplicator with the given trailing window for
// final messages. A non-positive window uses DefaultDedupWindow.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduplicator{
		window: window,
		now:    time.Now,
		finals: make(map[string]time.Time),
	}
}

// Key builds the composite key of a message: normalized text, finality and
// the source timestamp. Messages without a timestamp use the current time
// truncated to the second, so copies arriving together still collide.
func (d *Deduplicator) Key(m Message) string {
	kind := "interim"
	if m.Final {
		kind = "final"
	}

	ts := m.Timestamp.UnwrapOrFunc(func() time.Time {
		return d.now().Truncate(time.Second)
	})

	return normalizeText(m.Text) + "|" + kind + "|" +
		strconv.FormatInt(ts.UnixMilli(), 10)
}

// Accept reports whether m is new. Interim messages are compared against
// the single most recent interim key only. Final keys are held for the
// trailing window and expired entries are swept on every insert.
func (d *Deduplicator) Accept(m Message) bool {
	key := d.Key(m)

	if !m.Final {
		if key == d.lastInterim {
			return false
		}
		d.lastInterim = key
		return true
	}

	now := d.now()
	d.sweep(now)

	if _, seen := d.finals[key]; seen {
		return false
	}
	d.finals[key] = now
	return true
}

// Live returns the number of final keys currently held.
func (d *Deduplicator) Live() int {
	return len(d.finals)
}

// Reset forgets every key.
func (d *Deduplicator) Reset() {
	d.lastInterim = ""
	d.finals = make(map[string]time.Time)
}

func (d *Deduplicator) sweep(now time.Time) {
	for key, seen := range d.finals {
		if now.Sub(seen) > d.window {
			delete(d.finals, key)
		}
	}
}

// normalizeText lowercases and collapses whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
