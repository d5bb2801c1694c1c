package quota

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	errpkg "github.com/veranemoloko/media-queue/internal/errors"
)

// Ledger tracks rolling byte consumption per API key. Consumption is
// reserved up front at admission time and stays counted against the key
// until the window expires, whether or not the task later succeeds: a failed
// download still occupied capacity while it ran.
//
// The window is a resetting one, not a decaying average: the first
// reservation after expiry starts a fresh window with only its own bytes.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*entry

	defaultCeiling int64
	window         time.Duration

	now func() time.Time
}

type entry struct {
	mu          sync.Mutex
	consumed    int64
	windowStart time.Time
	ceiling     int64
}

// NewLedger creates a Ledger with the given default per-key ceiling (bytes)
// and window duration.
func NewLedger(ceiling int64, window time.Duration) *Ledger {
	return &Ledger{
		entries:        make(map[string]*entry),
		defaultCeiling: ceiling,
		window:         window,
		now:            time.Now,
	}
}

// SetCeiling overrides the quota ceiling for a single key.
func (l *Ledger) SetCeiling(key string, ceiling int64) {
	e := l.entry(key)
	e.mu.Lock()
	e.ceiling = ceiling
	e.mu.Unlock()
}

// TryReserve admits estimatedBytes against the key's quota. On approval the
// bytes are counted immediately; on denial ErrQuotaExceeded is returned and
// the ledger is unchanged. Approval is deterministic given ledger state:
// consumed + estimatedBytes must not exceed the ceiling.
func (l *Ledger) TryReserve(key string, estimatedBytes int64) error {
	e := l.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if now.Sub(e.windowStart) >= l.window {
		e.consumed = 0
		e.windowStart = now
	}

	if e.consumed+estimatedBytes > e.ceiling {
		return fmt.Errorf("%w: %d bytes requested, %d of %d already consumed in window",
			errpkg.ErrQuotaExceeded, estimatedBytes, e.consumed, e.ceiling)
	}

	e.consumed += estimatedBytes
	slog.Debug("quota reserved",
		"key", key,
		"bytes", estimatedBytes,
		"consumed_in_window", e.consumed,
		"ceiling", e.ceiling,
	)
	return nil
}

// Consumed reports the bytes currently counted against the key. An expired
// window reads as zero.
func (l *Ledger) Consumed(key string) int64 {
	e := l.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if l.now().Sub(e.windowStart) >= l.window {
		return 0
	}
	return e.consumed
}

// entry returns the ledger entry for key, creating it on first use. The
// ledger-level lock guards only the map; per-key state has its own mutex so
// keys never contend with each other.
func (l *Ledger) entry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{ceiling: l.defaultCeiling}
		l.entries[key] = e
	}
	return e
}
