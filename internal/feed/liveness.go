package feed

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State says which channel is currently considered authoritative for
// freshness. The poller runs in both states; FALLBACK only means the push
// channel has gone quiet.
type State string

const (
	StateLive     State = "LIVE"
	StateFallback State = "FALLBACK"
)

// TransitionFunc observes state edges, e.g. to journal them. Called
// outside the liveness lock.
type TransitionFunc func(state State, reason string, at time.Time)

// Liveness is the push-channel freshness state machine. It starts in
// FALLBACK (nothing received yet), flips to LIVE the instant a push event
// is processed, and degrades back when no push arrives within staleAfter.
// Both edges log exactly once; steady states never log.
type Liveness struct {
	mu             sync.Mutex
	staleAfter     time.Duration
	lastPush       time.Time
	fallbackActive bool

	log          *zap.Logger
	onTransition TransitionFunc
}

func NewLiveness(staleAfter time.Duration, log *zap.Logger, onTransition TransitionFunc) *Liveness {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Liveness{
		staleAfter:     staleAfter,
		fallbackActive: true,
		log:            log,
		onTransition:   onTransition,
	}
}

// MarkPush records one processed push event and reports whether it
// restored the stream (the FALLBACK -> LIVE edge).
func (l *Liveness) MarkPush(now time.Time) bool {
	l.mu.Lock()
	l.lastPush = now
	restored := l.fallbackActive
	l.fallbackActive = false
	l.mu.Unlock()

	if restored {
		l.log.Info("stream updates resumed, deactivating fallback mode")
		if l.onTransition != nil {
			l.onTransition(StateLive, "push event processed", now)
		}
	}
	return restored
}

// CheckStale degrades to FALLBACK when the last push is older than the
// window (or none was ever seen) and reports whether this call performed
// the LIVE -> FALLBACK edge. The poller calls this every tick; only the
// edge produces output.
func (l *Liveness) CheckStale(now time.Time) bool {
	l.mu.Lock()
	stale := l.lastPush.IsZero() || now.Sub(l.lastPush) > l.staleAfter
	degraded := stale && !l.fallbackActive
	if degraded {
		l.fallbackActive = true
	}
	lastPush := l.lastPush
	l.mu.Unlock()

	if degraded {
		reason := "no stream update received yet"
		if !lastPush.IsZero() {
			reason = fmt.Sprintf("last stream update %s ago", now.Sub(lastPush).Round(time.Second))
		}
		l.log.Warn("no recent stream updates, activating fallback mode", zap.String("reason", reason))
		if l.onTransition != nil {
			l.onTransition(StateFallback, reason, now)
		}
	}
	return degraded
}

// FallbackActive reports the current mode without side effects.
func (l *Liveness) FallbackActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fallbackActive
}

// State returns the current state name.
func (l *Liveness) State() State {
	if l.FallbackActive() {
		return StateFallback
	}
	return StateLive
}

// LastPush returns the time of the most recent processed push event; the
// zero time means none yet.
func (l *Liveness) LastPush() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPush
}
