package app

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCooldown     = errors.New("scan cooldown active")
	ErrScanInFlight = errors.New("scan already in flight")
)

// RejectReason короткий код причины отказа для API и счётчиков.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrScanInFlight):
		return "scan_in_flight"
	default:
		return "unknown"
	}
}

// admissionGuard не больше одного скана одновременно и не чаще interval.
type admissionGuard struct {
	interval time.Duration

	mu          sync.Mutex
	inFlight    bool
	lastStarted time.Time
}

func newAdmissionGuard(interval time.Duration) *admissionGuard {
	return &admissionGuard{interval: interval}
}

// acquire занимает слот. Время старта ставится здесь и остаётся даже для неудачных сканов.
func (g *admissionGuard) acquire(now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastStarted.IsZero() && now.Sub(g.lastStarted) < g.interval {
		return ErrCooldown
	}
	if g.inFlight {
		return ErrScanInFlight
	}
	g.inFlight = true
	g.lastStarted = now
	return nil
}

func (g *admissionGuard) release() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

func (g *admissionGuard) busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
