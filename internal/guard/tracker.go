package guard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MaxMinLoading limita o tempo mínimo de carregamento configurável.
const MaxMinLoading = 2 * time.Second

// ErrUnresolved indica espera sem decisão registrada.
var ErrUnresolved = errors.New("guard: decisão pendente")

// Tracker acompanha uma navegação de Loading até a decisão final.
type Tracker struct {
	mu       sync.Mutex
	start    time.Time
	min      time.Duration
	decision *Decision
	now      func() time.Time
}

// ClampMinLoading aplica o teto de MaxMinLoading e descarta negativos.
func ClampMinLoading(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxMinLoading {
		return MaxMinLoading
	}
	return d
}

// NewTracker inicia a navegação no estado Loading.
func NewTracker(minLoading time.Duration) *Tracker {
	return newTrackerWithClock(minLoading, time.Now)
}

func newTrackerWithClock(minLoading time.Duration, now func() time.Time) *Tracker {
	return &Tracker{start: now(), min: ClampMinLoading(minLoading), now: now}
}

// Resolve registra a decisão; chamadas repetidas mantêm a primeira.
func (t *Tracker) Resolve(d Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.decision == nil {
		t.decision = &d
	}
}

// Ready é verdadeiro quando há decisão e o tempo mínimo já passou.
func (t *Tracker) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decision != nil && t.now().Sub(t.start) >= t.min
}

// State devolve Loading até Ready; depois o estado decidido.
func (t *Tracker) State() State {
	if !t.Ready() {
		return StateLoading
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decision.State
}

// Remaining devolve quanto falta do tempo mínimo.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	left := t.min - t.now().Sub(t.start)
	if left < 0 {
		return 0
	}
	return left
}

// Wait bloqueia até Ready; nunca mais que MaxMinLoading após a decisão.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	resolved := t.decision != nil
	t.mu.Unlock()
	if !resolved {
		return ErrUnresolved
	}

	left := t.Remaining()
	if left == 0 {
		return nil
	}

	timer := time.NewTimer(left)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
