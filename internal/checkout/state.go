package checkout

import (
	"time"

	"go.uber.org/zap"
)

// State is a step of one checkout attempt.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateSalePersisting  State = "sale_persisting"
	StateItemsPersisting State = "items_persisting"
	StateStockApplying   State = "stock_applying"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// attempt tracks and logs the state transitions of a single checkout.
type attempt struct {
	log     *zap.Logger
	state   State
	started time.Time
}

func newAttempt(log *zap.Logger, staffID int64) *attempt {
	return &attempt{
		log:     log.With(zap.Int64("staff_id", staffID)),
		state:   StateIdle,
		started: time.Now(),
	}
}

func (a *attempt) to(next State) {
	if a.state.terminal() {
		return
	}
	a.log.Debug("checkout transition", zap.String("from", string(a.state)), zap.String("to", string(next)))
	a.state = next
}

func (a *attempt) fail(err error) {
	if a.state.terminal() {
		return
	}
	a.log.Warn("checkout failed", zap.String("step", string(a.state)), zap.Error(err))
	a.to(StateFailed)
}

func (a *attempt) elapsedMS() float64 {
	return float64(time.Since(a.started).Microseconds()) / 1000
}
