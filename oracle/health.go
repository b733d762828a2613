package oracle

import (
	"context"
	"time"
)

// Alerter receives operational alerts from the health checker.
type Alerter interface {
	SendWarning(message string, fields map[string]interface{}) error
	SendCritical(message string, fields map[string]interface{}) error
}

// HealthChecker watches for instruments whose commits have gone stale and
// for a price feed that stopped serving. It reads the same clock and source
// as the oracle, so tests can drive it deterministically.
type HealthChecker struct {
	oracle      *Oracle
	instruments []string
	alerts      Alerter
}

func NewHealthChecker(o *Oracle, instruments []string, alerts Alerter) *HealthChecker {
	return &HealthChecker{oracle: o, instruments: instruments, alerts: alerts}
}

// Run checks periodically until ctx is cancelled.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check()
		}
	}
}

// Check runs one pass over all instruments. A commit is stale once a full
// period plus the commit phase has passed since the last accepted boundary:
// by then the next window must have opened and closed again.
func (h *HealthChecker) Check() {
	now := h.oracle.clock.Now().Unix()
	staleAfter := h.oracle.period + h.oracle.commitPhaseDuration()
	for _, instrument := range h.instruments {
		snap, err := h.oracle.Snapshot(instrument)
		if err != nil {
			continue
		}
		if snap.LastTimestamp != 0 && now-snap.LastTimestamp > staleAfter {
			_ = h.alerts.SendCritical("volatility commit missed for "+instrument, map[string]interface{}{
				"instrument":  instrument,
				"last_commit": snap.LastTimestamp,
				"now":         now,
			})
		}
		if _, err := h.oracle.source.GetPrice(instrument); err != nil {
			_ = h.alerts.SendWarning("price feed stale for "+instrument, map[string]interface{}{
				"instrument": instrument,
				"error":      err.Error(),
			})
		}
	}
}
