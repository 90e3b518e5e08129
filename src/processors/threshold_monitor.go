// src/processors/threshold_monitor.go
package processors

import "sync"

// ThresholdCounts is a point-in-time snapshot of the monitor, surfaced in
// logs and in the abort error so operators see the final numbers.
type ThresholdCounts struct {
	Processed   int     `json:"processed"`
	Quarantined int     `json:"quarantined"`
	Fraction    float64 `json:"fraction"`
	Threshold   float64 `json:"threshold"`
}

// ThresholdMonitor keeps the running tally of processed and quarantined
// records for one run and decides continue vs abort. It is advisory while
// the batch is in flight and authoritative once the batch has been fully
// processed. Mutex-guarded so the parallel enrichment stage can record
// outcomes directly.
type ThresholdMonitor struct {
	mu          sync.Mutex
	processed   int
	quarantined int
	threshold   float64
}

// NewThresholdMonitor creates a monitor with the configured abort fraction.
func NewThresholdMonitor(thresholdFraction float64) *ThresholdMonitor {
	return &ThresholdMonitor{threshold: thresholdFraction}
}

// Record registers one processed record and whether it was quarantined.
// Enrichment failures count as quarantine events here, same as validation
// rejects.
func (m *ThresholdMonitor) Record(quarantined bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	if quarantined {
		m.quarantined++
	}
}

// ShouldAbort reports whether the quarantine fraction strictly exceeds the
// configured threshold. An empty batch never aborts.
func (m *ThresholdMonitor) ShouldAbort() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed == 0 {
		return false
	}
	return float64(m.quarantined)/float64(m.processed) > m.threshold
}

// Counts returns a snapshot of the current tallies.
func (m *ThresholdMonitor) Counts() ThresholdCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := ThresholdCounts{
		Processed:   m.processed,
		Quarantined: m.quarantined,
		Threshold:   m.threshold,
	}
	if m.processed > 0 {
		c.Fraction = float64(m.quarantined) / float64(m.processed)
	}
	return c
}
