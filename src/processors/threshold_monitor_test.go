package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdMonitor_EmptyBatchNeverAborts(t *testing.T) {
	m := NewThresholdMonitor(0.25)
	assert.False(t, m.ShouldAbort())
}

func TestThresholdMonitor_StrictlyAboveThresholdAborts(t *testing.T) {
	m := NewThresholdMonitor(0.25)

	// Exactly at the threshold: 1 of 4 quarantined.
	m.Record(true)
	m.Record(false)
	m.Record(false)
	m.Record(false)
	assert.False(t, m.ShouldAbort(), "fraction equal to threshold must not abort")

	// 2 of 5 pushes strictly above 0.25.
	m.Record(true)
	assert.True(t, m.ShouldAbort())
}

func TestThresholdMonitor_Counts(t *testing.T) {
	m := NewThresholdMonitor(0.25)
	for i := 0; i < 7; i++ {
		m.Record(false)
	}
	for i := 0; i < 3; i++ {
		m.Record(true)
	}

	c := m.Counts()
	assert.Equal(t, 10, c.Processed)
	assert.Equal(t, 3, c.Quarantined)
	assert.InDelta(t, 0.3, c.Fraction, 1e-9)
	assert.Equal(t, 0.25, c.Threshold)
	assert.True(t, m.ShouldAbort(), "30 percent quarantined with a 0.25 threshold aborts")
}
