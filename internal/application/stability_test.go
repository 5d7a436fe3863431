package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
)

func TestStabilityFilter_EmptyWindow(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	w, stable := f.Current()
	require.False(t, stable)
	require.Equal(t, 0.0, w)
}

func TestStabilityFilter_StableWithinEpsilon(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	t0 := time.Now()

	var (
		w      float64
		stable bool
	)
	for i, g := range []float64{100, 102, 98, 101} {
		w, stable = f.Observe(entity.WeightSample{Timestamp: t0.Add(time.Duration(i) * 50 * time.Millisecond), Grams: g})
	}
	require.True(t, stable)
	require.InDelta(t, 100.25, w, 1e-9)
}

func TestStabilityFilter_SpikeBreaksStability(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	t0 := time.Now()

	f.Observe(entity.WeightSample{Timestamp: t0, Grams: 100})
	f.Observe(entity.WeightSample{Timestamp: t0.Add(50 * time.Millisecond), Grams: 106})
	_, stable := f.Observe(entity.WeightSample{Timestamp: t0.Add(100 * time.Millisecond), Grams: 101})
	require.False(t, stable)
}

func TestStabilityFilter_EvictsOldSamples(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	t0 := time.Now()

	f.Observe(entity.WeightSample{Timestamp: t0, Grams: 0})
	f.Observe(entity.WeightSample{Timestamp: t0.Add(100 * time.Millisecond), Grams: 150})
	_, stable := f.Current()
	require.False(t, stable)

	// первое показание выпадает из окна
	w, stable := f.Observe(entity.WeightSample{Timestamp: t0.Add(450 * time.Millisecond), Grams: 151})
	require.True(t, stable)
	require.Equal(t, 2, f.Len())
	require.InDelta(t, 150.5, w, 1e-9)
}

func TestStabilityFilter_SingleSampleIsStable(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	w, stable := f.Observe(entity.WeightSample{Timestamp: time.Now(), Grams: 42})
	require.True(t, stable)
	require.Equal(t, 42.0, w)
}

func TestStabilityFilter_ClockJumpBackDropsNewerSamples(t *testing.T) {
	f := NewStabilityFilter(400*time.Millisecond, 5)
	t0 := time.Now()

	f.Observe(entity.WeightSample{Timestamp: t0, Grams: 100})
	f.Observe(entity.WeightSample{Timestamp: t0.Add(100 * time.Millisecond), Grams: 100})

	// часы весов откатились на минуту назад
	back := t0.Add(-time.Minute)
	for i := 0; i < 20; i++ {
		f.Observe(entity.WeightSample{Timestamp: back.Add(time.Duration(i) * 50 * time.Millisecond), Grams: 200})
	}

	w, stable := f.Current()
	require.True(t, stable)
	require.Equal(t, 200.0, w)
	require.LessOrEqual(t, f.Len(), 9)
}
