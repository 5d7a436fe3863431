package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/logging"
)

type scriptedScale struct {
	mu      sync.Mutex
	t0      time.Time
	grams   []float64
	pos     int
	failAt  int
	tickDur time.Duration
}

func (s *scriptedScale) ReadWeight(ctx context.Context) (entity.WeightSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.pos
	s.pos++
	if s.failAt > 0 && i+1 == s.failAt {
		return entity.WeightSample{}, errors.New("scale offline")
	}
	g := s.grams[len(s.grams)-1]
	if i < len(s.grams) {
		g = s.grams[i]
	}
	return entity.WeightSample{Timestamp: s.t0.Add(time.Duration(i) * s.tickDur), Grams: g}, nil
}

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []entity.ScanRequest
	err  error
}

func (r *recordingSubmitter) Submit(ctx context.Context, req entity.ScanRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func newTestPoller(scale *scriptedScale, sub ScanSubmitter, sink *recordingSink) (*Poller, *TriggerMachine) {
	machine := NewTriggerMachine(testMinWeight, testDelta)
	p := NewPoller(scale, NewStabilityFilter(400*time.Millisecond, 5), machine, sub, sink, 10*time.Millisecond, logging.Discard())
	return p, machine
}

func TestPoller_PlacedObjectTriggersOnce(t *testing.T) {
	scale := &scriptedScale{
		t0:      time.Now(),
		grams:   []float64{0, 0, 60, 120, 150, 151, 150, 149, 150, 151, 150},
		tickDur: 150 * time.Millisecond,
	}
	sub := &recordingSubmitter{}
	sink := &recordingSink{}
	p, machine := newTestPoller(scale, sub, sink)

	for i := 0; i < len(scale.grams); i++ {
		require.NoError(t, p.Tick(context.Background()))
	}

	require.Equal(t, 1, sub.count())
	require.InDelta(t, 150, sub.reqs[0].WeightGrams, 1)
	require.Equal(t, entity.StateActive, machine.Snapshot().State)
	require.Equal(t, []string{entity.EventTransition}, sink.types())
}

func TestPoller_RejectedSubmitDoesNotStop(t *testing.T) {
	scale := &scriptedScale{t0: time.Now(), grams: []float64{100, 100, 100}, tickDur: 150 * time.Millisecond}
	sub := &recordingSubmitter{err: ErrCooldown}
	p, _ := newTestPoller(scale, sub, &recordingSink{})

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Tick(context.Background()))
	}
	require.Equal(t, 1, sub.count())
}

func TestPoller_ReadErrorIsReturned(t *testing.T) {
	scale := &scriptedScale{t0: time.Now(), grams: []float64{100}, failAt: 1, tickDur: 150 * time.Millisecond}
	p, _ := newTestPoller(scale, &recordingSubmitter{}, &recordingSink{})

	err := p.Tick(context.Background())
	require.ErrorContains(t, err, "scale offline")
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	scale := &scriptedScale{t0: time.Now(), grams: []float64{0}, tickDur: 150 * time.Millisecond}
	p, _ := newTestPoller(scale, &recordingSubmitter{}, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		scale.mu.Lock()
		defer scale.mu.Unlock()
		return scale.pos >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
