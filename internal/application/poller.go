package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// ScanSubmitter принимает запросы на скан, не дожидаясь конвейера.
type ScanSubmitter interface {
	Submit(ctx context.Context, req entity.ScanRequest) error
}

// Poller опрашивает весы и превращает стабильный вес в запросы на скан.
// Он единственный, кто меняет TriggerMachine.
type Poller struct {
	reader   port.WeightReader
	filter   *StabilityFilter
	machine  *TriggerMachine
	scans    ScanSubmitter
	events   port.EventSink
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller создаёт цикл опроса весов.
func NewPoller(reader port.WeightReader, filter *StabilityFilter, machine *TriggerMachine, scans ScanSubmitter, events port.EventSink, interval time.Duration, logger *slog.Logger) *Poller {
	if events == nil {
		events = noopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		reader:   reader,
		filter:   filter,
		machine:  machine,
		scans:    scans,
		events:   events,
		interval: interval,
		logger:   logger.With("component", "weight-poller"),
	}
}

// Run опрашивает весы до отмены ctx. После ошибки чтения пауза удваивается.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("weight polling started", "interval", p.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("weight polling stopped")
			return nil
		case <-timer.C:
		}

		wait := p.interval
		if err := p.Tick(ctx); err != nil {
			p.logger.Warn("weight polling failed", "error", err)
			wait = 2 * p.interval
		}
		timer.Reset(wait)
	}
}

// Tick один шаг опроса: показание -> окно -> автомат -> запрос на скан.
func (p *Poller) Tick(ctx context.Context) error {
	sample, err := p.reader.ReadWeight(ctx)
	if err != nil {
		return fmt.Errorf("read weight: %w", err)
	}

	weight, stable := p.filter.Observe(sample)
	decision := p.machine.Observe(weight, stable, sample.Timestamp)

	if decision.Transition != entity.TransitionNone {
		p.logger.Info("state transition", "transition", decision.Transition, "weight", weight)
		p.events.Emit(entity.NewEvent(entity.EventTransition, map[string]any{
			"transition": string(decision.Transition),
			"state":      string(decision.State),
			"weight":     weight,
		}))
	}

	if decision.Request == nil {
		return nil
	}

	if err := p.scans.Submit(ctx, *decision.Request); err != nil {
		p.logger.Debug("scan not started", "reason", RejectReason(err), "weight", weight)
	}
	return nil
}
