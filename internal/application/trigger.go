package app

import (
	"math"
	"sync"
	"time"

	"inspection-brain/internal/domain/entity"
)

// TriggerDecision итог одного стабильного показания
type TriggerDecision struct {
	State      entity.TriggerState
	Transition entity.Transition
	Request    *entity.ScanRequest // nil, если скан не нужен
}

// TriggerMachine автомат IDLE/ACTIVE.
// Менять состояние может только опрос весов; остальные читают через Snapshot.
type TriggerMachine struct {
	minWeight        float64
	significantDelta float64

	mu                  sync.RWMutex
	state               entity.TriggerState
	lastTriggeredWeight float64
	lastStableWeight    float64
}

// NewTriggerMachine создаёт автомат в состоянии IDLE.
func NewTriggerMachine(minWeight, significantDelta float64) *TriggerMachine {
	return &TriggerMachine{
		minWeight:        minWeight,
		significantDelta: significantDelta,
		state:            entity.StateIdle,
	}
}

// Observe подаёт стабилизированный вес. Нестабильные показания игнорируются.
func (m *TriggerMachine) Observe(weight float64, stable bool, at time.Time) TriggerDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !stable {
		return TriggerDecision{State: m.state, Transition: entity.TransitionNone}
	}

	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		weight = math.Inf(-1)
	} else {
		m.lastStableWeight = weight
	}

	decision := TriggerDecision{Transition: entity.TransitionNone}

	switch m.state {
	case entity.StateIdle:
		if weight >= m.minWeight {
			m.state = entity.StateActive
			decision.Transition = entity.TransitionIdleToActive
			decision.Request = m.emit(weight, at)
		}
	case entity.StateActive:
		if weight < m.minWeight {
			m.state = entity.StateIdle
			decision.Transition = entity.TransitionActiveToIdle
		} else if math.Abs(weight-m.lastTriggeredWeight) >= m.significantDelta {
			decision.Transition = entity.TransitionRetrigger
			decision.Request = m.emit(weight, at)
		}
	}

	decision.State = m.state
	return decision
}

func (m *TriggerMachine) emit(weight float64, at time.Time) *entity.ScanRequest {
	m.lastTriggeredWeight = weight
	return &entity.ScanRequest{
		WeightGrams: weight,
		Source:      entity.SourceWeight,
		RequestedAt: at,
	}
}

// Snapshot возвращает копию состояния
func (m *TriggerMachine) Snapshot() entity.TriggerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return entity.TriggerSnapshot{
		State:               m.state,
		LastTriggeredWeight: m.lastTriggeredWeight,
		LastStableWeight:    m.lastStableWeight,
	}
}
