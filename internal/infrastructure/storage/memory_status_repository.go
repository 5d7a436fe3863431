package storage

import (
	"context"
	"sync"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// MemoryStatusRepository in-memory хранилище счётчиков сканов
type MemoryStatusRepository struct {
	mu    sync.RWMutex
	stats entity.ScanStats
}

// NewMemoryStatusRepository создаёт новое in-memory хранилище
func NewMemoryStatusRepository() *MemoryStatusRepository {
	return &MemoryStatusRepository{}
}

// RecordStarted фиксирует начало скана
func (r *MemoryStatusRepository) RecordStarted(ctx context.Context, scanID string, req entity.ScanRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Started++
	r.stats.LastScanID = scanID
	r.stats.LastWeight = req.WeightGrams
	r.stats.LastStartedAt = req.RequestedAt
	r.stats.LastOutcome = ""
	return nil
}

// RecordFinished фиксирует итог скана
func (r *MemoryStatusRepository) RecordFinished(ctx context.Context, scanID string, outcome entity.ScanOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch outcome {
	case entity.OutcomeCompleted:
		r.stats.Completed++
	case entity.OutcomeFailed:
		r.stats.Failed++
	}
	// Итог старого скана не должен перетирать более новый.
	if r.stats.LastScanID == scanID {
		r.stats.LastOutcome = outcome
	}
	return nil
}

// RecordRejected фиксирует отклонённый запрос
func (r *MemoryStatusRepository) RecordRejected(ctx context.Context, reason string) error {
	r.mu.Lock()
	r.stats.Rejected++
	r.stats.LastReject = reason
	r.mu.Unlock()

	return nil
}

// Stats возвращает копию счётчиков
func (r *MemoryStatusRepository) Stats(ctx context.Context) (entity.ScanStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stats, nil
}

// Проверка реализации интерфейса
var _ port.StatusRepository = (*MemoryStatusRepository)(nil)
