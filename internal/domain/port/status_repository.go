package port

import (
	"context"

	"inspection-brain/internal/domain/entity"
)

// StatusRepository интерфейс хранилища счётчиков сканов
type StatusRepository interface {
	// RecordStarted фиксирует начало скана
	RecordStarted(ctx context.Context, scanID string, req entity.ScanRequest) error

	// RecordFinished фиксирует итог скана
	RecordFinished(ctx context.Context, scanID string, outcome entity.ScanOutcome) error

	// RecordRejected фиксирует отклонённый запрос
	RecordRejected(ctx context.Context, reason string) error

	// Stats возвращает копию счётчиков
	Stats(ctx context.Context) (entity.ScanStats, error)
}
