package port

import (
	"context"

	"inspection-brain/internal/domain/entity"
)

// ResultPublisher получатель итогов скана (UI, основной сервер)
type ResultPublisher interface {
	Name() string
	Publish(ctx context.Context, result *entity.ScanResult) error
}

// EventSink принимает события. Emit не должен блокировать.
type EventSink interface {
	Emit(event entity.Event)
}
