package port

import (
	"context"

	"inspection-brain/internal/domain/entity"
)

// Camera делает снимок по запросу
type Camera interface {
	// Capture возвращает кадр в запрошенном разрешении ("WxH")
	Capture(ctx context.Context, resolution string) (*entity.CapturedImage, error)
}
