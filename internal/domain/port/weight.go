package port

import (
	"context"

	"inspection-brain/internal/domain/entity"
)

// WeightReader источник показаний весов
type WeightReader interface {
	ReadWeight(ctx context.Context) (entity.WeightSample, error)
}
