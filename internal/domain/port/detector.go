package port

import (
	"context"

	"inspection-brain/internal/domain/entity"
)

// FruitDetector интерфейс детектора целых объектов
type FruitDetector interface {
	// Detect возвращает боксы в порядке, который отдал детектор
	Detect(ctx context.Context, imageID string, image []byte, imgsz int) ([]entity.BoundingBox, error)
}

// DefectDetector интерфейс детектора дефектов
type DefectDetector interface {
	// DetectDefects анализирует вырезку одного объекта
	DetectDefects(ctx context.Context, imageID string, box entity.BoundingBox, crop []byte) ([]entity.DefectFinding, error)
}
