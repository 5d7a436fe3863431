package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// LowConfidenceThreshold дефекты ниже этого порога логируются предупреждением.
const LowConfidenceThreshold = 0.3

// DefectDetectorClient отправляет вырезку объекта на поиск дефектов
type DefectDetectorClient struct {
	baseClient
}

func NewDefectDetectorClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DefectDetectorClient {
	return &DefectDetectorClient{baseClient: newBaseClient("defect-detector", baseURL, timeout, logger)}
}

type defectDetectionResponse struct {
	ImageID string                 `json:"image_id"`
	FruitID string                 `json:"fruit_id"`
	Defects []entity.DefectFinding `json:"defects"`
}

// DetectDefects загружает JPEG вырезку как multipart и возвращает найденные дефекты.
func (c *DefectDetectorClient) DetectDefects(ctx context.Context, imageID string, box entity.BoundingBox, crop []byte) ([]entity.DefectFinding, error) {
	file := filePart{
		Field:       "image",
		Filename:    box.ID + ".jpg",
		ContentType: "image/jpeg",
		Data:        crop,
	}
	fields := map[string]string{"image_id": imageID, "fruit_id": box.ID}

	var raw defectDetectionResponse
	if err := c.postMultipart(ctx, "detect", "/detect-defects", file, fields, &raw); err != nil {
		return nil, err
	}

	var low []string
	for i, d := range raw.Defects {
		if d.Confidence < 0 || d.Confidence > 1 {
			return nil, c.fail("detect", 0, fmt.Errorf("defect %d: confidence %.3f out of [0,1]", i, d.Confidence))
		}
		if d.Confidence < LowConfidenceThreshold {
			low = append(low, fmt.Sprintf("%s (%.2f)", d.Type, d.Confidence))
		}
	}

	c.logger.Info("defects detected", "image_id", imageID, "fruit_id", box.ID, "count", len(raw.Defects))
	if len(low) > 0 {
		c.logger.Warn("low confidence defects", "fruit_id", box.ID, "defects", strings.Join(low, ", "))
	}

	if raw.Defects == nil {
		raw.Defects = []entity.DefectFinding{}
	}
	return raw.Defects, nil
}

var _ port.DefectDetector = (*DefectDetectorClient)(nil)
