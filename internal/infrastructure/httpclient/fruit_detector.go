package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// FruitDetectorClient отправляет полный кадр на детекцию объектов
type FruitDetectorClient struct {
	baseClient
}

func NewFruitDetectorClient(baseURL string, timeout time.Duration, logger *slog.Logger) *FruitDetectorClient {
	return &FruitDetectorClient{baseClient: newBaseClient("fruit-detector", baseURL, timeout, logger)}
}

type fruitDetectionsResponse struct {
	ImageID string           `json:"image_id"`
	Fruits  []fruitDetection `json:"fruits"`
}

type fruitDetection struct {
	FruitID    string   `json:"fruit_id"`
	Class      string   `json:"class"`
	Confidence float64  `json:"confidence"`
	BBox       wireBBox `json:"bbox"`
}

// wireBBox бокс в формате детектора: [x_min, y_min, x_max, y_max] или объект.
type wireBBox struct {
	XMin, YMin, XMax, YMax float64
}

func (b *wireBBox) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v []float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if len(v) != 4 {
			return fmt.Errorf("bbox must contain four values, got %d", len(v))
		}
		b.XMin, b.YMin, b.XMax, b.YMax = v[0], v[1], v[2], v[3]
		return nil
	}

	var obj struct {
		XMin *float64 `json:"x_min"`
		YMin *float64 `json:"y_min"`
		XMax *float64 `json:"x_max"`
		YMax *float64 `json:"y_max"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.XMin == nil || obj.YMin == nil || obj.XMax == nil || obj.YMax == nil {
		return errors.New("bbox object must have x_min, y_min, x_max, y_max")
	}
	b.XMin, b.YMin, b.XMax, b.YMax = *obj.XMin, *obj.YMin, *obj.XMax, *obj.YMax
	return nil
}

// Detect отправляет кадр и возвращает боксы в порядке ответа детектора.
func (c *FruitDetectorClient) Detect(ctx context.Context, imageID string, image []byte, imgsz int) ([]entity.BoundingBox, error) {
	fields := map[string]string{"image_id": imageID}
	if imgsz > 0 {
		fields["imgsz"] = strconv.Itoa(imgsz)
	}
	// Сервис ждёт часть с именем "file".
	file := filePart{
		Field:       "file",
		Filename:    "full.jpg",
		ContentType: http.DetectContentType(image),
		Data:        image,
	}

	var raw fruitDetectionsResponse
	if err := c.postMultipart(ctx, "detect", "/detect-fruits", file, fields, &raw); err != nil {
		return nil, err
	}

	boxes := make([]entity.BoundingBox, 0, len(raw.Fruits))
	for i, f := range raw.Fruits {
		id := f.FruitID
		if id == "" {
			id = fmt.Sprintf("%s-%d", imageID, i)
		}
		box, err := entity.BoundingBoxFromDetection(id, f.Class, f.Confidence, f.BBox.XMin, f.BBox.YMin, f.BBox.XMax, f.BBox.YMax)
		if err != nil {
			return nil, c.fail("detect", 0, fmt.Errorf("fruit %d: %w", i, err))
		}
		boxes = append(boxes, box)
	}

	c.logger.Info("fruits detected", "image_id", imageID, "count", len(boxes), "imgsz", imgsz)
	return boxes, nil
}

var _ port.FruitDetector = (*FruitDetectorClient)(nil)
