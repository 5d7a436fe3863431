package entity

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidWeight = errors.New("invalid weight")
	ErrInvalidSource = errors.New("invalid scan source")
)

// ScanSource откуда пришёл запрос на скан
type ScanSource string

const (
	SourceWeight ScanSource = "weight-triggered"
	SourceManual ScanSource = "manual"
)

// ScanRequest запрос на один проход конвейера. Передаётся по значению и не меняется.
type ScanRequest struct {
	WeightGrams float64    `json:"weight_grams"`
	Source      ScanSource `json:"source"`
	RequestedAt time.Time  `json:"requested_at"`
}

// NewScanRequest проверяет вход и создаёт запрос.
func NewScanRequest(weight float64, source ScanSource, at time.Time) (ScanRequest, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return ScanRequest{}, fmt.Errorf("%w: %v", ErrInvalidWeight, weight)
	}
	switch source {
	case SourceWeight:
	case SourceManual:
		// Ручной запуск без веса не имеет смысла.
		if weight == 0 {
			return ScanRequest{}, fmt.Errorf("%w: manual scan needs a positive weight", ErrInvalidWeight)
		}
	default:
		return ScanRequest{}, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return ScanRequest{WeightGrams: weight, Source: source, RequestedAt: at}, nil
}

// DefectResult итог проверки одного бокса на дефекты.
type DefectResult struct {
	Findings []DefectFinding `json:"findings"`
	Error    string          `json:"error,omitempty"`
}

// Failed сообщает, что для бокса не удалось получить результат.
func (r DefectResult) Failed() bool {
	return r.Error != ""
}

// BoxResult пара бокс + результат по дефектам.
type BoxResult struct {
	Box    BoundingBox  `json:"box"`
	Defect DefectResult `json:"defect"`
}

// ScanResult итог одного скана, отправляется в UI и на основной сервер.
type ScanResult struct {
	ScanID      string      `json:"scan_id"`
	ImageID     string      `json:"image_id"`
	Timestamp   time.Time   `json:"timestamp"`
	WeightGrams float64     `json:"weight_grams"`
	Source      ScanSource  `json:"source"`
	Boxes       []BoxResult `json:"boxes"`
}

// DefectCount возвращает общее число найденных дефектов.
func (r *ScanResult) DefectCount() int {
	n := 0
	for _, b := range r.Boxes {
		n += len(b.Defect.Findings)
	}
	return n
}

// FailedBoxes возвращает число боксов с ошибкой.
func (r *ScanResult) FailedBoxes() int {
	n := 0
	for _, b := range r.Boxes {
		if b.Defect.Failed() {
			n++
		}
	}
	return n
}
