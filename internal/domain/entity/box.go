package entity

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidBox = errors.New("invalid bounding box")

// BoundingBox прямоугольник объекта на кадре, в пикселях
type BoundingBox struct {
	ID         string  `json:"fruit_id"`
	X          float64 `json:"x"`      // левый верхний угол
	Y          float64 `json:"y"`      // левый верхний угол
	Width      float64 `json:"width"`  // ширина в пикселях
	Height     float64 `json:"height"` // высота в пикселях
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewBoundingBox создаёт бокс из углов и проверяет его.
func NewBoundingBox(id, label string, confidence, xMin, yMin, xMax, yMax float64) (BoundingBox, error) {
	for _, v := range []float64{confidence, xMin, yMin, xMax, yMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, fmt.Errorf("%w: non-finite value", ErrInvalidBox)
		}
	}
	if confidence < 0 || confidence > 1 {
		return BoundingBox{}, fmt.Errorf("%w: confidence %.3f out of [0,1]", ErrInvalidBox, confidence)
	}
	if xMin < 0 || yMin < 0 {
		return BoundingBox{}, fmt.Errorf("%w: negative origin (%.1f, %.1f)", ErrInvalidBox, xMin, yMin)
	}
	if xMax <= xMin || yMax <= yMin {
		return BoundingBox{}, fmt.Errorf("%w: empty extent", ErrInvalidBox)
	}
	return BoundingBox{
		ID:         id,
		X:          xMin,
		Y:          yMin,
		Width:      xMax - xMin,
		Height:     yMax - yMin,
		Label:      label,
		Confidence: confidence,
	}, nil
}

// BoundingBoxFromDetection создаёт бокс из ответа детектора. Проверяются только
// конечность чисел и уверенность: бокс за кадром или нулевой площади остаётся
// ошибкой одного объекта и отсекается при вырезке.
func BoundingBoxFromDetection(id, label string, confidence, xMin, yMin, xMax, yMax float64) (BoundingBox, error) {
	for _, v := range []float64{confidence, xMin, yMin, xMax, yMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, fmt.Errorf("%w: non-finite value", ErrInvalidBox)
		}
	}
	if confidence < 0 || confidence > 1 {
		return BoundingBox{}, fmt.Errorf("%w: confidence %.3f out of [0,1]", ErrInvalidBox, confidence)
	}
	return BoundingBox{
		ID:         id,
		X:          xMin,
		Y:          yMin,
		Width:      xMax - xMin,
		Height:     yMax - yMin,
		Label:      label,
		Confidence: confidence,
	}, nil
}

// Degenerate бокс без площади: нулевая или отрицательная ширина или высота.
func (b BoundingBox) Degenerate() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Center возвращает координаты центра бокса
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area возвращает площадь бокса
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Corners возвращает (xMin, yMin, xMax, yMax) в целых пикселях.
func (b BoundingBox) Corners() (x0, y0, x1, y1 int) {
	return int(b.X), int(b.Y), int(b.X + b.Width), int(b.Y + b.Height)
}

// DefectMask контур дефекта, если детектор его отдаёт.
type DefectMask struct {
	Polygon [][2]float64 `json:"polygon"`
}

// DefectFinding один найденный дефект
type DefectFinding struct {
	Type         string      `json:"type"`
	Confidence   float64     `json:"confidence"`
	Segmentation *DefectMask `json:"segmentation,omitempty"`
}
