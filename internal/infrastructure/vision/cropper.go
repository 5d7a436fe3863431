package vision

import (
	"errors"
	"fmt"
	"image"

	"inspection-brain/internal/domain/entity"
)

// ErrEmptyCrop бокс после обрезки по кадру имеет нулевую площадь.
var ErrEmptyCrop = errors.New("bounding box is outside the frame")

// DefaultJPEGQuality качество JPEG для вырезок.
const DefaultJPEGQuality = 90

// clampRect переводит бокс в прямоугольник внутри bounds.
func clampRect(box entity.BoundingBox, bounds image.Rectangle) (image.Rectangle, error) {
	x0, y0, x1, y1 := box.Corners()
	// image.Rect переставляет углы, поэтому вырожденный бокс отсекаем заранее.
	if box.Degenerate() {
		return image.Rectangle{}, fmt.Errorf("%w: box %q has no area (%.1fx%.1f)",
			ErrEmptyCrop, box.ID, box.Width, box.Height)
	}
	rect := image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: box %q at (%d,%d)-(%d,%d), frame %dx%d",
			ErrEmptyCrop, box.ID, x0, y0, x1, y1, bounds.Dx(), bounds.Dy())
	}
	return rect, nil
}
