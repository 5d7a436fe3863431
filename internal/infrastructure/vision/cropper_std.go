//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// Cropper режет кадры средствами image/* (сборка без OpenCV).
type Cropper struct {
	Quality int
}

// NewCropper создаёт нарезчик с заданным качеством JPEG.
func NewCropper(quality int) *Cropper {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Cropper{Quality: quality}
}

// Load декодирует JPEG или PNG кадр.
func (c *Cropper) Load(imageData []byte) (port.Frame, error) {
	if len(imageData) == 0 {
		return nil, errors.New("empty image")
	}
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &stdFrame{img: img, quality: c.Quality}, nil
}

type stdFrame struct {
	img     image.Image
	quality int
}

func (f *stdFrame) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// Crop вырезает бокс и кодирует в JPEG.
func (f *stdFrame) Crop(box entity.BoundingBox) ([]byte, error) {
	rect, err := clampRect(box, f.img.Bounds())
	if err != nil {
		return nil, err
	}

	var region image.Image
	if s, ok := f.img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		region = s.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(rgba, rgba.Bounds(), f.img, rect.Min, draw.Src)
		region = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, region, &jpeg.Options{Quality: f.quality}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *stdFrame) Close() {}

var _ port.Cropper = (*Cropper)(nil)
