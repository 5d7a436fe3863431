//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// Cropper режет кадры через OpenCV.
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

// Load декодирует кадр в gocv.Mat.
func (c *Cropper) Load(imageData []byte) (port.Frame, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	return &matFrame{mat: mat, quality: c.Quality}, nil
}

type matFrame struct {
	mat     gocv.Mat
	quality int
}

func (f *matFrame) Size() (int, int) {
	return f.mat.Cols(), f.mat.Rows()
}

// Crop вырезает ROI и кодирует в JPEG.
func (f *matFrame) Crop(box entity.BoundingBox) ([]byte, error) {
	rect, err := clampRect(box, image.Rect(0, 0, f.mat.Cols(), f.mat.Rows()))
	if err != nil {
		return nil, err
	}

	region := f.mat.Region(rect)
	defer region.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, region, []int{int(gocv.IMWriteJpegQuality), f.quality})
	if err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *matFrame) Close() {
	f.mat.Close()
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}

var _ port.Cropper = (*Cropper)(nil)
