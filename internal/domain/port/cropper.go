package port

import "inspection-brain/internal/domain/entity"

// Cropper декодирует кадр для последующей нарезки
type Cropper interface {
	Load(image []byte) (Frame, error)
}

// Frame декодированный кадр
type Frame interface {
	Size() (width, height int)
	// Crop возвращает JPEG вырезку; бокс обрезается по границам кадра
	Crop(box entity.BoundingBox) ([]byte, error)
	Close()
}
