package entity

import "time"

// CapturedImage кадр с камеры
type CapturedImage struct {
	ImageID     string
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}
