package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// CameraClient делает снимки через сервис камеры
type CameraClient struct {
	baseClient
}

func NewCameraClient(baseURL string, timeout time.Duration, logger *slog.Logger) *CameraClient {
	return &CameraClient{baseClient: newBaseClient("camera", baseURL, timeout, logger)}
}

type captureRequest struct {
	Resolution string `json:"resolution,omitempty"`
}

type captureResponse struct {
	ImageID   string `json:"image_id"`
	ImageURL  string `json:"image_url_or_path"`
	ImagePath string `json:"image_path"`
}

func (r captureResponse) resolvedPath() (string, error) {
	if r.ImagePath != "" {
		return r.ImagePath, nil
	}
	if r.ImageURL != "" {
		return r.ImageURL, nil
	}
	return "", errors.New("camera did not provide image location")
}

// Capture запрашивает кадр. Камера может вернуть картинку сразу
// или JSON с адресом, по которому её нужно скачать.
func (c *CameraClient) Capture(ctx context.Context, resolution string) (*entity.CapturedImage, error) {
	resp, err := c.postJSONRaw(ctx, "capture", "/capture", captureRequest{Resolution: resolution})
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if strings.HasPrefix(mediaType, "image/") {
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, c.fail("capture", resp.StatusCode, fmt.Errorf("read image: %w", err))
		}
		return c.image(uuid.NewString(), data, mediaType)
	}

	var meta captureResponse
	if err := c.decode("capture", resp, &meta); err != nil {
		return nil, err
	}
	path, err := meta.resolvedPath()
	if err != nil {
		return nil, c.fail("capture", 0, err)
	}

	data, ct, err := c.getBinary(ctx, "fetch", path)
	if err != nil {
		return nil, err
	}
	imageID := meta.ImageID
	if imageID == "" {
		imageID = uuid.NewString()
	}
	c.logger.Info("image fetched", "image_id", imageID, "path", path, "size", len(data))
	return c.image(imageID, data, ct)
}

func (c *CameraClient) image(imageID string, data []byte, contentType string) (*entity.CapturedImage, error) {
	if len(data) == 0 {
		return nil, c.fail("capture", 0, errors.New("empty image"))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &entity.CapturedImage{
		ImageID:     imageID,
		Data:        data,
		ContentType: contentType,
		CapturedAt:  time.Now().UTC(),
	}, nil
}

var _ port.Camera = (*CameraClient)(nil)
