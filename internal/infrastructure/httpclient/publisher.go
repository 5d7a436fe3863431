package httpclient

import (
	"context"
	"log/slog"
	"time"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// ResultClient отправляет итог скана POST-запросом с JSON телом.
type ResultClient struct {
	baseClient
	path string
}

// NewUIClient клиент сервиса UI
func NewUIClient(baseURL string, timeout time.Duration, logger *slog.Logger) *ResultClient {
	return &ResultClient{baseClient: newBaseClient("ui", baseURL, timeout, logger), path: "/update"}
}

// NewMainServerClient клиент основного сервера
func NewMainServerClient(baseURL string, timeout time.Duration, logger *slog.Logger) *ResultClient {
	return &ResultClient{baseClient: newBaseClient("main-server", baseURL, timeout, logger), path: "/ingest"}
}

func (c *ResultClient) Name() string {
	return c.service
}

// Publish отправляет результат один раз, без повторов.
func (c *ResultClient) Publish(ctx context.Context, result *entity.ScanResult) error {
	if err := c.postJSON(ctx, "publish", c.path, result, nil); err != nil {
		return err
	}
	c.logger.Info("scan result sent", "scan_id", result.ScanID)
	return nil
}

var _ port.ResultPublisher = (*ResultClient)(nil)
