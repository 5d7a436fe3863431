package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// WeightClient опрашивает сервис весов
type WeightClient struct {
	baseClient
	now func() time.Time
}

func NewWeightClient(baseURL string, timeout time.Duration, logger *slog.Logger) *WeightClient {
	return &WeightClient{
		baseClient: newBaseClient("weight", baseURL, timeout, logger),
		now:        time.Now,
	}
}

type weightResponse struct {
	Grams     *float64 `json:"grams"`
	Timestamp string   `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ReadWeight возвращает текущее показание. Без метки времени берётся локальное время.
func (c *WeightClient) ReadWeight(ctx context.Context) (entity.WeightSample, error) {
	var raw weightResponse
	if err := c.getJSON(ctx, "read", "/weight", &raw); err != nil {
		return entity.WeightSample{}, err
	}
	if raw.Grams == nil {
		return entity.WeightSample{}, c.fail("read", 0, errors.New("grams missing"))
	}

	at := c.now()
	if raw.Timestamp != "" {
		ts, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			return entity.WeightSample{}, c.fail("read", 0, err)
		}
		at = ts
	}

	sample := entity.NewWeightSample(*raw.Grams, at)
	c.logger.Debug("weight reading", "grams", sample.Grams)
	return sample, nil
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
}

var _ port.WeightReader = (*WeightClient)(nil)
