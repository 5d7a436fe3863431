package httpclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/logging"
)

func sampleResult() *entity.ScanResult {
	return &entity.ScanResult{
		ScanID:      "scan-1",
		ImageID:     "img-1",
		Timestamp:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		WeightGrams: 180,
		Source:      entity.SourceWeight,
		Boxes: []entity.BoxResult{
			{
				Box:    entity.BoundingBox{ID: "f1", Width: 10, Height: 10, Label: "apple", Confidence: 0.9},
				Defect: entity.DefectResult{Findings: []entity.DefectFinding{{Type: "bruise", Confidence: 0.7}}},
			},
			{
				Box:    entity.BoundingBox{ID: "f2", Width: 10, Height: 10, Label: "apple", Confidence: 0.8},
				Defect: entity.DefectResult{Findings: []entity.DefectFinding{}, Error: "timeout"},
			},
		},
	}
}

func TestResultClient_Publish(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func(string, time.Duration, *slog.Logger) *ResultClient
		path   string
		target string
	}{
		{name: "ui", newFn: NewUIClient, path: "/update", target: "ui"},
		{name: "main server", newFn: NewMainServerClient, path: "/ingest", target: "main-server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := make(chan map[string]any, 1)
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, tt.path, r.URL.Path)
				require.Equal(t, "application/json", r.Header.Get("Content-Type"))
				var got map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				bodies <- got
				w.WriteHeader(http.StatusNoContent)
			})

			c := tt.newFn(srv.URL, time.Second, logging.Discard())
			require.Equal(t, tt.target, c.Name())
			require.NoError(t, c.Publish(context.Background(), sampleResult()))

			got := <-bodies
			require.Equal(t, "scan-1", got["scan_id"])
			boxes, ok := got["boxes"].([]any)
			require.True(t, ok)
			require.Len(t, boxes, 2)
		})
	}
}

func TestResultClient_PublishFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := NewUIClient(srv.URL, time.Second, logging.Discard()).Publish(context.Background(), sampleResult())

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "ui", se.Service)
	require.EqualValues(t, 1, calls.Load())
}
