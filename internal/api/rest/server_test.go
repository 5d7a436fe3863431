package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	app "inspection-brain/internal/application"
	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/infrastructure/storage"
	"inspection-brain/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScanner struct {
	mu       sync.Mutex
	err      error
	busy     bool
	requests []entity.ScanRequest
}

func (f *fakeScanner) Submit(_ context.Context, req entity.ScanRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeScanner) Busy() bool { return f.busy }

type fixedTrigger entity.TriggerSnapshot

func (t fixedTrigger) Snapshot() entity.TriggerSnapshot { return entity.TriggerSnapshot(t) }

func newTestServer(scanner *fakeScanner) *Server {
	return NewServer(":0", Deps{
		Scanner: scanner,
		Trigger: fixedTrigger{State: entity.StateActive, LastTriggeredWeight: 120, LastStableWeight: 121},
		Status:  storage.NewMemoryStatusRepository(),
		Logger:  logging.Discard(),
	})
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, out := do(t, newTestServer(&fakeScanner{}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", out["status"])
}

func TestTriggerScan_Accepted(t *testing.T) {
	scanner := &fakeScanner{}
	rec, out := do(t, newTestServer(scanner), http.MethodPost, "/trigger-scan", `{"weight_grams": 150.5}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "accepted", out["status"])
	require.Len(t, scanner.requests, 1)
	require.Equal(t, 150.5, scanner.requests[0].WeightGrams)
	require.Equal(t, entity.SourceManual, scanner.requests[0].Source)
}

func TestTriggerScan_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "cooldown", err: app.ErrCooldown, reason: "cooldown"},
		{name: "in flight", err: app.ErrScanInFlight, reason: "scan_in_flight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, newTestServer(&fakeScanner{err: tt.err}), http.MethodPost, "/trigger-scan", `{"weight_grams": 80}`)
			require.Equal(t, http.StatusConflict, rec.Code)
			require.Equal(t, "rejected", out["status"])
			require.Equal(t, tt.reason, out["reason"])
		})
	}
}

func TestTriggerScan_MalformedNeverReachesScanner(t *testing.T) {
	bodies := map[string]string{
		"not json":   `weight=10`,
		"missing":    `{}`,
		"zero":       `{"weight_grams": 0}`,
		"negative":   `{"weight_grams": -5}`,
		"wrong type": `{"weight_grams": "heavy"}`,
		"empty body": ``,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			scanner := &fakeScanner{}
			rec, out := do(t, newTestServer(scanner), http.MethodPost, "/trigger-scan", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "invalid", out["status"])
			require.Empty(t, scanner.requests)
		})
	}
}

func TestStatus(t *testing.T) {
	scanner := &fakeScanner{busy: true}
	s := newTestServer(scanner)
	require.NoError(t, s.deps.Status.RecordRejected(context.Background(), "cooldown"))

	rec, out := do(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["busy"])

	trigger := out["trigger"].(map[string]any)
	require.Equal(t, "ACTIVE", trigger["state"])
	require.Equal(t, 121.0, trigger["last_stable_weight"])

	scans := out["scans"].(map[string]any)
	require.Equal(t, 1.0, scans["rejected"])
	require.Equal(t, "cooldown", scans["last_reject_reason"])
}

func TestNoRoute(t *testing.T) {
	rec, out := do(t, newTestServer(&fakeScanner{}), http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, out["available_endpoints"])
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/trigger-scan", nil)
	rec := httptest.NewRecorder()
	newTestServer(&fakeScanner{}).Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
