package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	c := NewChecker("keiba", "1.0.0", nil)

	rec := httptest.NewRecorder()
	c.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		dbErr      error
		wantStatus int
		wantDB     string
	}{
		{name: "ready and healthy", ready: true, wantStatus: http.StatusOK, wantDB: "ok"},
		{name: "not marked ready", ready: false, wantStatus: http.StatusServiceUnavailable, wantDB: "ok"},
		{name: "database down", ready: true, dbErr: errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable, wantDB: "error: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("keiba", "", nil)
			c.SetReady(tt.ready)
			c.Register("database", PingerFunc(func(ctx context.Context) error { return tt.dbErr }))

			rec := httptest.NewRecorder()
			c.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ReadyResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantDB, resp.Checks["database"])
		})
	}
}
