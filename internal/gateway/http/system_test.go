package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gatewayhttp "github.com/innerpeace-app/gateway/internal/gateway/http"
)

func TestLivezAlwaysOK(t *testing.T) {
	handler := gatewayhttp.LivezHandler(time.Now().Add(-time.Minute), "v1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Contains(t, rec.Body.String(), `"version":"v1.2.3"`)
}

func TestReadyzReportsSignerState(t *testing.T) {
	t.Run("ready with signer", func(t *testing.T) {
		handler := gatewayhttp.ReadyzHandler(time.Now(), "v1.2.3", newTestMinter(t))

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"signer":"ok"`)
	})

	t.Run("degraded without signer", func(t *testing.T) {
		handler := gatewayhttp.ReadyzHandler(time.Now(), "v1.2.3", nil)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})
}
