package middleware

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tktcli/internal/config"
	"tktcli/internal/license"
)

func unactivatedManager(t *testing.T) *license.Manager {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	verifier, err := license.NewVerifier(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	require.NoError(t, err)

	cfg := config.LicenseConfig{
		ServerURL:        "http://127.0.0.1:1",
		AppVersion:       "1.0.0",
		OfflineGraceDays: 1,
		CheckTimeout:     time.Second,
	}
	store := license.NewStore(filepath.Join(t.TempDir(), "license.json"), nil)
	return license.NewManager(cfg, verifier, store, nil)
}

func TestLicenseGate(t *testing.T) {
	gate := NewLicenseGate(unactivatedManager(t), nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := gate.Handler(next)

	t.Run("blocks tool routes without a license", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tools/count", nil))
		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	})

	t.Run("license routes stay reachable", func(t *testing.T) {
		for _, path := range []string{"/api/license/status", "/api/license/activate"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("health, metrics, websocket stay reachable", func(t *testing.T) {
		for _, path := range []string{"/api/health", "/metrics", "/ws", "/"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})
}

func TestTraceID(t *testing.T) {
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates a trace id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	})

	t.Run("incoming trace id wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", "trace-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
	})
}
