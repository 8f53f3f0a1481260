package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tktcli/internal/config"
	"tktcli/internal/security"
)

// newTestKeypair generates an Ed25519 keypair and a Verifier for its
// public half.
func newTestKeypair(t *testing.T) (ed25519.PrivateKey, *Verifier) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	verifier, err := NewVerifier(pemBytes)
	require.NoError(t, err)

	return priv, verifier
}

// signToken produces a license token for the given claims.
func signToken(t *testing.T, priv ed25519.PrivateKey, claims Claims) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	signature := ed25519.Sign(priv, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(signature)
}

// currentHWID returns the HWID the real collector derives for this
// machine, so cached records in tests match the machine binding check.
func currentHWID(appVersion string) string {
	return security.NewCollector(nil).Collect(appVersion).HWID
}

const testShortKey = "TKT-AAAA-BBBB-CCCC"

// validClaims returns claims for an unexpired license.
func validClaims() Claims {
	return Claims{
		Subject:    "ACME Trading Ltd",
		Plan:       "pro",
		ExpiresAt:  time.Now().UTC().Add(365 * 24 * time.Hour).Format(time.RFC3339),
		IssuedAt:   "2025-01-01T00:00:00Z",
		MaxVersion: "9.9.9",
		Nonce:      "a1b2c3",
	}
}

// cachedRecord builds a persisted record as a successful online
// activation would have written it.
func cachedRecord(t *testing.T, priv ed25519.PrivateKey, claims Claims, checkedAt time.Time) *Record {
	t.Helper()

	rec := newRecordFromClaims(&claims, signToken(t, priv, claims))
	rec.Server = "http://license.test"
	rec.ShortKey = testShortKey
	rec.HWID = currentHWID("1.0.0")
	rec.Hostname = "test-host"
	rec.Platform = "test-platform"
	rec.AppVer = "1.0.0"
	rec.CheckedAtUTC = toISOZ(checkedAt)
	return rec
}

// lookupJSON builds a lookup response body embedding a freshly signed
// license for the given claims.
func lookupJSON(t *testing.T, priv ed25519.PrivateKey, claims Claims) map[string]any {
	t.Helper()
	return map[string]any{
		"status":       "active",
		"expired":      false,
		"license":      signToken(t, priv, claims),
		"plan":         "pro",
		"max_devices":  3,
		"used_devices": 1,
		"max_version":  claims.MaxVersion,
		"expires_at":   claims.ExpiresAt,
		"kid":          "k1",
	}
}

// activationServer is an httptest license server whose lookup behavior
// is scriptable per test.
type activationServer struct {
	*httptest.Server
	registerCalls int
	lookupCalls   int
}

func newActivationServer(t *testing.T, lookup http.HandlerFunc) *activationServer {
	t.Helper()

	srv := &activationServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/devices/register", func(w http.ResponseWriter, r *http.Request) {
		srv.registerCalls++
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/licenses/", func(w http.ResponseWriter, r *http.Request) {
		srv.lookupCalls++
		lookup(w, r)
	})
	srv.Server = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

// testLicenseConfig builds a LicenseConfig pointed at the given server.
func testLicenseConfig(serverURL string) config.LicenseConfig {
	return config.LicenseConfig{
		ServerURL:        serverURL,
		AppVersion:       "1.0.0",
		OfflineGraceDays: 1,
		CheckTimeout:     5 * time.Second,
	}
}

// newTestManager wires a manager against a temp cache file.
func newTestManager(t *testing.T, cfg config.LicenseConfig, verifier *Verifier) (*Manager, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "license.json"), nil)
	return NewManager(cfg, verifier, store, nil), store
}
