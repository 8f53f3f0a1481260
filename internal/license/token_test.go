package license

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	t.Run("rejects non-PEM data", func(t *testing.T) {
		_, err := NewVerifier([]byte("not a pem file"))
		assert.Error(t, err)
	})

	t.Run("rejects non-Ed25519 key", func(t *testing.T) {
		// RSA public key in PKIX PEM.
		rsaPEM := `-----BEGIN PUBLIC KEY-----
MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAKj34GkxFhD90vcNLYLInFEX6Ppy1tPf
9Cnzj4p4WGeKLs1Pt8QuKUpRKfFLfRYC9AIKjbJTWit+CqvjWYzvQwECAwEAAQ==
-----END PUBLIC KEY-----`
		_, err := NewVerifier([]byte(rsaPEM))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expected Ed25519")
	})
}

func TestNewVerifierFromFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewVerifierFromFile(filepath.Join(t.TempDir(), "nope.pem"))
		assert.Error(t, err)
	})

	t.Run("loads valid key file", func(t *testing.T) {
		priv, _ := newTestKeypair(t)

		// Re-encode the matching public key to a file.
		pub := priv.Public().(ed25519.PublicKey)
		path := filepath.Join(t.TempDir(), "key.pem")
		require.NoError(t, os.WriteFile(path, pemEncodePublicKey(t, pub), 0o600))

		v, err := NewVerifierFromFile(path)
		require.NoError(t, err)

		claims := validClaims()
		got, err := v.Verify(signToken(t, priv, claims))
		require.NoError(t, err)
		assert.Equal(t, claims.Subject, got.Subject)
	})
}

func TestVerifierVerify(t *testing.T) {
	priv, verifier := newTestKeypair(t)

	t.Run("valid token round-trips claims", func(t *testing.T) {
		claims := validClaims()
		got, err := verifier.Verify(signToken(t, priv, claims))
		require.NoError(t, err)
		assert.Equal(t, claims.Subject, got.Subject)
		assert.Equal(t, claims.Plan, got.Plan)
		assert.Equal(t, claims.ExpiresAt, got.ExpiresAt)
		assert.Equal(t, claims.MaxVersion, got.MaxVersion)
		assert.Equal(t, claims.Nonce, got.Nonce)
	})

	t.Run("malformed tokens", func(t *testing.T) {
		tests := []struct {
			name  string
			token string
		}{
			{"empty", ""},
			{"whitespace only", "   "},
			{"no separator", "eyJzdWIiOiJ4In0"},
			{"payload not base64url", "!!!.c2ln"},
			{"signature not base64url", "eyJzdWIiOiJ4In0.!!!"},
			{"signature wrong length", "eyJzdWIiOiJ4In0.c2hvcnQ"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := verifier.Verify(tt.token)
				assert.ErrorIs(t, err, ErrMalformedToken)
			})
		}
	})

	t.Run("signature from another key is rejected", func(t *testing.T) {
		otherPriv, _ := newTestKeypair(t)
		_, err := verifier.Verify(signToken(t, otherPriv, validClaims()))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		token := signToken(t, priv, validClaims())
		forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"Mallory"}`))
		_, sig, _ := splitToken(token)
		_, err := verifier.Verify(forged + "." + sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("signed non-JSON payload is malformed", func(t *testing.T) {
		payload := []byte("not json at all")
		sig := ed25519.Sign(priv, payload)
		token := base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig)
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("surrounding whitespace is tolerated", func(t *testing.T) {
		token := "  " + signToken(t, priv, validClaims()) + "\n"
		_, err := verifier.Verify(token)
		assert.NoError(t, err)
	})
}

func TestDefaultVerifier(t *testing.T) {
	v, err := DefaultVerifier()
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func splitToken(token string) (payload, sig string, ok bool) {
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

func pemEncodePublicKey(t *testing.T, pub ed25519.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}
