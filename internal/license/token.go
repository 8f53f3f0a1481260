package license

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// Claims is the payload decoded from a verified license token. Immutable
// once verified; only the Verifier produces it.
type Claims struct {
	Subject    string `json:"sub"`
	Plan       string `json:"plan"`
	ExpiresAt  string `json:"exp,omitempty"`
	IssuedAt   string `json:"issued_at,omitempty"`
	MaxVersion string `json:"max_version,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	File       string `json:"file,omitempty"`
}

// Verifier validates opaque license tokens against the vendor public key.
// A token is base64url(claims JSON) "." base64url(Ed25519 signature over
// the claims bytes). Verify is a pure function: no network, no disk, no
// global state.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifier parses a PEM-encoded Ed25519 public key.
func NewVerifier(pemBytes []byte) (*Verifier, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key data")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, expected Ed25519", parsed)
	}

	return &Verifier{publicKey: key}, nil
}

// NewVerifierFromFile loads the public key from a PEM file.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return NewVerifier(data)
}

// Verify checks the token signature and decodes its claims. Returns
// ErrMalformedToken when the token cannot be parsed at all and
// ErrInvalidSignature when the signature check fails.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	payloadB64, sigB64, found := strings.Cut(token, ".")
	if !found {
		return nil, fmt.Errorf("%w: missing signature separator", ErrMalformedToken)
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64url", ErrMalformedToken)
	}

	signature, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64url", ErrMalformedToken)
	}

	if len(signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature has wrong length", ErrMalformedToken)
	}

	if !ed25519.Verify(v.publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims are not valid JSON", ErrMalformedToken)
	}

	return &claims, nil
}
