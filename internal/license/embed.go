package license

import (
	_ "embed"
)

// defaultPublicKeyPEM is the vendor signing key shipped with the
// application. A configured public_key_file overrides it.
//
//go:embed keys/license_public_key.pem
var defaultPublicKeyPEM []byte

// DefaultVerifier returns a verifier for the embedded vendor key.
func DefaultVerifier() (*Verifier, error) {
	return NewVerifier(defaultPublicKeyPEM)
}
