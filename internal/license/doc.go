// Package license implements activation and verification for TKT
// Multiform.
//
// A license is purchased as a short key (TKT-XXXX-XXXX-XXXX). Activation
// registers the current device with the license server and fetches an
// opaque signed license token, which is verified locally against the
// vendor public key. The resulting record is cached at
// ~/.tktapp/license.json and re-validated online on every startup.
//
// When the server is unreachable or failing (network error or 5xx), the
// cached record is re-validated offline: signature, expiry, version
// ceiling, machine binding, and a bounded grace window since the last
// successful online check. A 4xx from the server is terminal and never
// falls back to the cache, so a revoked key cannot keep working from
// stale state.
package license
