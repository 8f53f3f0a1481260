package license

import (
	"errors"
	"fmt"
)

// Sentinel errors for license operations. Handlers match on these to pick
// response codes; messages surface to the user verbatim.
var (
	// Token verification
	ErrMalformedToken   = errors.New("license token is malformed")
	ErrInvalidSignature = errors.New("license token signature is invalid")

	// Remote activation
	ErrKeyNotFound          = errors.New("license key not found")
	ErrLicenseNotActive     = errors.New("license is not active")
	ErrLicenseExpired       = errors.New("license has expired")
	ErrVersionNotAllowed    = errors.New("application version exceeds the license version ceiling")
	ErrMissingLicenseField  = errors.New("server response did not include a license string")
	ErrServerLicenseInvalid = errors.New("license returned by server failed verification")

	// Offline evaluation
	ErrCachedLicenseInvalid = errors.New("cached license failed verification")
	ErrCachedLicenseExpired = errors.New("cached license has expired")
	ErrVersionExceeded      = errors.New("application version exceeds the cached license ceiling")
	ErrMachineMismatch      = errors.New("license is bound to a different machine")
	ErrOfflineGraceExpired  = errors.New("too long since the last online check; reconnect to re-validate the license")

	// Orchestration
	ErrMissingShortKey      = errors.New("no short key present; activate with a short key")
	ErrInvalidKeyFormat     = errors.New("invalid short key format, expected TKT-XXXX-XXXX-XXXX")
	ErrCacheCorrupt         = errors.New("license cache file is corrupt")
	ErrActivationInProgress = errors.New("an activation is already in progress")
	ErrTooManyAttempts      = errors.New("too many activation attempts, try again later")
	ErrNotActivated         = errors.New("no license activated")
)

// NetworkError indicates the license server could not be reached at all.
// Distinct from APIError: a NetworkError during re-validation triggers
// offline fallback.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not reach license server during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError carries an unexpected HTTP status from the license server
// together with the raw response body.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("license API error during %s (%d): %s", e.Op, e.StatusCode, e.Body)
}

// IsServerError reports whether the status is a 5xx. Only server-side
// failures allow offline fallback.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// RegistrationDeniedError indicates the device registration step was
// refused, typically because the device limit is exceeded.
type RegistrationDeniedError struct {
	Reason string
}

func (e *RegistrationDeniedError) Error() string {
	return fmt.Sprintf("device registration denied: %s", e.Reason)
}

// LicenseInvalidError indicates the server rejected the key during
// lookup, carrying the server-supplied reason.
type LicenseInvalidError struct {
	Reason string
}

func (e *LicenseInvalidError) Error() string {
	return fmt.Sprintf("license key rejected: %s", e.Reason)
}

// allowsOfflineFallback reports whether err is in the failure class that
// permits re-validating the cached record offline. Network unreachability
// and 5xx responses qualify; everything else (4xx, verification errors)
// is terminal.
func allowsOfflineFallback(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}
	return false
}
