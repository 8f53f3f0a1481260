package license

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is the normalized, persisted license unit: verified claims,
// server-issued metadata, machine binding, and bookkeeping for the
// offline grace window. It is only ever written after the embedded
// license string has passed signature verification, and it is always
// overwritten whole, never merged.
type Record struct {
	// Claim-derived fields
	Customer   string `json:"customer"`
	Plan       string `json:"plan"`
	ValidUntil string `json:"valid_until"`
	IssuedAt   string `json:"issued_at"`
	MaxVersion string `json:"max_version"`
	LicenseKey string `json:"license_key"`
	Nonce      string `json:"nonce,omitempty"`
	File       string `json:"file,omitempty"`

	// Server-issued metadata, advisory relative to the verified claims.
	// Optional response fields stay nil when the server omits them.
	Server            string  `json:"server"`
	ShortKey          string  `json:"short_key"`
	ServerPlan        *string `json:"server_plan,omitempty"`
	ServerMaxDevices  *int    `json:"server_max_devices,omitempty"`
	ServerUsedDevices *int    `json:"server_used_devices,omitempty"`
	ServerMaxVersion  *string `json:"server_max_version,omitempty"`
	ServerExpiresAt   *string `json:"server_expires_at,omitempty"`
	Kid               *string `json:"kid,omitempty"`

	// Machine binding
	HWID     string `json:"hwid"`
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	AppVer   string `json:"app_ver"`

	// Bookkeeping
	CheckedAtUTC string `json:"checked_at_utc"`
	OfflineMode  bool   `json:"offline_mode"`
}

// newRecordFromClaims fills the claim-derived fields of a Record.
func newRecordFromClaims(claims *Claims, licenseString string) *Record {
	rec := &Record{
		Customer:   claims.Subject,
		Plan:       claims.Plan,
		ValidUntil: claims.ExpiresAt,
		IssuedAt:   claims.IssuedAt,
		MaxVersion: claims.MaxVersion,
		LicenseKey: licenseString,
		Nonce:      claims.Nonce,
		File:       claims.File,
	}
	if rec.Customer == "" {
		rec.Customer = "Unknown"
	}
	return rec
}

// shortKeyRe accepts a 3-character prefix group followed by 3-4 groups of
// 4 base32 characters, hyphen separated: TKT-XXXX-XXXX-XXXX.
var shortKeyRe = regexp.MustCompile(`^[A-Z0-9]{3}(?:-[A-Z2-7]{4}){3,4}$`)

// NormalizeShortKey trims and uppercases a user-entered short key.
func NormalizeShortKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsShortKey reports whether s has the short key lexical shape after
// normalization. Format rejection happens before any network call.
func IsShortKey(s string) bool {
	return shortKeyRe.MatchString(NormalizeShortKey(s))
}

var versionDigitsRe = regexp.MustCompile(`[0-9]+`)

// versionTuple extracts up to three numeric components from a version
// string, padding missing components with zero. "1.2" becomes {1, 2, 0}.
func versionTuple(s string) [3]int {
	var tuple [3]int
	for i, match := range versionDigitsRe.FindAllString(s, 3) {
		n, err := strconv.Atoi(match)
		if err != nil {
			// Component too large to parse counts as zero.
			n = 0
		}
		tuple[i] = n
	}
	return tuple
}

// VersionAllowed reports whether appVersion is within the maxVersion
// ceiling. An empty ceiling imposes no limit.
func VersionAllowed(appVersion, maxVersion string) bool {
	if strings.TrimSpace(maxVersion) == "" {
		return true
	}
	app, max := versionTuple(appVersion), versionTuple(maxVersion)
	for i := 0; i < 3; i++ {
		if app[i] != max[i] {
			return app[i] < max[i]
		}
	}
	return true
}

// utcNowFloorMinute returns the current UTC time truncated to the minute.
func utcNowFloorMinute() time.Time {
	return time.Now().UTC().Truncate(time.Minute)
}

// toISOZ formats a time as ISO-8601 UTC with a literal Z suffix.
func toISOZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// timestampLayouts are the accepted shapes for server- and claim-supplied
// timestamps, most specific first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a timestamp in any accepted layout. Naive
// timestamps are taken as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// firstNonEmpty returns the first non-empty string of its arguments.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// stringOrEmpty dereferences an optional string field.
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
