package config

import "time"

// Application constants for the TKT Multiform suite.
const (
	// Application Info
	AppName   = "TKT Multiform"
	AppVendor = "TKT Technology Solutions"

	// License System Constants
	DefaultLicenseServerURL = "https://tkt-fastapi.onrender.com"
	DefaultAppVersion       = "1.0.0"
	LicenseFileName         = "license.json"
	UserDirName             = ".tktapp"
	PublicKeyFileName       = "license_public_key.pem"

	// Short key format: 3-char prefix group plus 3-4 groups of 4
	// base32 characters (A-Z, 2-7), hyphen separated. TKT-XXXX-XXXX-XXXX.
	ShortKeyPattern = `^[A-Z0-9]{3}(?:-[A-Z2-7]{4}){3,4}$`

	// Offline grace window: elapsed time since the last successful online
	// check during which cached licenses remain usable without network.
	DefaultOfflineGraceDays = 1

	// Network Timeouts
	DefaultHTTPTimeout    = 30 * time.Second
	LicenseCheckTimeout   = 12 * time.Second
	WebSocketPingPeriod   = 30 * time.Second
	WebSocketPongWait     = 60 * time.Second

	// Rate Limiting
	DefaultRateLimit      = 100 // requests per minute
	DefaultBurstSize      = 50
	ActivationRateLimit   = 10 // activation attempts per minute

	// Report output
	DefaultReportsDir = "reports"
)
