package license

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tktcli/internal/security"
)

// OfflineEvaluator re-validates a cached license record locally. Invoked
// only when the online lookup is unreachable or fails server-side; a 4xx
// rejection never reaches this path.
type OfflineEvaluator struct {
	verifier   *Verifier
	collector  *security.Collector
	appVersion string
	grace      time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewOfflineEvaluator creates an evaluator with the given grace window.
func NewOfflineEvaluator(verifier *Verifier, collector *security.Collector, appVersion string, grace time.Duration, logger *slog.Logger) *OfflineEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfflineEvaluator{
		verifier:   verifier,
		collector:  collector,
		appVersion: appVersion,
		grace:      grace,
		logger:     logger.With(slog.String("component", "license.offline")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate re-validates the cached record. The checks short-circuit at
// the first failure: signature, expiry, version ceiling, machine binding,
// then the grace window since the last online check. The returned record
// keeps the cached checked_at_utc; offline success does not extend the
// grace window.
func (e *OfflineEvaluator) Evaluate(ctx context.Context, cached *Record) (*Record, error) {
	if cached == nil || cached.LicenseKey == "" {
		return nil, fmt.Errorf("%w: cache has no license string", ErrCachedLicenseInvalid)
	}

	claims, err := e.verifier.Verify(cached.LicenseKey)
	if err != nil {
		e.logger.WarnContext(ctx, "cached license failed verification",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrCachedLicenseInvalid, err)
	}

	now := e.now()

	expiry := firstNonEmpty(claims.ExpiresAt, stringOrEmpty(cached.ServerExpiresAt), cached.ValidUntil)
	if expiryTime, ok := parseTimestamp(expiry); ok && now.After(expiryTime) {
		return nil, ErrCachedLicenseExpired
	}

	ceiling := firstNonEmpty(claims.MaxVersion, stringOrEmpty(cached.ServerMaxVersion), cached.MaxVersion)
	if !VersionAllowed(e.appVersion, ceiling) {
		return nil, fmt.Errorf("%w: app version %s, ceiling %s", ErrVersionExceeded, e.appVersion, ceiling)
	}

	info := e.collector.Collect(e.appVersion)
	if cached.HWID != "" && cached.HWID != info.HWID {
		return nil, ErrMachineMismatch
	}

	if cached.CheckedAtUTC != "" {
		if checkedAt, ok := parseTimestamp(cached.CheckedAtUTC); ok {
			if now.Sub(checkedAt) > e.grace {
				return nil, ErrOfflineGraceExpired
			}
		}
	}

	rec := newRecordFromClaims(claims, cached.LicenseKey)
	rec.Server = cached.Server
	rec.ShortKey = cached.ShortKey
	rec.ServerPlan = cached.ServerPlan
	rec.ServerMaxDevices = cached.ServerMaxDevices
	rec.ServerUsedDevices = cached.ServerUsedDevices
	rec.ServerMaxVersion = cached.ServerMaxVersion
	rec.ServerExpiresAt = cached.ServerExpiresAt
	rec.Kid = cached.Kid
	rec.HWID = firstNonEmpty(info.HWID, cached.HWID)
	rec.Hostname = firstNonEmpty(info.Hostname, cached.Hostname)
	rec.Platform = firstNonEmpty(info.Platform, cached.Platform)
	rec.AppVer = firstNonEmpty(info.AppVer, cached.AppVer)
	rec.CheckedAtUTC = cached.CheckedAtUTC
	rec.OfflineMode = true

	e.logger.InfoContext(ctx, "license validated offline",
		slog.String("short_key", maskShortKey(cached.ShortKey)),
		slog.String("checked_at_utc", rec.CheckedAtUTC),
	)

	return rec, nil
}
