package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tktcli/internal/config"
	"tktcli/internal/security"
)

// registerRequest is the device registration payload.
type registerRequest struct {
	Key      string `json:"key"`
	HWID     string `json:"hwid"`
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	AppVer   string `json:"app_ver"`
}

// LookupResponse is the license lookup payload. Fields the server may
// omit are pointers so "absent" and "zero" stay distinguishable.
type LookupResponse struct {
	Status      string  `json:"status"`
	Expired     bool    `json:"expired"`
	AppAllowed  *bool   `json:"app_allowed,omitempty"`
	License     string  `json:"license"`
	Plan        *string `json:"plan,omitempty"`
	MaxDevices  *int    `json:"max_devices,omitempty"`
	UsedDevices *int    `json:"used_devices,omitempty"`
	MaxVersion  *string `json:"max_version,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
	Kid         *string `json:"kid,omitempty"`
}

// detailResponse is the error body shape the server uses for 403s.
type detailResponse struct {
	Detail string `json:"detail"`
}

// Client performs the two-step activation handshake against the license
// server: device registration, then license retrieval and verification.
type Client struct {
	baseURL    string
	appVersion string
	httpClient *http.Client
	verifier   *Verifier
	collector  *security.Collector
	logger     *slog.Logger
}

// NewClient creates an activation client.
func NewClient(cfg config.LicenseConfig, verifier *Verifier, collector *security.Collector, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.CheckTimeout
	if timeout <= 0 {
		timeout = config.LicenseCheckTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		appVersion: cfg.AppVersion,
		httpClient: &http.Client{Timeout: timeout},
		verifier:   verifier,
		collector:  collector,
		logger:     logger.With(slog.String("component", "license.client")),
	}
}

// Activate runs the full handshake for a short key: register this device,
// fetch the license, verify it, and assemble the normalized record.
func (c *Client) Activate(ctx context.Context, shortKey string) (*Record, error) {
	info := c.collector.Collect(c.appVersion)

	if err := c.registerDevice(ctx, shortKey, info); err != nil {
		return nil, err
	}

	return c.CheckKey(ctx, shortKey)
}

// CheckKey fetches and verifies the license for a short key without
// re-registering the device. Used for startup re-validation.
func (c *Client) CheckKey(ctx context.Context, shortKey string) (*Record, error) {
	resp, err := c.lookup(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	if resp.Status != "active" {
		return nil, ErrLicenseNotActive
	}
	if resp.Expired {
		return nil, ErrLicenseExpired
	}
	if resp.AppAllowed != nil && !*resp.AppAllowed {
		return nil, fmt.Errorf("%w: app version %s, ceiling %s",
			ErrVersionNotAllowed, c.appVersion, stringOrEmpty(resp.MaxVersion))
	}
	if strings.TrimSpace(resp.License) == "" {
		return nil, ErrMissingLicenseField
	}

	claims, err := c.verifier.Verify(resp.License)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerLicenseInvalid, err)
	}

	info := c.collector.Collect(c.appVersion)

	rec := newRecordFromClaims(claims, resp.License)
	rec.Server = c.baseURL
	rec.ShortKey = shortKey
	rec.ServerPlan = resp.Plan
	rec.ServerMaxDevices = resp.MaxDevices
	rec.ServerUsedDevices = resp.UsedDevices
	rec.ServerMaxVersion = resp.MaxVersion
	rec.ServerExpiresAt = resp.ExpiresAt
	rec.Kid = resp.Kid
	rec.HWID = info.HWID
	rec.Hostname = info.Hostname
	rec.Platform = info.Platform
	rec.AppVer = info.AppVer
	rec.CheckedAtUTC = toISOZ(utcNowFloorMinute())
	rec.OfflineMode = false

	c.logger.InfoContext(ctx, "license verified online",
		slog.String("short_key", maskShortKey(shortKey)),
		slog.String("customer", rec.Customer),
		slog.String("plan", rec.Plan),
	)

	return rec, nil
}

// registerDevice performs the registration step. A 403 carries the
// server's reason (typically a device limit).
func (c *Client) registerDevice(ctx context.Context, shortKey string, info security.MachineInfo) error {
	payload := registerRequest{
		Key:      shortKey,
		HWID:     info.HWID,
		Hostname: info.Hostname,
		Platform: info.Platform,
		AppVer:   info.AppVer,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode registration request: %w", err)
	}

	url := c.baseURL + "/devices/register"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "device registration unreachable",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return &NetworkError{Op: "device registration", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "device registration", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &RegistrationDeniedError{Reason: extractDetail(respBody, "Forbidden")}
	case resp.StatusCode >= 400:
		return &APIError{Op: "device registration", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.InfoContext(ctx, "device registered",
		slog.String("short_key", maskShortKey(shortKey)),
		slog.String("hwid", info.HWID),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// lookup performs the license retrieval step.
func (c *Client) lookup(ctx context.Context, shortKey string) (*LookupResponse, error) {
	url := fmt.Sprintf("%s/licenses/%s/public?app_ver=%s", c.baseURL, shortKey, c.appVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "license lookup unreachable",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, &NetworkError{Op: "license lookup", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "license lookup", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrKeyNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, &LicenseInvalidError{Reason: extractDetail(body, "License invalid")}
	case resp.StatusCode >= 400:
		return nil, &APIError{Op: "license lookup", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var lookup LookupResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		return nil, &APIError{Op: "license lookup", StatusCode: resp.StatusCode, Body: "unparseable response body"}
	}

	return &lookup, nil
}

// extractDetail pulls the "detail" field out of an error body, falling
// back to a fixed message when the body is not parseable.
func extractDetail(body []byte, fallback string) string {
	var detail detailResponse
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return fallback
}

// maskShortKey hides the middle groups of a short key in logs.
func maskShortKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func (c *Client) userAgent() string {
	return config.AppName + "/" + c.appVersion
}
