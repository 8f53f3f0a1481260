package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tktcli/internal/infrastructure"
	"tktcli/internal/license"
)

// LicenseService fronts the activation orchestrator for the HTTP layer.
type LicenseService interface {
	GetStatus(ctx context.Context) *LicenseStatusResponse
	Activate(ctx context.Context, key string) (*LicenseStatusResponse, error)
	Deactivate(ctx context.Context) error
	StartupCheck(ctx context.Context) error
}

// LicenseStatusResponse is the status payload returned to the frontend.
type LicenseStatusResponse struct {
	LicenseStatus string    `json:"license_status"` // activated|activating|not_activated
	Message       string    `json:"message"`
	Customer      string    `json:"customer,omitempty"`
	Plan          string    `json:"plan,omitempty"`
	ExpiresAt     string    `json:"expires_at,omitempty"`
	DaysLeft      int       `json:"days_left,omitempty"`
	OfflineMode   bool      `json:"offline_mode"`
	CheckedAtUTC  string    `json:"checked_at_utc,omitempty"`
	TraceID       string    `json:"trace_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type licenseService struct {
	manager *license.Manager
	logger  *slog.Logger

	// onStateChange is notified after activation state transitions, so
	// the websocket hub can push updates. Optional.
	onStateChange func(state string)
}

// NewLicenseService creates the license service. notify may be nil.
func NewLicenseService(manager *license.Manager, logger *slog.Logger, notify func(state string)) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		manager:       manager,
		logger:        logger.With(slog.String("service", "license")),
		onStateChange: notify,
	}
}

// GetStatus reports the current activation state. It never errors; an
// unactivated machine is a valid status, not a failure.
func (s *licenseService) GetStatus(ctx context.Context) *LicenseStatusResponse {
	resp := &LicenseStatusResponse{
		LicenseStatus: s.manager.State().String(),
		TraceID:       infrastructure.GetTraceID(ctx),
		Timestamp:     time.Now().UTC(),
	}

	rec := s.manager.Current()
	if rec == nil {
		if s.manager.State() == license.StateActivating {
			resp.LicenseStatus = "activating"
			resp.Message = "Activation in progress"
		} else {
			resp.LicenseStatus = "not_activated"
			resp.Message = "No license activated on this machine"
		}
		return resp
	}

	resp.Customer = rec.Customer
	resp.Plan = rec.Plan
	resp.ExpiresAt = rec.ValidUntil
	resp.OfflineMode = rec.OfflineMode
	resp.CheckedAtUTC = rec.CheckedAtUTC
	resp.DaysLeft = daysUntil(rec.ValidUntil)

	if rec.OfflineMode {
		resp.Message = "License valid (offline, last verified " + rec.CheckedAtUTC + ")"
	} else {
		resp.Message = "License valid"
	}
	return resp
}

// Activate runs a blocking activation with the given short key.
func (s *licenseService) Activate(ctx context.Context, key string) (*LicenseStatusResponse, error) {
	s.logger.InfoContext(ctx, "activation requested")

	rec, err := s.manager.Activate(ctx, key)
	if err != nil {
		s.notify()
		return nil, err
	}

	s.notify()
	return &LicenseStatusResponse{
		LicenseStatus: "activated",
		Message:       "License activated",
		Customer:      rec.Customer,
		Plan:          rec.Plan,
		ExpiresAt:     rec.ValidUntil,
		DaysLeft:      daysUntil(rec.ValidUntil),
		OfflineMode:   rec.OfflineMode,
		CheckedAtUTC:  rec.CheckedAtUTC,
		TraceID:       infrastructure.GetTraceID(ctx),
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Deactivate deletes the cached license.
func (s *licenseService) Deactivate(ctx context.Context) error {
	err := s.manager.Deactivate(ctx)
	s.notify()
	return err
}

// StartupCheck re-validates the cached license on boot. ErrNotActivated
// is expected on a fresh machine and not treated as a failure.
func (s *licenseService) StartupCheck(ctx context.Context) error {
	_, err := s.manager.StartupCheck(ctx)
	s.notify()
	if errors.Is(err, license.ErrNotActivated) {
		s.logger.InfoContext(ctx, "no license on this machine yet")
		return nil
	}
	return err
}

func (s *licenseService) notify() {
	if s.onStateChange != nil {
		s.onStateChange(s.manager.State().String())
	}
}

// daysUntil returns whole days from now to an expiry timestamp, zero
// when absent or unparseable, never negative.
func daysUntil(expiry string) int {
	if expiry == "" {
		return 0
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, expiry); err == nil {
			days := int(time.Until(t).Hours() / 24)
			if days < 0 {
				return 0
			}
			return days
		}
	}
	return 0
}
