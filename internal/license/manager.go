package license

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"tktcli/internal/config"
	"tktcli/internal/security"
)

// State is the activation state of the application.
type State int

const (
	StateUnactivated State = iota
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	default:
		return "unactivated"
	}
}

// ActivationResult is delivered on the completion channel of an
// asynchronous activation.
type ActivationResult struct {
	Record *Record
	Err    error
}

// Manager is the activation orchestrator. It decides whether to go to
// the server, fall back to the offline evaluator, or reject outright,
// and it owns the cache and the activation state machine. At most one
// activation runs at a time; a second request fails fast.
type Manager struct {
	cfg       config.LicenseConfig
	client    *Client
	store     *Store
	offline   *OfflineEvaluator
	collector *security.Collector
	logger    *slog.Logger
	metrics   *Metrics
	limiter   *rate.Limiter

	mu      sync.Mutex
	state   State
	current *Record
}

// NewManager wires the orchestrator from its parts. The configuration is
// an explicit value, never read from ambient state, so tests can point
// at arbitrary servers.
func NewManager(cfg config.LicenseConfig, verifier *Verifier, store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "license.manager"))

	collector := security.NewCollector(logger)
	metrics, err := NewMetrics()
	if err != nil {
		logger.Warn("license metrics disabled", slog.String("error", err.Error()))
		metrics = nil
	}

	return &Manager{
		cfg:       cfg,
		client:    NewClient(cfg, verifier, collector, logger),
		store:     store,
		offline:   NewOfflineEvaluator(verifier, collector, cfg.AppVersion, cfg.OfflineGracePeriod(), logger),
		collector: collector,
		logger:    logger,
		metrics:   metrics,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/config.ActivationRateLimit), config.ActivationRateLimit),
	}
}

// State returns the current activation state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the active license record, or nil when not
// activated.
func (m *Manager) Current() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	rec := *m.current
	return &rec
}

// StartupCheck re-validates a cached license on application start. With
// no cache present it returns (nil, ErrNotActivated). An online success
// overwrites the cache; a network failure or 5xx delegates to the
// offline evaluator; a 4xx is terminal and leaves the machine
// unactivated.
func (m *Manager) StartupCheck(ctx context.Context) (*Record, error) {
	ctx, span := startSpan(ctx, "license.validation")
	rec, err := m.startupCheck(ctx)
	endSpan(span, err)
	return rec, err
}

func (m *Manager) startupCheck(ctx context.Context) (*Record, error) {
	cached, err := m.store.Load()
	if err != nil {
		m.setUnactivated()
		return nil, err
	}
	if cached == nil {
		m.setUnactivated()
		return nil, ErrNotActivated
	}

	shortKey := NormalizeShortKey(cached.ShortKey)
	if shortKey == "" {
		m.setUnactivated()
		return nil, ErrMissingShortKey
	}

	rec, err := m.client.CheckKey(ctx, shortKey)
	if err == nil {
		if saveErr := m.store.Save(rec); saveErr != nil {
			m.logger.ErrorContext(ctx, "failed to persist re-validated license",
				slog.String("error", saveErr.Error()),
			)
		}
		m.setActivated(rec)
		m.metrics.recordValidation(ctx, true)
		return rec, nil
	}

	if !allowsOfflineFallback(err) {
		m.logger.WarnContext(ctx, "startup re-validation rejected",
			slog.String("error", err.Error()),
		)
		m.setUnactivated()
		m.metrics.recordValidation(ctx, false)
		return nil, err
	}

	m.logger.WarnContext(ctx, "license server unavailable, evaluating cached license offline",
		slog.String("error", err.Error()),
	)

	rec, offErr := m.offline.Evaluate(ctx, cached)
	if offErr != nil {
		m.setUnactivated()
		m.metrics.recordOfflineFallback(ctx, false)
		return nil, offErr
	}

	// The offline record keeps its original checked_at_utc, so
	// persisting it does not stretch the grace window.
	if saveErr := m.store.Save(rec); saveErr != nil {
		m.logger.ErrorContext(ctx, "failed to persist offline-validated license",
			slog.String("error", saveErr.Error()),
		)
	}
	m.setActivated(rec)
	m.metrics.recordOfflineFallback(ctx, true)
	return rec, nil
}

// Activate performs an explicit activation with a user-entered short
// key. The key format is validated locally before any network call.
func (m *Manager) Activate(ctx context.Context, rawKey string) (*Record, error) {
	if err := m.beginActivation(); err != nil {
		return nil, err
	}
	return m.finishActivation(ctx, rawKey)
}

// ActivateAsync runs the activation on a background goroutine and
// delivers the outcome on the returned channel. The in-flight slot is
// reserved before returning, so a concurrent request fails fast with
// ErrActivationInProgress instead of queueing.
func (m *Manager) ActivateAsync(ctx context.Context, rawKey string) (<-chan ActivationResult, error) {
	if err := m.beginActivation(); err != nil {
		return nil, err
	}

	done := make(chan ActivationResult, 1)
	go func() {
		rec, err := m.finishActivation(ctx, rawKey)
		done <- ActivationResult{Record: rec, Err: err}
	}()
	return done, nil
}

// Deactivate deletes the cached license and returns the machine to the
// unactivated state. Idempotent.
func (m *Manager) Deactivate(ctx context.Context) error {
	if err := m.store.Delete(); err != nil {
		return err
	}
	m.setUnactivated()
	m.logger.InfoContext(ctx, "license deactivated")
	return nil
}

// beginActivation reserves the single activation slot.
func (m *Manager) beginActivation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateActivating {
		return ErrActivationInProgress
	}
	if !m.limiter.Allow() {
		return ErrTooManyAttempts
	}
	m.state = StateActivating
	return nil
}

// finishActivation runs the guarded part of an activation and settles
// the state machine.
func (m *Manager) finishActivation(ctx context.Context, rawKey string) (rec *Record, err error) {
	key := NormalizeShortKey(rawKey)

	ctx, span := startSpan(ctx, "license.activation",
		attribute.String("license.short_key", maskShortKey(key)),
	)
	defer func() { endSpan(span, err) }()

	if key == "" {
		m.settle(nil)
		return nil, ErrMissingShortKey
	}
	if !IsShortKey(key) {
		m.settle(nil)
		m.metrics.recordActivation(ctx, false)
		return nil, ErrInvalidKeyFormat
	}

	rec, err = m.client.Activate(ctx, key)
	if err != nil {
		m.logger.WarnContext(ctx, "activation failed",
			slog.String("short_key", maskShortKey(key)),
			slog.String("error", err.Error()),
		)
		m.settle(nil)
		m.metrics.recordActivation(ctx, false)
		return nil, err
	}

	if err := m.store.Save(rec); err != nil {
		m.settle(nil)
		m.metrics.recordActivation(ctx, false)
		return nil, err
	}

	m.settle(rec)
	m.metrics.recordActivation(ctx, true)
	m.logger.InfoContext(ctx, "license activated",
		slog.String("short_key", maskShortKey(key)),
		slog.String("customer", rec.Customer),
		slog.String("plan", rec.Plan),
	)
	return rec, nil
}

// settle releases the activation slot, transitioning to Activated when a
// record was produced and back to Unactivated otherwise.
func (m *Manager) settle(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec != nil {
		m.state = StateActivated
		m.current = rec
		return
	}
	// A failed explicit activation does not revoke an earlier success.
	if m.current != nil {
		m.state = StateActivated
		return
	}
	m.state = StateUnactivated
}

func (m *Manager) setActivated(rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateActivated
	m.current = rec
}

func (m *Manager) setUnactivated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnactivated
	m.current = nil
}
