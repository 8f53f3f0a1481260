package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tktcli/internal/errors"
	"tktcli/internal/infrastructure"
	"tktcli/internal/license"
	"tktcli/internal/services"
)

var validate = validator.New()

// LicenseHandler serves the license endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the activation payload.
type ActivationRequest struct {
	Key string `json:"key" validate:"required,min=8,max=64"`
}

// Bind implements render.Binder.
func (a *ActivationRequest) Bind(r *http.Request) error {
	return validate.Struct(a)
}

// Routes returns the license sub-router.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", h.GetStatus)
	r.Post("/activate", h.Activate)
	r.Delete("/", h.Deactivate)
	return r
}

// GetStatus reports the current activation state.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.GetStatus(r.Context()))
}

// Activate activates a short key on this machine.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivationRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apperrors.NewActivationProblem(
			http.StatusBadRequest, "key is required", infrastructure.GetTraceID(ctx)))
		return
	}

	status, err := h.service.Activate(ctx, req.Key)
	if err != nil {
		h.logger.WarnContext(ctx, "activation rejected", slog.String("error", err.Error()))
		render.Render(w, r, licenseProblem(ctx, err))
		return
	}

	render.JSON(w, r, status)
}

// Deactivate removes the license from this machine.
func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context()); err != nil {
		render.Render(w, r, apperrors.NewActivationProblem(
			http.StatusInternalServerError, err.Error(), infrastructure.GetTraceID(r.Context())))
		return
	}
	render.NoContent(w, r)
}

// licenseProblem maps a license domain error to a problem response,
// keeping the domain error message as the detail.
func licenseProblem(ctx context.Context, err error) *apperrors.ProblemDetails {
	return apperrors.NewActivationProblem(licenseStatusCode(err), err.Error(), infrastructure.GetTraceID(ctx))
}

// licenseStatusCode picks the HTTP status for a license error.
func licenseStatusCode(err error) int {
	var (
		netErr    *license.NetworkError
		apiErr    *license.APIError
		regDenied *license.RegistrationDeniedError
		invalid   *license.LicenseInvalidError
	)
	switch {
	case errors.Is(err, license.ErrInvalidKeyFormat),
		errors.Is(err, license.ErrMissingShortKey):
		return http.StatusBadRequest
	case errors.Is(err, license.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, license.ErrActivationInProgress):
		return http.StatusConflict
	case errors.Is(err, license.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, license.ErrLicenseNotActive),
		errors.Is(err, license.ErrLicenseExpired),
		errors.Is(err, license.ErrVersionNotAllowed),
		errors.As(err, &regDenied),
		errors.As(err, &invalid):
		return http.StatusForbidden
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		if apiErr.IsServerError() {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
