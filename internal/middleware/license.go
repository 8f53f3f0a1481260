package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apperrors "tktcli/internal/errors"
	"tktcli/internal/infrastructure"
	"tktcli/internal/license"
)

// LicenseGate blocks tool endpoints until a license is activated. The
// license endpoints themselves, health, metrics, and the websocket stay
// reachable so the frontend can drive the activation flow.
type LicenseGate struct {
	manager         *license.Manager
	logger          *slog.Logger
	excludePaths    map[string]bool
	excludePrefixes []string
}

// NewLicenseGate creates the gate around the activation state machine.
func NewLicenseGate(manager *license.Manager, logger *slog.Logger) *LicenseGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseGate{
		manager: manager,
		logger:  logger.With(slog.String("component", "license_gate")),
		excludePaths: map[string]bool{
			"/":            true,
			"/api/health":  true,
			"/metrics":     true,
			"/ws":          true,
			"/favicon.ico": true,
		},
		excludePrefixes: []string{
			"/api/license",
		},
	}
}

// Handler returns the middleware function.
func (g *LicenseGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if g.manager.State() != license.StateActivated {
			ctx := r.Context()
			g.logger.WarnContext(ctx, "request blocked, no active license",
				slog.String("path", r.URL.Path),
			)
			render.Render(w, r, apperrors.NewNotActivatedProblem(infrastructure.GetTraceID(ctx)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *LicenseGate) excluded(path string) bool {
	if g.excludePaths[path] {
		return true
	}
	for _, prefix := range g.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
