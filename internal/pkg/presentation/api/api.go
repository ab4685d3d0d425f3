package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fitband/device-mgmt/internal/pkg/application/auth"
	"github.com/fitband/device-mgmt/internal/pkg/application/devicemanagement"
	"github.com/fitband/device-mgmt/internal/pkg/application/sessiontracker"
	"github.com/fitband/device-mgmt/internal/pkg/application/telemetry"
	authz "github.com/fitband/device-mgmt/internal/pkg/presentation/api/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("device-mgmt/api")

func RegisterHandlers(log zerolog.Logger, router *chi.Mux, authSvc auth.AuthService, deviceSvc devicemanagement.DeviceManagement, sessionSvc sessiontracker.SessionTracker, telemetrySvc telemetry.TelemetryService) *chi.Mux {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	requireAuth := authz.RequireAuth(authSvc)

	router.Route("/api/v0", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", registerHandler(log, authSvc))
			r.Post("/login", loginHandler(log, authSvc))
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", queryDevicesHandler(log, deviceSvc))
			r.Get("/{deviceID}", getDeviceHandler(log, deviceSvc))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/my-device", getMyDeviceHandler(log, deviceSvc))
				r.Post("/", createDeviceHandler(log, deviceSvc))
				r.Patch("/{deviceID}", patchDeviceHandler(log, deviceSvc))
				r.Delete("/{deviceID}", deleteDeviceHandler(log, deviceSvc))
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", querySessionsHandler(log, sessionSvc))
			r.Get("/{sessionID}", getSessionHandler(log, sessionSvc))
			r.Get("/device/{deviceID}", getSessionsByDeviceHandler(log, sessionSvc))
			r.Get("/device/{deviceID}/active", getActiveSessionHandler(log, sessionSvc))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/", createSessionHandler(log, sessionSvc))
				r.Patch("/{sessionID}", patchSessionHandler(log, sessionSvc))
				r.Put("/{sessionID}/end", endSessionHandler(log, sessionSvc))
				r.Delete("/{sessionID}", deleteSessionHandler(log, sessionSvc))
			})
		})

		r.Route("/telemetry", func(r chi.Router) {
			r.Get("/", queryTelemetryHandler(log, telemetrySvc))
			r.Get("/{telemetryID}", getTelemetryHandler(log, telemetrySvc))
			r.Get("/device/{deviceID}", getTelemetryByDeviceHandler(log, telemetrySvc))
			r.Get("/device/{deviceID}/latest", getLatestTelemetryHandler(log, telemetrySvc))
			r.Get("/session/{sessionID}", getTelemetryBySessionHandler(log, telemetrySvc))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/", ingestTelemetryHandler(log, telemetrySvc))
				r.Patch("/{telemetryID}", patchTelemetryHandler(log, telemetrySvc))
				r.Delete("/{telemetryID}", deleteTelemetryHandler(log, telemetrySvc))
			})
		})
	})

	return router
}

func recordAnyErrorAndEndSpan(err error, span trace.Span) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func respondError(w http.ResponseWriter, status int, message, reason string) {
	respondJSON(w, status, errorResponse{Error: message, Reason: reason})
}

// parseLimitOffset reads limit/offset query parameters as-is. A missing
// parameter is zero, which the store treats as "no constraint".
func parseLimitOffset(r *http.Request) (limit, offset int, err error) {
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
	}

	return limit, offset, nil
}
