package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fitband/device-mgmt/internal/pkg/application/sessiontracker"
	"github.com/fitband/device-mgmt/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type createSessionRequest struct {
	DeviceID string `json:"deviceID"`
	Notes    string `json:"notes"`
}

type patchSessionRequest struct {
	Notes string `json:"notes"`
}

func querySessionsHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-sessions")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		limit, offset, err := parseLimitOffset(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be integers", "")
			return
		}

		sessions, err := svc.GetSessions(ctx, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("unable to fetch sessions")
			respondError(w, http.StatusInternalServerError, "could not fetch sessions", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewSessions(sessions))
	}
}

func getSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		sessionID := chi.URLParam(r, "sessionID")

		session, err := svc.GetSessionByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sessiontracker.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "session not found", "")
				return
			}

			log.Error().Err(err).Str("session_id", sessionID).Msg("could not fetch session")
			respondError(w, http.StatusInternalServerError, "could not fetch session", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewSession(session))
	}
}

func getSessionsByDeviceHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-sessions-by-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		sessions, err := svc.GetSessionsByDeviceID(ctx, deviceID)
		if err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("could not fetch sessions")
			respondError(w, http.StatusInternalServerError, "could not fetch sessions", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewSessions(sessions))
	}
}

func getActiveSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-active-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		session, found, err := svc.FindActive(ctx, deviceID)
		if err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("could not fetch active session")
			respondError(w, http.StatusInternalServerError, "could not fetch active session", "")
			return
		}

		if !found {
			respondJSON(w, http.StatusOK, nil)
			return
		}

		respondJSON(w, http.StatusOK, types.NewSession(session))
	}
}

func createSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		var req createSessionRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if req.DeviceID == "" {
			respondError(w, http.StatusBadRequest, "deviceID is required", "")
			return
		}

		session, err := svc.Open(ctx, req.DeviceID, req.Notes)
		if err != nil {
			if errors.Is(err, sessiontracker.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "device_not_found")
				return
			}
			if errors.Is(err, sessiontracker.ErrActiveSessionExists) {
				respondError(w, http.StatusConflict, "device already has an active session", "")
				return
			}

			log.Error().Err(err).Str("device_id", req.DeviceID).Msg("unable to open session")
			respondError(w, http.StatusInternalServerError, "could not open session", "")
			return
		}

		respondJSON(w, http.StatusCreated, types.NewSession(session))
	}
}

func patchSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "patch-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		sessionID := chi.URLParam(r, "sessionID")

		var req patchSessionRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		session, err := svc.UpdateNotes(ctx, sessionID, req.Notes)
		if err != nil {
			if errors.Is(err, sessiontracker.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "session not found", "")
				return
			}

			log.Error().Err(err).Str("session_id", sessionID).Msg("unable to update session")
			respondError(w, http.StatusInternalServerError, "could not update session", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewSession(session))
	}
}

func endSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "end-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		sessionID := chi.URLParam(r, "sessionID")

		session, err := svc.End(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sessiontracker.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "session not found", "")
				return
			}

			log.Error().Err(err).Str("session_id", sessionID).Msg("unable to end session")
			respondError(w, http.StatusInternalServerError, "could not end session", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewSession(session))
	}
}

func deleteSessionHandler(log zerolog.Logger, svc sessiontracker.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		sessionID := chi.URLParam(r, "sessionID")

		err = svc.DeleteSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sessiontracker.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "session not found", "")
				return
			}

			log.Error().Err(err).Str("session_id", sessionID).Msg("unable to delete session")
			respondError(w, http.StatusInternalServerError, "could not delete session", "")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
