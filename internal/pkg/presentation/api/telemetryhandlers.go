package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fitband/device-mgmt/internal/pkg/application/telemetry"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/fitband/device-mgmt/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type ingestTelemetryRequest struct {
	DeviceID  string  `json:"deviceID"`
	SessionID *string `json:"sessionID"`
	TsDevice  string  `json:"tsDevice"`

	HeartRate     *int     `json:"heartRate"`
	StepsDelta    *int     `json:"stepsDelta"`
	CaloriesDelta *float64 `json:"caloriesDelta"`
	Battery       *float64 `json:"battery"`
	Ax            *float64 `json:"ax"`
	Ay            *float64 `json:"ay"`
	Az            *float64 `json:"az"`

	MessageID *string `json:"messageID"`
}

func (r ingestTelemetryRequest) validate() (time.Time, error) {
	if r.DeviceID == "" {
		return time.Time{}, errors.New("deviceID is required")
	}

	tsDevice, err := time.Parse(time.RFC3339, r.TsDevice)
	if err != nil {
		return time.Time{}, errors.New("tsDevice must be an RFC 3339 timestamp")
	}

	return tsDevice, validateReadingBounds(r.HeartRate, r.StepsDelta, r.Battery)
}

// patchTelemetryRequest carries the subset of reading fields that may be
// rewritten after ingestion, under the same bounds the ingest path applies.
type patchTelemetryRequest struct {
	HeartRate     *int     `json:"heartRate"`
	StepsDelta    *int     `json:"stepsDelta"`
	CaloriesDelta *float64 `json:"caloriesDelta"`
	Battery       *float64 `json:"battery"`
	Ax            *float64 `json:"ax"`
	Ay            *float64 `json:"ay"`
	Az            *float64 `json:"az"`
}

func (r patchTelemetryRequest) validate() error {
	return validateReadingBounds(r.HeartRate, r.StepsDelta, r.Battery)
}

func (r patchTelemetryRequest) fields() map[string]any {
	fields := map[string]any{}

	if r.HeartRate != nil {
		fields["heart_rate"] = *r.HeartRate
	}
	if r.StepsDelta != nil {
		fields["steps_delta"] = *r.StepsDelta
	}
	if r.CaloriesDelta != nil {
		fields["calories_delta"] = *r.CaloriesDelta
	}
	if r.Battery != nil {
		fields["battery"] = *r.Battery
	}
	if r.Ax != nil {
		fields["ax"] = *r.Ax
	}
	if r.Ay != nil {
		fields["ay"] = *r.Ay
	}
	if r.Az != nil {
		fields["az"] = *r.Az
	}

	return fields
}

func validateReadingBounds(heartRate, stepsDelta *int, battery *float64) error {
	if heartRate != nil && (*heartRate < 0 || *heartRate > 255) {
		return errors.New("heartRate must be between 0 and 255")
	}
	if stepsDelta != nil && *stepsDelta < 0 {
		return errors.New("stepsDelta must not be negative")
	}
	if battery != nil && (*battery < 0 || *battery > 100) {
		return errors.New("battery must be between 0 and 100")
	}
	return nil
}

func queryTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		limit, offset, err := parseLimitOffset(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be integers", "")
			return
		}

		readings, err := svc.GetTelemetry(ctx, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("unable to fetch telemetry")
			respondError(w, http.StatusInternalServerError, "could not fetch telemetry", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetryList(readings))
	}
}

func getTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		id, err := strconv.ParseUint(chi.URLParam(r, "telemetryID"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "telemetry id must be an integer", "")
			return
		}

		reading, err := svc.GetTelemetryByID(ctx, id)
		if err != nil {
			if errors.Is(err, telemetry.ErrTelemetryNotFound) {
				respondError(w, http.StatusNotFound, "telemetry not found", "")
				return
			}

			log.Error().Err(err).Uint64("telemetry_id", id).Msg("could not fetch telemetry")
			respondError(w, http.StatusInternalServerError, "could not fetch telemetry", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetry(reading))
	}
}

func getTelemetryByDeviceHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-telemetry-by-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		limit, offset, err := parseLimitOffset(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be integers", "")
			return
		}

		deviceID := chi.URLParam(r, "deviceID")

		readings, err := svc.GetTelemetryByDeviceID(ctx, deviceID, limit, offset)
		if err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("could not fetch telemetry")
			respondError(w, http.StatusInternalServerError, "could not fetch telemetry", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetryList(readings))
	}
}

func getLatestTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-latest-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		reading, found, err := svc.GetLatestTelemetryByDeviceID(ctx, deviceID)
		if err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("could not fetch latest telemetry")
			respondError(w, http.StatusInternalServerError, "could not fetch telemetry", "")
			return
		}

		if !found {
			respondJSON(w, http.StatusOK, nil)
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetry(reading))
	}
}

func getTelemetryBySessionHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-telemetry-by-session")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		limit, offset, err := parseLimitOffset(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be integers", "")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")

		readings, err := svc.GetTelemetryBySessionID(ctx, sessionID, limit, offset)
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("could not fetch telemetry")
			respondError(w, http.StatusInternalServerError, "could not fetch telemetry", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetryList(readings))
	}
}

func ingestTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "ingest-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		var req ingestTelemetryRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		tsDevice, err := req.validate()
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		reading, err := svc.Ingest(ctx, database.Telemetry{
			DeviceID:      req.DeviceID,
			SessionID:     req.SessionID,
			TsDevice:      tsDevice,
			HeartRate:     req.HeartRate,
			StepsDelta:    req.StepsDelta,
			CaloriesDelta: req.CaloriesDelta,
			Battery:       req.Battery,
			Ax:            req.Ax,
			Ay:            req.Ay,
			Az:            req.Az,
			MessageID:     req.MessageID,
		})
		if err != nil {
			if errors.Is(err, telemetry.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "device_not_found")
				return
			}
			if errors.Is(err, telemetry.ErrSessionNotFound) {
				respondError(w, http.StatusNotFound, "session not found", "session_not_found")
				return
			}
			if errors.Is(err, telemetry.ErrSessionDeviceMismatch) {
				respondError(w, http.StatusNotFound, "session does not belong to device", "session_device_mismatch")
				return
			}

			log.Error().Err(err).Str("device_id", req.DeviceID).Msg("unable to ingest telemetry")
			respondError(w, http.StatusInternalServerError, "could not ingest telemetry", "")
			return
		}

		respondJSON(w, http.StatusCreated, types.NewTelemetry(reading))
	}
}

func patchTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "patch-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		id, err := strconv.ParseUint(chi.URLParam(r, "telemetryID"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "telemetry id must be an integer", "")
			return
		}

		var req patchTelemetryRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if err = req.validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		fields := req.fields()
		if len(fields) == 0 {
			respondError(w, http.StatusBadRequest, "no updatable fields in request", "")
			return
		}

		reading, err := svc.UpdateTelemetry(ctx, id, fields)
		if err != nil {
			if errors.Is(err, telemetry.ErrTelemetryNotFound) {
				respondError(w, http.StatusNotFound, "telemetry not found", "")
				return
			}

			log.Error().Err(err).Uint64("telemetry_id", id).Msg("unable to update telemetry")
			respondError(w, http.StatusInternalServerError, "could not update telemetry", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewTelemetry(reading))
	}
}

func deleteTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-telemetry")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		id, err := strconv.ParseUint(chi.URLParam(r, "telemetryID"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "telemetry id must be an integer", "")
			return
		}

		err = svc.DeleteTelemetry(ctx, id)
		if err != nil {
			if errors.Is(err, telemetry.ErrTelemetryNotFound) {
				respondError(w, http.StatusNotFound, "telemetry not found", "")
				return
			}

			log.Error().Err(err).Uint64("telemetry_id", id).Msg("unable to delete telemetry")
			respondError(w, http.StatusInternalServerError, "could not delete telemetry", "")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
