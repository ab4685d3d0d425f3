package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fitband/device-mgmt/internal/pkg/application/devicemanagement"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	authz "github.com/fitband/device-mgmt/internal/pkg/presentation/api/auth"
	"github.com/fitband/device-mgmt/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type createDeviceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type patchDeviceRequest struct {
	Name *string `json:"name"`
}

func queryDevicesHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-devices")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		limit, offset, err := parseLimitOffset(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit and offset must be integers", "")
			return
		}

		devices, err := svc.GetDevices(ctx, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("unable to fetch devices")
			respondError(w, http.StatusInternalServerError, "could not fetch devices", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewDevices(devices))
	}
}

func getDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		device, err := svc.GetDeviceByID(ctx, deviceID)
		if err != nil {
			if errors.Is(err, devicemanagement.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "")
				return
			}

			log.Error().Err(err).Str("device_id", deviceID).Msg("could not fetch device")
			respondError(w, http.StatusInternalServerError, "could not fetch device", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewDevice(device))
	}
}

func getMyDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-my-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		user, ok := authz.GetUserFromContext(ctx)
		if !ok {
			respondError(w, http.StatusUnauthorized, "no authenticated user", "")
			return
		}

		device, err := svc.GetDeviceByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, devicemanagement.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "")
				return
			}

			log.Error().Err(err).Str("user_id", user.ID).Msg("could not fetch device")
			respondError(w, http.StatusInternalServerError, "could not fetch device", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewDevice(device))
	}
}

func createDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		var req createDeviceRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if req.ID == "" {
			respondError(w, http.StatusBadRequest, "id is required", "")
			return
		}

		user, _ := authz.GetUserFromContext(ctx)

		device, err := svc.CreateDevice(ctx, database.Device{
			ID:     req.ID,
			Name:   req.Name,
			UserID: user.ID,
		})
		if err != nil {
			if errors.Is(err, devicemanagement.ErrDeviceAlreadyExist) {
				respondError(w, http.StatusConflict, "device already exists", "")
				return
			}

			log.Error().Err(err).Msg("unable to create device")
			respondError(w, http.StatusInternalServerError, "could not create device", "")
			return
		}

		respondJSON(w, http.StatusCreated, types.NewDevice(device))
	}
}

func patchDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "patch-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		var req patchDeviceRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if req.Name == nil {
			respondError(w, http.StatusBadRequest, "no updatable fields in request", "")
			return
		}

		device, err := svc.UpdateDevice(ctx, deviceID, map[string]any{"name": *req.Name})
		if err != nil {
			if errors.Is(err, devicemanagement.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "")
				return
			}

			log.Error().Err(err).Str("device_id", deviceID).Msg("unable to update device")
			respondError(w, http.StatusInternalServerError, "could not update device", "")
			return
		}

		respondJSON(w, http.StatusOK, types.NewDevice(device))
	}
}

func deleteDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-device")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		deviceID := chi.URLParam(r, "deviceID")

		err = svc.DeleteDevice(ctx, deviceID)
		if err != nil {
			if errors.Is(err, devicemanagement.ErrDeviceNotFound) {
				respondError(w, http.StatusNotFound, "device not found", "")
				return
			}

			log.Error().Err(err).Str("device_id", deviceID).Msg("unable to delete device")
			respondError(w, http.StatusInternalServerError, "could not delete device", "")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
