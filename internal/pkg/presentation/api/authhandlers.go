package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/fitband/device-mgmt/internal/pkg/application/auth"
	"github.com/fitband/device-mgmt/pkg/types"
	"github.com/rs/zerolog"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	DeviceID string `json:"deviceID"`
}

func (r registerRequest) validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is not a valid address")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.DeviceID == "" {
		return errors.New("deviceID is required")
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	DeviceID string `json:"deviceID"`
}

func (r loginRequest) validate() error {
	if r.Email == "" || r.Password == "" || r.Name == "" || r.DeviceID == "" {
		return errors.New("email, password, name and deviceID are required")
	}
	return nil
}

func registerHandler(log zerolog.Logger, svc auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "register")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		var req registerRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if err = req.validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		result, err := svc.Register(ctx, auth.RegistrationInfo{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			DeviceID: req.DeviceID,
		})
		if err != nil {
			if errors.Is(err, auth.ErrUserAlreadyExists) || errors.Is(err, auth.ErrDeviceAlreadyExists) {
				respondError(w, http.StatusConflict, err.Error(), "")
				return
			}

			log.Error().Err(err).Msg("unable to register user")
			respondError(w, http.StatusInternalServerError, "registration failed", "")
			return
		}

		respondJSON(w, http.StatusCreated, types.TokenResponse{
			AccessToken: result.AccessToken,
			User:        types.NewUser(result.User),
		})
	}
}

func loginHandler(log zerolog.Logger, svc auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "login")
		defer func() { recordAnyErrorAndEndSpan(err, span) }()

		var req loginRequest
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			respondError(w, http.StatusBadRequest, "malformed request body", "")
			return
		}

		if err = req.validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		result, err := svc.Login(ctx, auth.Credentials{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			DeviceID: req.DeviceID,
		})
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				respondError(w, http.StatusUnauthorized, "invalid credentials", "")
				return
			}

			log.Error().Err(err).Msg("unable to log in user")
			respondError(w, http.StatusInternalServerError, "login failed", "")
			return
		}

		respondJSON(w, http.StatusOK, types.TokenResponse{
			AccessToken: result.AccessToken,
			User:        types.NewUser(result.User),
		})
	}
}
