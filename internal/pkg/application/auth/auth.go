package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserAlreadyExists = errors.New("user already exists")
var ErrDeviceAlreadyExists = errors.New("device already exists")

type Config struct {
	TokenSecret string        `yaml:"tokenSecret"`
	TokenTTL    time.Duration `yaml:"tokenTTL"`
}

type RegistrationInfo struct {
	Email    string
	Password string
	Name     string
	DeviceID string
}

type Credentials struct {
	Email    string
	Password string
	Name     string
	DeviceID string
}

type LoginResult struct {
	AccessToken string
	User        database.User
}

type AuthService interface {
	Register(ctx context.Context, info RegistrationInfo) (LoginResult, error)
	Login(ctx context.Context, credentials Credentials) (LoginResult, error)
	Authenticate(ctx context.Context, token string) (database.User, error)
}

func New(users database.UserRepository, devices database.DeviceRepository, cfg *Config) AuthService {
	return &authService{
		users:     users,
		devices:   devices,
		config:    cfg,
		tokenAuth: jwtauth.New("HS256", []byte(cfg.TokenSecret), nil),
	}
}

type authService struct {
	users     database.UserRepository
	devices   database.DeviceRepository
	config    *Config
	tokenAuth *jwtauth.JWTAuth
}

// Register creates the user together with their device. Both inserts run
// in one store transaction so a failure on either side leaves nothing
// behind.
func (a *authService) Register(ctx context.Context, info RegistrationInfo) (LoginResult, error) {
	_, err := a.users.GetUserByEmail(ctx, info.Email)
	if err == nil {
		return LoginResult{}, ErrUserAlreadyExists
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return LoginResult{}, err
	}

	_, err = a.devices.GetDeviceByID(ctx, info.DeviceID)
	if err == nil {
		return LoginResult{}, ErrDeviceAlreadyExists
	}
	if !errors.Is(err, database.ErrDeviceNotFound) {
		return LoginResult{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(info.Password), bcrypt.DefaultCost)
	if err != nil {
		return LoginResult{}, err
	}

	secret, err := newDeviceSecret()
	if err != nil {
		return LoginResult{}, err
	}

	user := database.User{
		Email:    info.Email,
		Password: string(hashed),
		Name:     info.Name,
		DeviceID: info.DeviceID,
	}

	device := database.Device{
		ID:     info.DeviceID,
		Name:   fmt.Sprintf("%s's Device", info.Name),
		Secret: secret,
	}

	err = a.users.CreateWithDevice(ctx, &user, &device)
	if err != nil {
		// a concurrent registration can slip past the checks above, in
		// which case the unique constraints reject the transaction
		if errors.Is(err, database.ErrAlreadyExists) {
			return LoginResult{}, ErrUserAlreadyExists
		}
		return LoginResult{}, err
	}

	return a.loginResult(user)
}

func (a *authService) Login(ctx context.Context, credentials Credentials) (LoginResult, error) {
	user, err := a.users.GetUserByEmail(ctx, credentials.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if user.DeviceID != credentials.DeviceID || user.Name != credentials.Name {
		return LoginResult{}, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(credentials.Password))
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	return a.loginResult(user)
}

// Authenticate resolves the calling principal from a bearer token.
func (a *authService) Authenticate(ctx context.Context, token string) (database.User, error) {
	verified, err := jwtauth.VerifyToken(a.tokenAuth, token)
	if err != nil {
		return database.User{}, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByID(ctx, verified.Subject())
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return database.User{}, ErrInvalidCredentials
		}
		return database.User{}, err
	}

	return user, nil
}

func (a *authService) loginResult(user database.User) (LoginResult, error) {
	claims := map[string]any{
		"sub":      user.ID,
		"email":    user.Email,
		"deviceId": user.DeviceID,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, a.config.TokenTTL)

	_, token, err := a.tokenAuth.Encode(claims)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken: token,
		User:        user,
	}, nil
}

// newDeviceSecret generates the shared secret a device uses to sign
// readings sent through the external ingestion bridge.
func newDeviceSecret() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
