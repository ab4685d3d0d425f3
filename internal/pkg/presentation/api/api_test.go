package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fitband/device-mgmt/internal/pkg/application/auth"
	"github.com/fitband/device-mgmt/internal/pkg/application/devicemanagement"
	"github.com/fitband/device-mgmt/internal/pkg/application/sessiontracker"
	"github.com/fitband/device-mgmt/internal/pkg/application/telemetry"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/router"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestHealthEndpointReturns204(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, _ := testRequest(is, ts, http.MethodGet, "/health", "", nil)
	is.Equal(http.StatusNoContent, status)
}

func TestRegisterAndLogin(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/auth/register", "",
		registration("runner@example.com", "band-001"))
	is.Equal(http.StatusCreated, status)

	var registered tokenResponse
	is.NoErr(json.Unmarshal(body, &registered))
	is.True(registered.AccessToken != "")
	is.Equal("band-001", registered.User.DeviceID)

	status, body = testRequest(is, ts, http.MethodPost, "/api/v0/auth/login", "",
		registration("runner@example.com", "band-001"))
	is.Equal(http.StatusOK, status)

	var loggedIn tokenResponse
	is.NoErr(json.Unmarshal(body, &loggedIn))
	is.True(loggedIn.AccessToken != "")
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, _ := testRequest(is, ts, http.MethodPost, "/api/v0/auth/register", "",
		[]byte(`{"email":"not-an-address","password":"pw","name":"Runner","deviceID":"band-001"}`))
	is.Equal(http.StatusBadRequest, status)
}

func TestRegisterTwiceReturnsConflict(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, _ := testRequest(is, ts, http.MethodPost, "/api/v0/auth/register", "",
		registration("runner@example.com", "band-001"))
	is.Equal(http.StatusCreated, status)

	status, _ = testRequest(is, ts, http.MethodPost, "/api/v0/auth/register", "",
		registration("runner@example.com", "band-001"))
	is.Equal(http.StatusConflict, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, _ := testRequest(is, ts, http.MethodPost, "/api/v0/sessions", "",
		[]byte(`{"deviceID":"band-001"}`))
	is.Equal(http.StatusUnauthorized, status)

	status, _ = testRequest(is, ts, http.MethodPost, "/api/v0/sessions", "this-is-not-a-token",
		[]byte(`{"deviceID":"band-001"}`))
	is.Equal(http.StatusUnauthorized, status)
}

func TestGetUnknownDeviceReturns404(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	status, _ := testRequest(is, ts, http.MethodGet, "/api/v0/devices/band-404", "", nil)
	is.Equal(http.StatusNotFound, status)
}

func TestSessionLifecycle(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/sessions", token,
		[]byte(`{"deviceID":"band-001","notes":"morning run"}`))
	is.Equal(http.StatusCreated, status)

	var session sessionResponse
	is.NoErr(json.Unmarshal(body, &session))
	is.True(session.EndedAt == nil)

	// a second open for the same device collides with the active session
	status, _ = testRequest(is, ts, http.MethodPost, "/api/v0/sessions", token,
		[]byte(`{"deviceID":"band-001"}`))
	is.Equal(http.StatusConflict, status)

	status, body = testRequest(is, ts, http.MethodGet, "/api/v0/sessions/device/band-001/active", "", nil)
	is.Equal(http.StatusOK, status)

	var active sessionResponse
	is.NoErr(json.Unmarshal(body, &active))
	is.Equal(session.ID, active.ID)

	status, body = testRequest(is, ts, http.MethodPut, "/api/v0/sessions/"+session.ID+"/end", token, nil)
	is.Equal(http.StatusOK, status)

	var ended sessionResponse
	is.NoErr(json.Unmarshal(body, &ended))
	is.True(ended.EndedAt != nil)

	// closing is idempotent and keeps the original end time
	status, body = testRequest(is, ts, http.MethodPut, "/api/v0/sessions/"+session.ID+"/end", token, nil)
	is.Equal(http.StatusOK, status)

	var endedAgain sessionResponse
	is.NoErr(json.Unmarshal(body, &endedAgain))
	is.Equal(*ended.EndedAt, *endedAgain.EndedAt)

	status, body = testRequest(is, ts, http.MethodGet, "/api/v0/sessions/device/band-001/active", "", nil)
	is.Equal(http.StatusOK, status)
	is.Equal("null", string(bytes.TrimSpace(body)))
}

func TestIngestTelemetry(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token,
		reading("band-001", "msg-1", 72))
	is.Equal(http.StatusCreated, status)

	var first telemetryResponse
	is.NoErr(json.Unmarshal(body, &first))
	is.Equal(72, *first.HeartRate)

	// redelivery of the same message returns the stored row unchanged
	status, body = testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token,
		reading("band-001", "msg-1", 180))
	is.Equal(http.StatusCreated, status)

	var second telemetryResponse
	is.NoErr(json.Unmarshal(body, &second))
	is.Equal(first.ID, second.ID)
	is.Equal(72, *second.HeartRate)
}

func TestIngestReferentialFailures(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token,
		reading("band-404", "msg-1", 72))
	is.Equal(http.StatusNotFound, status)

	var errBody errorResponse
	is.NoErr(json.Unmarshal(body, &errBody))
	is.Equal("device_not_found", errBody.Reason)

	status, body = testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token,
		[]byte(fmt.Sprintf(`{"deviceID":"band-001","sessionID":"no-such-session","tsDevice":%q}`, time.Now().UTC().Format(time.RFC3339))))
	is.Equal(http.StatusNotFound, status)

	is.NoErr(json.Unmarshal(body, &errBody))
	is.Equal("session_not_found", errBody.Reason)
}

func TestIngestRejectsOutOfRangeReadings(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	for _, payload := range []string{
		`{"deviceID":"band-001","tsDevice":"not-a-timestamp"}`,
		fmt.Sprintf(`{"deviceID":"band-001","tsDevice":%q,"heartRate":300}`, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf(`{"deviceID":"band-001","tsDevice":%q,"battery":120}`, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf(`{"deviceID":"band-001","tsDevice":%q,"stepsDelta":-5}`, time.Now().UTC().Format(time.RFC3339)),
	} {
		status, _ := testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token, []byte(payload))
		is.Equal(http.StatusBadRequest, status)
	}
}

func TestPatchTelemetryEnforcesReadingBounds(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/telemetry", token,
		reading("band-001", "msg-1", 72))
	is.Equal(http.StatusCreated, status)

	var stored telemetryResponse
	is.NoErr(json.Unmarshal(body, &stored))

	// the update path holds the same line as ingest: out-of-range,
	// wrong-typed and unknown fields never reach the store
	for _, payload := range []string{
		`{"heartRate":300}`,
		`{"battery":120}`,
		`{"stepsDelta":-5}`,
		`{"heartRate":"fast"}`,
		`{"secret":"stolen"}`,
		`{}`,
	} {
		status, _ = testRequest(is, ts, http.MethodPatch, "/api/v0/telemetry/"+stored.ID, token, []byte(payload))
		is.Equal(http.StatusBadRequest, status)
	}

	status, body = testRequest(is, ts, http.MethodGet, "/api/v0/telemetry/"+stored.ID, "", nil)
	is.Equal(http.StatusOK, status)

	var unchanged telemetryResponse
	is.NoErr(json.Unmarshal(body, &unchanged))
	is.Equal(72, *unchanged.HeartRate)

	status, body = testRequest(is, ts, http.MethodPatch, "/api/v0/telemetry/"+stored.ID, token,
		[]byte(`{"heartRate":85}`))
	is.Equal(http.StatusOK, status)

	var updated telemetryResponse
	is.NoErr(json.Unmarshal(body, &updated))
	is.Equal(85, *updated.HeartRate)
}

func TestPatchDeviceRejectsUnknownFields(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, _ := testRequest(is, ts, http.MethodPatch, "/api/v0/devices/band-001", token,
		[]byte(`{"secret":"stolen"}`))
	is.Equal(http.StatusBadRequest, status)

	status, _ = testRequest(is, ts, http.MethodPatch, "/api/v0/devices/band-001", token,
		[]byte(`{}`))
	is.Equal(http.StatusBadRequest, status)

	status, body := testRequest(is, ts, http.MethodPatch, "/api/v0/devices/band-001", token,
		[]byte(`{"name":"Renamed"}`))
	is.Equal(http.StatusOK, status)

	var device struct {
		Name string `json:"name"`
	}
	is.NoErr(json.Unmarshal(body, &device))
	is.Equal("Renamed", device.Name)
}

func TestGetMyDevice(t *testing.T) {
	is, ts, _ := testSetupAPI(t)
	defer ts.Close()

	token := register(is, ts, "runner@example.com", "band-001")

	status, body := testRequest(is, ts, http.MethodGet, "/api/v0/devices/my-device", token, nil)
	is.Equal(http.StatusOK, status)

	var device struct {
		ID string `json:"id"`
	}
	is.NoErr(json.Unmarshal(body, &device))
	is.Equal("band-001", device.ID)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID       string `json:"id"`
		DeviceID string `json:"deviceID"`
	} `json:"user"`
}

type sessionResponse struct {
	ID      string  `json:"id"`
	EndedAt *string `json:"endedAt"`
}

type telemetryResponse struct {
	ID        string `json:"id"`
	HeartRate *int   `json:"heartRate"`
}

func registration(email, deviceID string) []byte {
	return []byte(fmt.Sprintf(`{"email":%q,"password":"correct horse","name":"Runner","deviceID":%q}`, email, deviceID))
}

func reading(deviceID, messageID string, heartRate int) []byte {
	return []byte(fmt.Sprintf(`{"deviceID":%q,"messageID":%q,"tsDevice":%q,"heartRate":%d}`,
		deviceID, messageID, time.Now().UTC().Format(time.RFC3339), heartRate))
}

func register(is *is.I, ts *httptest.Server, email, deviceID string) string {
	status, body := testRequest(is, ts, http.MethodPost, "/api/v0/auth/register", "", registration(email, deviceID))
	is.Equal(http.StatusCreated, status)

	var result tokenResponse
	is.NoErr(json.Unmarshal(body, &result))

	return result.AccessToken
}

func testRequest(is *is.I, ts *httptest.Server, method, path, token string, body []byte) (int, []byte) {
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	is.NoErr(err)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	is.NoErr(err)

	return resp.StatusCode, respBody
}

func testSetupAPI(t *testing.T) (*is.I, *httptest.Server, context.Context) {
	is := is.New(t)
	ctx := context.Background()

	conn := database.NewSQLiteConnector(ctx)

	users, err := database.NewUserRepository(conn)
	is.NoErr(err)

	devices, err := database.NewDeviceRepository(conn)
	is.NoErr(err)

	sessions, err := database.NewSessionRepository(conn)
	is.NoErr(err)

	readings, err := database.NewTelemetryRepository(conn)
	is.NoErr(err)

	authSvc := auth.New(users, devices, &auth.Config{TokenSecret: "test-secret", TokenTTL: time.Hour})
	deviceSvc := devicemanagement.New(devices)
	sessionSvc := sessiontracker.New(sessions, devices)
	telemetrySvc := telemetry.New(readings, devices, sessions)

	r := router.New("device-mgmt-test")
	RegisterHandlers(zerolog.Nop(), r, authSvc, deviceSvc, sessionSvc, telemetrySvc)

	return is, httptest.NewServer(r), ctx
}
