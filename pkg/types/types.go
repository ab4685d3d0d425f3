package types

import (
	"strconv"
	"time"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/samber/lo"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	DeviceID string `json:"deviceID"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"userID,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID        string     `json:"id"`
	DeviceID  string     `json:"deviceID"`
	Notes     string     `json:"notes,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
	Device    *Device    `json:"device,omitempty"`
}

// Telemetry ids are 64-bit integers in storage but serialized as strings
// at the API boundary to avoid precision loss in JSON number handling.
type Telemetry struct {
	ID        string   `json:"id"`
	DeviceID  string   `json:"deviceID"`
	SessionID *string  `json:"sessionID"`
	Device    *Device  `json:"device,omitempty"`
	Session   *Session `json:"session,omitempty"`

	TsDevice time.Time `json:"tsDevice"`
	TsServer time.Time `json:"tsServer"`

	HeartRate     *int     `json:"heartRate"`
	StepsDelta    *int     `json:"stepsDelta"`
	CaloriesDelta *float64 `json:"caloriesDelta"`
	Battery       *float64 `json:"battery"`
	Ax            *float64 `json:"ax"`
	Ay            *float64 `json:"ay"`
	Az            *float64 `json:"az"`

	MessageID *string `json:"messageID"`
}

func NewUser(u database.User) User {
	return User{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		DeviceID: u.DeviceID,
	}
}

func NewDevice(d database.Device) Device {
	return Device{
		ID:        d.ID,
		Name:      d.Name,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
	}
}

func NewDevices(devices []database.Device) []Device {
	return lo.Map(devices, func(d database.Device, _ int) Device {
		return NewDevice(d)
	})
}

func NewSession(s database.Session) Session {
	session := Session{
		ID:        s.ID,
		DeviceID:  s.DeviceID,
		Notes:     s.Notes,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}

	if s.Device != nil {
		d := NewDevice(*s.Device)
		session.Device = &d
	}

	return session
}

func NewSessions(sessions []database.Session) []Session {
	return lo.Map(sessions, func(s database.Session, _ int) Session {
		return NewSession(s)
	})
}

func NewTelemetry(t database.Telemetry) Telemetry {
	reading := Telemetry{
		ID:            strconv.FormatUint(t.ID, 10),
		DeviceID:      t.DeviceID,
		SessionID:     t.SessionID,
		TsDevice:      t.TsDevice,
		TsServer:      t.TsServer,
		HeartRate:     t.HeartRate,
		StepsDelta:    t.StepsDelta,
		CaloriesDelta: t.CaloriesDelta,
		Battery:       t.Battery,
		Ax:            t.Ax,
		Ay:            t.Ay,
		Az:            t.Az,
		MessageID:     t.MessageID,
	}

	if t.Device != nil {
		d := NewDevice(*t.Device)
		reading.Device = &d
	}

	if t.Session != nil {
		s := NewSession(*t.Session)
		reading.Session = &s
	}

	return reading
}

func NewTelemetryList(readings []database.Telemetry) []Telemetry {
	return lo.Map(readings, func(t database.Telemetry, _ int) Telemetry {
		return NewTelemetry(t)
	})
}
