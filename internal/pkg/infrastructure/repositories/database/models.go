package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Password string `json:"-"`
	Name     string `json:"name"`
	DeviceID string `gorm:"uniqueIndex" json:"deviceID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Device identifiers are assigned by the client at registration so that
// a unit can be pre-provisioned before its owner signs up.
type Device struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `json:"name"`
	Secret string `json:"-"`
	UserID string `gorm:"index" json:"userID"`

	Sessions  []Session   `gorm:"constraint:OnDelete:CASCADE" json:"sessions,omitempty"`
	Telemetry []Telemetry `gorm:"constraint:OnDelete:CASCADE" json:"telemetry,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID       string  `gorm:"primaryKey" json:"id"`
	DeviceID string  `gorm:"index;not null" json:"deviceID"`
	Device   *Device `json:"device,omitempty"`
	Notes    string  `json:"notes,omitempty"`

	// the session link on a reading is optional, so deleting a session
	// detaches its readings instead of removing them
	Telemetry []Telemetry `gorm:"constraint:OnDelete:SET NULL" json:"telemetry,omitempty"`

	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	return nil
}

type Telemetry struct {
	ID        uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID  string   `gorm:"not null;index;uniqueIndex:idx_telemetry_device_message" json:"deviceID"`
	Device    *Device  `json:"device,omitempty"`
	SessionID *string  `gorm:"index" json:"sessionID"`
	Session   *Session `json:"session,omitempty"`

	TsDevice time.Time `gorm:"not null" json:"tsDevice"`
	TsServer time.Time `gorm:"index" json:"tsServer"`

	HeartRate     *int     `json:"heartRate"`
	StepsDelta    *int     `json:"stepsDelta"`
	CaloriesDelta *float64 `json:"caloriesDelta"`
	Battery       *float64 `json:"battery"`
	Ax            *float64 `json:"ax"`
	Ay            *float64 `json:"ay"`
	Az            *float64 `json:"az"`

	// MessageID pairs with DeviceID as the idempotency key. Rows without
	// a message id never collide since NULLs are distinct in the index.
	MessageID *string `gorm:"uniqueIndex:idx_telemetry_device_message" json:"messageID"`
}

func (t *Telemetry) BeforeCreate(tx *gorm.DB) (err error) {
	if t.TsServer.IsZero() {
		t.TsServer = time.Now().UTC()
	}
	return nil
}
