package database

import (
	"errors"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")
var ErrDeviceNotFound = errors.New("device not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrTelemetryNotFound = errors.New("telemetry not found")
var ErrAlreadyExists = errors.New("record already exists")
var ErrActiveSessionExists = errors.New("device already has an active session")
var ErrRepositoryError = errors.New("could not fetch data from repository")

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&User{}, &Device{}, &Session{}, &Telemetry{})
	if err != nil {
		return err
	}

	// gorm tags cannot express a predicate, so the one-open-session-per-device
	// constraint is created by hand. Works on both postgres and sqlite.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active ON sessions (device_id) WHERE ended_at IS NULL`,
	).Error
}

func paginate(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
