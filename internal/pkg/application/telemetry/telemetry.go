package telemetry

import (
	"context"
	"errors"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
)

// The three referential failure modes of an ingest call are kept apart so
// callers can tell a missing device from a missing or mislinked session.
var ErrDeviceNotFound = errors.New("device not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrSessionDeviceMismatch = errors.New("session does not belong to device")
var ErrTelemetryNotFound = errors.New("telemetry not found")

type TelemetryService interface {
	Ingest(ctx context.Context, reading database.Telemetry) (database.Telemetry, error)

	GetTelemetry(ctx context.Context, limit, offset int) ([]database.Telemetry, error)
	GetTelemetryByID(ctx context.Context, id uint64) (database.Telemetry, error)
	GetTelemetryByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]database.Telemetry, error)
	GetLatestTelemetryByDeviceID(ctx context.Context, deviceID string) (database.Telemetry, bool, error)
	GetTelemetryBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]database.Telemetry, error)
	UpdateTelemetry(ctx context.Context, id uint64, fields map[string]any) (database.Telemetry, error)
	DeleteTelemetry(ctx context.Context, id uint64) error
}

func New(readings database.TelemetryRepository, devices database.DeviceRepository, sessions database.SessionRepository) TelemetryService {
	return &telemetryService{
		readings: readings,
		devices:  devices,
		sessions: sessions,
	}
}

type telemetryService struct {
	readings database.TelemetryRepository
	devices  database.DeviceRepository
	sessions database.SessionRepository
}

// Ingest persists a reading after checking its device and session links.
// Readings that carry a message id are deduplicated on the
// (deviceID, messageID) pair: redelivery returns the stored row unchanged,
// so retrying transports can post the same reading any number of times.
func (t *telemetryService) Ingest(ctx context.Context, reading database.Telemetry) (database.Telemetry, error) {
	_, err := t.devices.GetDeviceByID(ctx, reading.DeviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return database.Telemetry{}, ErrDeviceNotFound
		}
		return database.Telemetry{}, err
	}

	if reading.SessionID != nil {
		session, err := t.sessions.GetSessionByID(ctx, *reading.SessionID)
		if err != nil {
			if errors.Is(err, database.ErrSessionNotFound) {
				return database.Telemetry{}, ErrSessionNotFound
			}
			return database.Telemetry{}, err
		}

		if session.DeviceID != reading.DeviceID {
			return database.Telemetry{}, ErrSessionDeviceMismatch
		}
	}

	stored, _, err := t.readings.InsertTelemetry(ctx, &reading)
	if err != nil {
		return database.Telemetry{}, err
	}

	return stored, nil
}

func (t *telemetryService) GetTelemetry(ctx context.Context, limit, offset int) ([]database.Telemetry, error) {
	return t.readings.GetTelemetry(ctx, limit, offset)
}

func (t *telemetryService) GetTelemetryByID(ctx context.Context, id uint64) (database.Telemetry, error) {
	reading, err := t.readings.GetTelemetryByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrTelemetryNotFound) {
			return database.Telemetry{}, ErrTelemetryNotFound
		}
		return database.Telemetry{}, err
	}

	return reading, nil
}

func (t *telemetryService) GetTelemetryByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]database.Telemetry, error) {
	return t.readings.GetTelemetryByDeviceID(ctx, deviceID, limit, offset)
}

func (t *telemetryService) GetLatestTelemetryByDeviceID(ctx context.Context, deviceID string) (database.Telemetry, bool, error) {
	reading, err := t.readings.GetLatestTelemetryByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrTelemetryNotFound) {
			return database.Telemetry{}, false, nil
		}
		return database.Telemetry{}, false, err
	}

	return reading, true, nil
}

func (t *telemetryService) GetTelemetryBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]database.Telemetry, error) {
	return t.readings.GetTelemetryBySessionID(ctx, sessionID, limit, offset)
}

func (t *telemetryService) UpdateTelemetry(ctx context.Context, id uint64, fields map[string]any) (database.Telemetry, error) {
	reading, err := t.readings.UpdateTelemetry(ctx, id, fields)
	if err != nil {
		if errors.Is(err, database.ErrTelemetryNotFound) {
			return database.Telemetry{}, ErrTelemetryNotFound
		}
		return database.Telemetry{}, err
	}

	return reading, nil
}

func (t *telemetryService) DeleteTelemetry(ctx context.Context, id uint64) error {
	err := t.readings.DeleteTelemetry(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrTelemetryNotFound) {
			return ErrTelemetryNotFound
		}
		return err
	}

	return nil
}
