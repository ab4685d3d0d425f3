package database

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TelemetryRepository interface {
	// InsertTelemetry stores the reading and returns the stored row. When
	// the reading carries a message id and a row with the same
	// (device_id, message_id) pair already exists, the existing row is
	// returned unchanged and created is false.
	InsertTelemetry(ctx context.Context, reading *Telemetry) (stored Telemetry, created bool, err error)

	GetTelemetry(ctx context.Context, limit, offset int) ([]Telemetry, error)
	GetTelemetryByID(ctx context.Context, id uint64) (Telemetry, error)
	GetTelemetryByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]Telemetry, error)
	GetLatestTelemetryByDeviceID(ctx context.Context, deviceID string) (Telemetry, error)
	GetTelemetryBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]Telemetry, error)
	UpdateTelemetry(ctx context.Context, id uint64, fields map[string]any) (Telemetry, error)
	DeleteTelemetry(ctx context.Context, id uint64) error
}

func NewTelemetryRepository(connect ConnectorFunc) (TelemetryRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = migrate(impl)
	if err != nil {
		return nil, err
	}

	return &telemetryRepository{
		db: impl,
	}, nil
}

type telemetryRepository struct {
	db *gorm.DB
}

func getTelemetryQuery(db *gorm.DB) *gorm.DB {
	return db.Preload("Device").Preload("Session")
}

func (t *telemetryRepository) InsertTelemetry(ctx context.Context, reading *Telemetry) (Telemetry, bool, error) {
	if reading.MessageID == nil {
		result := t.db.WithContext(ctx).Create(reading)
		if result.Error != nil {
			return Telemetry{}, false, result.Error
		}

		stored, err := t.GetTelemetryByID(ctx, reading.ID)
		return stored, true, err
	}

	// Insert-or-skip on the idempotency key in a single statement, so two
	// writers racing on the same message id cannot both insert. The loser
	// falls through to the fetch below and returns the winner's row.
	result := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(reading)
	if result.Error != nil {
		return Telemetry{}, false, result.Error
	}

	created := result.RowsAffected > 0
	if created {
		stored, err := t.GetTelemetryByID(ctx, reading.ID)
		return stored, true, err
	}

	var existing Telemetry
	fetch := getTelemetryQuery(t.db.WithContext(ctx)).
		Where("device_id = ? AND message_id = ?", reading.DeviceID, *reading.MessageID).
		First(&existing)
	if fetch.Error != nil {
		zerolog.Ctx(ctx).Error().Err(fetch.Error).Msg("gorm error")
		return Telemetry{}, false, ErrRepositoryError
	}

	return existing, false, nil
}

func (t *telemetryRepository) GetTelemetry(ctx context.Context, limit, offset int) ([]Telemetry, error) {
	var readings []Telemetry

	query := paginate(getTelemetryQuery(t.db.WithContext(ctx)), limit, offset)
	result := query.Order("ts_server DESC").Find(&readings)

	return readings, result.Error
}

func (t *telemetryRepository) GetTelemetryByID(ctx context.Context, id uint64) (Telemetry, error) {
	var reading Telemetry

	result := getTelemetryQuery(t.db.WithContext(ctx)).Where("id = ?", id).First(&reading)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Telemetry{}, ErrTelemetryNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Telemetry{}, ErrRepositoryError
	}

	return reading, nil
}

func (t *telemetryRepository) GetTelemetryByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]Telemetry, error) {
	var readings []Telemetry

	query := paginate(getTelemetryQuery(t.db.WithContext(ctx)), limit, offset)
	result := query.
		Where("device_id = ?", deviceID).
		Order("ts_server DESC").
		Find(&readings)

	return readings, result.Error
}

func (t *telemetryRepository) GetLatestTelemetryByDeviceID(ctx context.Context, deviceID string) (Telemetry, error) {
	var reading Telemetry

	result := getTelemetryQuery(t.db.WithContext(ctx)).
		Where("device_id = ?", deviceID).
		Order("ts_server DESC").
		First(&reading)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Telemetry{}, ErrTelemetryNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Telemetry{}, ErrRepositoryError
	}

	return reading, nil
}

func (t *telemetryRepository) GetTelemetryBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]Telemetry, error) {
	var readings []Telemetry

	query := paginate(getTelemetryQuery(t.db.WithContext(ctx)), limit, offset)
	result := query.
		Where("session_id = ?", sessionID).
		Order("ts_server DESC").
		Find(&readings)

	return readings, result.Error
}

func (t *telemetryRepository) UpdateTelemetry(ctx context.Context, id uint64, fields map[string]any) (Telemetry, error) {
	_, err := t.GetTelemetryByID(ctx, id)
	if err != nil {
		return Telemetry{}, err
	}

	if len(fields) > 0 {
		result := t.db.WithContext(ctx).Model(&Telemetry{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return Telemetry{}, result.Error
		}
	}

	return t.GetTelemetryByID(ctx, id)
}

func (t *telemetryRepository) DeleteTelemetry(ctx context.Context, id uint64) error {
	reading, err := t.GetTelemetryByID(ctx, id)
	if err != nil {
		return err
	}

	return t.db.WithContext(ctx).Delete(&Telemetry{}, reading.ID).Error
}
