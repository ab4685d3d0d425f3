package database

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type DeviceRepository interface {
	CreateDevice(ctx context.Context, device *Device) error
	GetDevices(ctx context.Context, limit, offset int) ([]Device, error)
	GetDeviceByID(ctx context.Context, deviceID string) (Device, error)
	GetDeviceByUserID(ctx context.Context, userID string) (Device, error)
	UpdateDevice(ctx context.Context, deviceID string, fields map[string]any) (Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error
}

func NewDeviceRepository(connect ConnectorFunc) (DeviceRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = migrate(impl)
	if err != nil {
		return nil, err
	}

	return &deviceRepository{
		db: impl,
	}, nil
}

type deviceRepository struct {
	db *gorm.DB
}

func (d *deviceRepository) CreateDevice(ctx context.Context, device *Device) error {
	result := d.db.WithContext(ctx).Create(device)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return result.Error
	}

	return nil
}

func (d *deviceRepository) GetDevices(ctx context.Context, limit, offset int) ([]Device, error) {
	var devices []Device

	query := paginate(d.db.WithContext(ctx), limit, offset)
	result := query.Order("created_at DESC").Find(&devices)

	return devices, result.Error
}

func (d *deviceRepository) GetDeviceByID(ctx context.Context, deviceID string) (Device, error) {
	var device Device

	result := d.db.WithContext(ctx).Where(&Device{ID: deviceID}).First(&device)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Device{}, ErrDeviceNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Device{}, ErrRepositoryError
	}

	return device, nil
}

func (d *deviceRepository) GetDeviceByUserID(ctx context.Context, userID string) (Device, error) {
	var device Device

	result := d.db.WithContext(ctx).Where(&Device{UserID: userID}).First(&device)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Device{}, ErrDeviceNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Device{}, ErrRepositoryError
	}

	return device, nil
}

func (d *deviceRepository) UpdateDevice(ctx context.Context, deviceID string, fields map[string]any) (Device, error) {
	device, err := d.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return Device{}, err
	}

	if len(fields) > 0 {
		result := d.db.WithContext(ctx).Model(&device).Updates(fields)
		if result.Error != nil {
			return Device{}, result.Error
		}
	}

	return d.GetDeviceByID(ctx, deviceID)
}

func (d *deviceRepository) DeleteDevice(ctx context.Context, deviceID string) error {
	device, err := d.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return err
	}

	return d.db.WithContext(ctx).Delete(&device).Error
}
