package devicemanagement

import (
	"context"
	"errors"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
)

var ErrDeviceNotFound = errors.New("device not found")
var ErrDeviceAlreadyExist = errors.New("device already exists")

type DeviceManagement interface {
	CreateDevice(ctx context.Context, device database.Device) (database.Device, error)
	GetDevices(ctx context.Context, limit, offset int) ([]database.Device, error)
	GetDeviceByID(ctx context.Context, deviceID string) (database.Device, error)
	GetDeviceByUserID(ctx context.Context, userID string) (database.Device, error)
	UpdateDevice(ctx context.Context, deviceID string, fields map[string]any) (database.Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error
}

func New(devices database.DeviceRepository) DeviceManagement {
	return &deviceManagement{
		devices: devices,
	}
}

type deviceManagement struct {
	devices database.DeviceRepository
}

func (d *deviceManagement) CreateDevice(ctx context.Context, device database.Device) (database.Device, error) {
	err := d.devices.CreateDevice(ctx, &device)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return database.Device{}, ErrDeviceAlreadyExist
		}
		return database.Device{}, err
	}

	return d.devices.GetDeviceByID(ctx, device.ID)
}

func (d *deviceManagement) GetDevices(ctx context.Context, limit, offset int) ([]database.Device, error) {
	return d.devices.GetDevices(ctx, limit, offset)
}

func (d *deviceManagement) GetDeviceByID(ctx context.Context, deviceID string) (database.Device, error) {
	device, err := d.devices.GetDeviceByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return database.Device{}, ErrDeviceNotFound
		}
		return database.Device{}, err
	}

	return device, nil
}

func (d *deviceManagement) GetDeviceByUserID(ctx context.Context, userID string) (database.Device, error) {
	device, err := d.devices.GetDeviceByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return database.Device{}, ErrDeviceNotFound
		}
		return database.Device{}, err
	}

	return device, nil
}

func (d *deviceManagement) UpdateDevice(ctx context.Context, deviceID string, fields map[string]any) (database.Device, error) {
	allowed := map[string]any{}
	for k, v := range fields {
		switch k {
		case "name":
			allowed["name"] = v
		}
	}

	device, err := d.devices.UpdateDevice(ctx, deviceID, allowed)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return database.Device{}, ErrDeviceNotFound
		}
		return database.Device{}, err
	}

	return device, nil
}

func (d *deviceManagement) DeleteDevice(ctx context.Context, deviceID string) error {
	err := d.devices.DeleteDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return ErrDeviceNotFound
		}
		return err
	}

	return nil
}
