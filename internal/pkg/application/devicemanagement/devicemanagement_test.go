package devicemanagement

import (
	"context"
	"testing"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/matryer/is"
)

func TestCreateDeviceRejectsDuplicates(t *testing.T) {
	is, ctx, svc := testSetupDeviceManagement(t)

	_, err := svc.CreateDevice(ctx, database.Device{ID: "band-001", Name: "Band"})
	is.NoErr(err)

	_, err = svc.CreateDevice(ctx, database.Device{ID: "band-001", Name: "Band"})
	is.Equal(err, ErrDeviceAlreadyExist)
}

func TestUpdateDeviceOnlyTouchesName(t *testing.T) {
	is, ctx, svc := testSetupDeviceManagement(t)

	created, err := svc.CreateDevice(ctx, database.Device{ID: "band-001", Name: "Band", UserID: "user-1"})
	is.NoErr(err)

	updated, err := svc.UpdateDevice(ctx, "band-001", map[string]any{
		"name":    "Renamed",
		"user_id": "user-2",
		"secret":  "stolen",
	})
	is.NoErr(err)
	is.Equal("Renamed", updated.Name)
	is.Equal(created.UserID, updated.UserID)
	is.Equal(created.Secret, updated.Secret)
}

func TestUpdateUnknownDevice(t *testing.T) {
	is, ctx, svc := testSetupDeviceManagement(t)

	_, err := svc.UpdateDevice(ctx, "band-404", map[string]any{"name": "Renamed"})
	is.Equal(err, ErrDeviceNotFound)
}

func testSetupDeviceManagement(t *testing.T) (*is.I, context.Context, DeviceManagement) {
	is := is.New(t)
	ctx := context.Background()

	devices, err := database.NewDeviceRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, New(devices)
}
