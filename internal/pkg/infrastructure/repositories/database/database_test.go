package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/matryer/is"
)

func setup(t *testing.T) (*is.I, context.Context, ConnectorFunc) {
	is := is.New(t)
	ctx := context.Background()
	conn := NewSQLiteConnector(ctx)

	return is, ctx, conn
}

func testDevice(n int) *Device {
	return &Device{
		ID:     fmt.Sprintf("band-%03d", n),
		Name:   fmt.Sprintf("Band %d", n),
		Secret: fmt.Sprintf("secret-%03d", n),
	}
}

func seedDevice(is *is.I, ctx context.Context, conn ConnectorFunc, n int) Device {
	devices, err := NewDeviceRepository(conn)
	is.NoErr(err)

	device := testDevice(n)
	err = devices.CreateDevice(ctx, device)
	is.NoErr(err)

	return *device
}
