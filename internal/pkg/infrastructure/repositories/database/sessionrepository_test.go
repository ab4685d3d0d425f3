package database

import (
	"context"
	"testing"

	"github.com/matryer/is"
)

func TestCreateSessionAssignsIDAndStart(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	session := &Session{DeviceID: "band-001", Notes: "morning run"}
	err := r.CreateSession(ctx, session)
	is.NoErr(err)
	is.True(session.ID != "")
	is.True(!session.StartedAt.IsZero())

	fromDb, err := r.GetSessionByID(ctx, session.ID)
	is.NoErr(err)
	is.Equal("morning run", fromDb.Notes)
	is.True(fromDb.EndedAt == nil)
	is.True(fromDb.Device != nil)
}

func TestSecondActiveSessionIsRejected(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	err := r.CreateSession(ctx, &Session{DeviceID: "band-001"})
	is.NoErr(err)

	err = r.CreateSession(ctx, &Session{DeviceID: "band-001"})
	is.Equal(err, ErrActiveSessionExists)
}

func TestNewSessionAllowedAfterEnd(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	first := &Session{DeviceID: "band-001"}
	err := r.CreateSession(ctx, first)
	is.NoErr(err)

	_, err = r.EndSession(ctx, first.ID)
	is.NoErr(err)

	err = r.CreateSession(ctx, &Session{DeviceID: "band-001"})
	is.NoErr(err)
}

func TestEndSessionIsOneWay(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	session := &Session{DeviceID: "band-001"}
	err := r.CreateSession(ctx, session)
	is.NoErr(err)

	ended, err := r.EndSession(ctx, session.ID)
	is.NoErr(err)
	is.True(ended.EndedAt != nil)

	again, err := r.EndSession(ctx, session.ID)
	is.NoErr(err)
	is.True(again.EndedAt != nil)
	is.True(again.EndedAt.Equal(*ended.EndedAt))
}

func TestEndUnknownSession(t *testing.T) {
	is, ctx, _, r := testSetupSessionRepository(t)

	_, err := r.EndSession(ctx, "no-such-session")
	is.Equal(err, ErrSessionNotFound)
}

func TestGetActiveSessionByDeviceID(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	_, err := r.GetActiveSessionByDeviceID(ctx, "band-001")
	is.Equal(err, ErrSessionNotFound)

	session := &Session{DeviceID: "band-001"}
	err = r.CreateSession(ctx, session)
	is.NoErr(err)

	active, err := r.GetActiveSessionByDeviceID(ctx, "band-001")
	is.NoErr(err)
	is.Equal(session.ID, active.ID)

	_, err = r.EndSession(ctx, session.ID)
	is.NoErr(err)

	_, err = r.GetActiveSessionByDeviceID(ctx, "band-001")
	is.Equal(err, ErrSessionNotFound)
}

func TestUpdateSessionNotes(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	session := &Session{DeviceID: "band-001", Notes: "before"}
	err := r.CreateSession(ctx, session)
	is.NoErr(err)

	updated, err := r.UpdateSessionNotes(ctx, session.ID, "after")
	is.NoErr(err)
	is.Equal("after", updated.Notes)
}

func TestDeleteSessionDetachesReadings(t *testing.T) {
	is, ctx, conn, r := testSetupSessionRepository(t)
	seedDevice(is, ctx, conn, 1)

	readings, err := NewTelemetryRepository(conn)
	is.NoErr(err)

	session := &Session{DeviceID: "band-001"}
	err = r.CreateSession(ctx, session)
	is.NoErr(err)

	stored, _, err := readings.InsertTelemetry(ctx, &Telemetry{DeviceID: "band-001", SessionID: &session.ID})
	is.NoErr(err)

	err = r.DeleteSession(ctx, session.ID)
	is.NoErr(err)

	detached, err := readings.GetTelemetryByID(ctx, stored.ID)
	is.NoErr(err)
	is.True(detached.SessionID == nil)
}

func testSetupSessionRepository(t *testing.T) (*is.I, context.Context, ConnectorFunc, SessionRepository) {
	is, ctx, conn := setup(t)

	r, err := NewSessionRepository(conn)
	is.NoErr(err)

	return is, ctx, conn, r
}
