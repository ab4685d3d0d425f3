package sessiontracker

import (
	"context"
	"errors"

	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
)

var ErrDeviceNotFound = errors.New("device not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrActiveSessionExists = errors.New("device already has an active session")

type SessionTracker interface {
	Open(ctx context.Context, deviceID, notes string) (database.Session, error)
	End(ctx context.Context, sessionID string) (database.Session, error)
	FindActive(ctx context.Context, deviceID string) (database.Session, bool, error)

	GetSessions(ctx context.Context, limit, offset int) ([]database.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (database.Session, error)
	GetSessionsByDeviceID(ctx context.Context, deviceID string) ([]database.Session, error)
	UpdateNotes(ctx context.Context, sessionID, notes string) (database.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

func New(sessions database.SessionRepository, devices database.DeviceRepository) SessionTracker {
	return &sessionTracker{
		sessions: sessions,
		devices:  devices,
	}
}

type sessionTracker struct {
	sessions database.SessionRepository
	devices  database.DeviceRepository
}

func (s *sessionTracker) Open(ctx context.Context, deviceID, notes string) (database.Session, error) {
	_, err := s.devices.GetDeviceByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return database.Session{}, ErrDeviceNotFound
		}
		return database.Session{}, err
	}

	session := database.Session{
		DeviceID: deviceID,
		Notes:    notes,
	}

	err = s.sessions.CreateSession(ctx, &session)
	if err != nil {
		if errors.Is(err, database.ErrActiveSessionExists) {
			return database.Session{}, ErrActiveSessionExists
		}
		return database.Session{}, err
	}

	return s.sessions.GetSessionByID(ctx, session.ID)
}

// End closes the session. The transition is one-way: closing an already
// closed session returns the stored row with its original end time.
func (s *sessionTracker) End(ctx context.Context, sessionID string) (database.Session, error) {
	session, err := s.sessions.EndSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, err
	}

	return session, nil
}

func (s *sessionTracker) FindActive(ctx context.Context, deviceID string) (database.Session, bool, error) {
	session, err := s.sessions.GetActiveSessionByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return database.Session{}, false, nil
		}
		return database.Session{}, false, err
	}

	return session, true, nil
}

func (s *sessionTracker) GetSessions(ctx context.Context, limit, offset int) ([]database.Session, error) {
	return s.sessions.GetSessions(ctx, limit, offset)
}

func (s *sessionTracker) GetSessionByID(ctx context.Context, sessionID string) (database.Session, error) {
	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, err
	}

	return session, nil
}

func (s *sessionTracker) GetSessionsByDeviceID(ctx context.Context, deviceID string) ([]database.Session, error) {
	return s.sessions.GetSessionsByDeviceID(ctx, deviceID)
}

func (s *sessionTracker) UpdateNotes(ctx context.Context, sessionID, notes string) (database.Session, error) {
	session, err := s.sessions.UpdateSessionNotes(ctx, sessionID, notes)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, err
	}

	return session, nil
}

func (s *sessionTracker) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	return nil
}
