package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessions(ctx context.Context, limit, offset int) ([]Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (Session, error)
	GetSessionsByDeviceID(ctx context.Context, deviceID string) ([]Session, error)
	GetActiveSessionByDeviceID(ctx context.Context, deviceID string) (Session, error)
	UpdateSessionNotes(ctx context.Context, sessionID, notes string) (Session, error)
	EndSession(ctx context.Context, sessionID string) (Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

func NewSessionRepository(connect ConnectorFunc) (SessionRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = migrate(impl)
	if err != nil {
		return nil, err
	}

	return &sessionRepository{
		db: impl,
	}, nil
}

type sessionRepository struct {
	db *gorm.DB
}

func (s *sessionRepository) CreateSession(ctx context.Context, session *Session) error {
	result := s.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		// the partial unique index on (device_id) WHERE ended_at IS NULL
		// rejects a second open session for the same device
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrActiveSessionExists
		}
		return result.Error
	}

	return nil
}

func (s *sessionRepository) GetSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	var sessions []Session

	query := paginate(s.db.WithContext(ctx).Preload("Device"), limit, offset)
	result := query.Order("started_at DESC").Find(&sessions)

	return sessions, result.Error
}

func (s *sessionRepository) GetSessionByID(ctx context.Context, sessionID string) (Session, error) {
	var session Session

	result := s.db.WithContext(ctx).Preload("Device").Where(&Session{ID: sessionID}).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Session{}, ErrSessionNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Session{}, ErrRepositoryError
	}

	return session, nil
}

func (s *sessionRepository) GetSessionsByDeviceID(ctx context.Context, deviceID string) ([]Session, error) {
	var sessions []Session

	result := s.db.WithContext(ctx).
		Preload("Device").
		Where(&Session{DeviceID: deviceID}).
		Order("started_at DESC").
		Find(&sessions)

	return sessions, result.Error
}

func (s *sessionRepository) GetActiveSessionByDeviceID(ctx context.Context, deviceID string) (Session, error) {
	var session Session

	result := s.db.WithContext(ctx).
		Preload("Device").
		Where("device_id = ? AND ended_at IS NULL", deviceID).
		Order("started_at DESC").
		First(&session)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Session{}, ErrSessionNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return Session{}, ErrRepositoryError
	}

	return session, nil
}

func (s *sessionRepository) UpdateSessionNotes(ctx context.Context, sessionID, notes string) (Session, error) {
	_, err := s.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	result := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", sessionID).
		Update("notes", notes)
	if result.Error != nil {
		return Session{}, result.Error
	}

	return s.GetSessionByID(ctx, sessionID)
}

// EndSession sets ended_at exactly once. The update is conditioned on
// ended_at IS NULL, so a repeat close leaves the recorded end time
// untouched and simply returns the stored row.
func (s *sessionRepository) EndSession(ctx context.Context, sessionID string) (Session, error) {
	result := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", time.Now().UTC())
	if result.Error != nil {
		return Session{}, result.Error
	}

	return s.GetSessionByID(ctx, sessionID)
}

func (s *sessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Delete(&session).Error
}
