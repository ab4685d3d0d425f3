package database

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type UserRepository interface {
	CreateWithDevice(ctx context.Context, user *User, device *Device) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

func NewUserRepository(connect ConnectorFunc) (UserRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = migrate(impl)
	if err != nil {
		return nil, err
	}

	return &userRepository{
		db: impl,
	}, nil
}

type userRepository struct {
	db *gorm.DB
}

// CreateWithDevice inserts the user and their device in a single
// transaction so that a failed device insert never leaves an orphaned user.
func (u *userRepository) CreateWithDevice(ctx context.Context, user *User, device *Device) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		// the user id is assigned on insert, so the back-reference can
		// only be set here
		device.UserID = user.ID

		return tx.Create(device).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (u *userRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User

	result := u.db.WithContext(ctx).Where(&User{Email: email}).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return User{}, ErrRepositoryError
	}

	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User

	result := u.db.WithContext(ctx).Where(&User{ID: id}).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		zerolog.Ctx(ctx).Error().Err(result.Error).Msg("gorm error")

		return User{}, ErrRepositoryError
	}

	return user, nil
}
