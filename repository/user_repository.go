package repository

import (
	"context"
	"errors"
	"strings"

	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRepository interface {
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (uint, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type userRepository struct {
	db         *gorm.DB
	log        *logger.Logger
	bcryptCost int
}

func NewUserRepository(db *gorm.DB, log *logger.Logger, bcryptCost int) UserRepository {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userRepository{db: db, log: log, bcryptCost: bcryptCost}
}

// Register inserts a new user. Uniqueness of username and email is left to
// the storage constraints so there is no gap between check and insert.
func (r *userRepository) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, invalid("username, password and email are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, invalid("password is too long")
		}
		r.log.Error("Failed to hash password", logger.ErrorField(err))
		return nil, ErrStorage
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		r.log.Error("Failed to create user", logger.ErrorField(err), logger.StringField("username", username))
		return nil, ErrStorage
	}

	return &user, nil
}

func (r *userRepository) Authenticate(ctx context.Context, username, password string) (uint, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidCredentials
		}
		r.log.Error("Failed to look up user", logger.ErrorField(err))
		return 0, ErrStorage
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}
	return user.ID, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		r.log.Error("Failed to get user", logger.ErrorField(err), logger.UintField("user_id", id))
		return nil, ErrStorage
	}
	return &user, nil
}
