package repository

import (
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash retrieves a user by the hash of their API key
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	var user models.User
	err := r.db.Where("api_key_hash = ?", hash).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// TouchAPIKeyUsage refreshes the last-used timestamp for a user's API key
func (r *userRepository) TouchAPIKeyUsage(id uint, usedAt time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("api_key_last_used_at", usedAt).Error
}
