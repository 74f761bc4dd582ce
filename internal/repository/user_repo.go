package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByPhone(phone string) (*model.User, error) {
	var user model.User
	err := r.db.Where("phone = ?", phone).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByPhone returns the user for a channel address, creating
// the row on first contact.
func (r *UserRepository) GetOrCreateByPhone(phone, name string) (*model.User, error) {
	var user model.User
	err := r.db.Where(model.User{Phone: phone}).
		Attrs(model.User{
			Name:              name,
			SubscriptionLevel: model.TierFree,
			Timezone:          "UTC",
			LastActiveAt:      time.Now(),
			IsActive:          true,
		}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) TouchActivity(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("last_active_at", time.Now()).Error
}

// ListActiveSince returns active users with activity after the cutoff.
func (r *UserRepository) ListActiveSince(cutoff time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.Where("is_active = ? AND last_active_at >= ?", true, cutoff).
		Find(&users).Error
	return users, err
}

// ListActive returns all non-deactivated users.
func (r *UserRepository) ListActive() ([]model.User, error) {
	var users []model.User
	err := r.db.Where("is_active = ?", true).Find(&users).Error
	return users, err
}

func (r *UserRepository) Deactivate(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("is_active", false).Error
}
