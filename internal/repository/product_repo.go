package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *ProductRepository) GetByID(id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.Where("id = ?", id).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) ListByUser(userID int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.Where("user_id = ?", userID).
		Order("expiry_at ASC").
		Find(&products).Error
	return products, err
}

// ListExpiringWithin returns the user's products whose calendar
// days-left fall in [0, days], soonest first. The bounds follow
// Product.DaysLeft: anything expiring later today counts as day 0,
// already-expired products are excluded.
func (r *ProductRepository) ListExpiringWithin(userID int64, days int, now time.Time) ([]model.Product, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, days+1)
	var products []model.Product
	err := r.db.Where("user_id = ? AND expiry_at >= ? AND expiry_at < ?", userID, from, to).
		Order("expiry_at ASC").
		Find(&products).Error
	return products, err
}

// MatchByName performs a case-insensitive substring match against the
// user's inventory, in either direction ("leche" matches "Leche entera"
// and vice versa).
func (r *ProductRepository) MatchByName(userID int64, name string) ([]model.Product, error) {
	products, err := r.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var matches []model.Product
	for _, p := range products {
		have := strings.ToLower(p.Name)
		if strings.Contains(have, needle) || strings.Contains(needle, have) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (r *ProductRepository) Delete(id int64) error {
	return r.db.Delete(&model.Product{}, id).Error
}

func (r *ProductRepository) CountByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Product{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
