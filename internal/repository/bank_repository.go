package repository

import (
	"context"
	"staff_training_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BankRepository struct {
	DB *gorm.DB
}

func NewBankRepository(db *gorm.DB) *BankRepository {
	return &BankRepository{DB: db}
}

func (r *BankRepository) Create(ctx context.Context, bank *model.Bank) error {
	bank.QuestionCount = len(bank.QuestionIDs)
	return r.DB.WithContext(ctx).Create(bank).Error
}

// GetBanksByIDs returns the banks of restaurantID among ids; unknown ids are skipped.
func (r *BankRepository) GetBanksByIDs(ctx context.Context, ids []string, restaurantID string) ([]model.Bank, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var banks []model.Bank
	err := r.DB.WithContext(ctx).
		Where("id IN ? AND restaurant_id = ?", ids, restaurantID).
		Find(&banks).Error
	return banks, err
}

// ListBanks lists banks of a restaurant, or of every restaurant when restaurantID is empty.
func (r *BankRepository) ListBanks(ctx context.Context, restaurantID string) ([]model.Bank, error) {
	var banks []model.Bank
	q := r.DB.WithContext(ctx).Order("created_at")
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	err := q.Find(&banks).Error
	return banks, err
}

// ReplaceClaims rewrites the claimed question list and its denormalized count.
// Only the offline repair path calls this.
func (r *BankRepository) ReplaceClaims(ctx context.Context, bankID string, questionIDs []string) error {
	return r.DB.WithContext(ctx).Model(&model.Bank{}).
		Where("id = ?", bankID).
		Updates(map[string]interface{}{
			"question_ids":   datatypes.JSONSlice[string](questionIDs),
			"question_count": len(questionIDs),
		}).Error
}
