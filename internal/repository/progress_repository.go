package repository

import (
	"context"
	"errors"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func emptySeen() datatypes.JSONSlice[string] {
	return datatypes.JSONSlice[string]{}
}

func (r *ProgressRepository) GetProgress(ctx context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error) {
	return findProgress(r.DB.WithContext(ctx), staffID, quizID, restaurantID)
}

func findProgress(db *gorm.DB, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error) {
	var p model.QuizProgress
	err := db.Where("staff_id = ? AND quiz_id = ? AND restaurant_id = ?", staffID, quizID, restaurantID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProgress returns the progress record, inserting an empty one
// first when absent. Concurrent callers converge on the same row.
func (r *ProgressRepository) GetOrCreateProgress(ctx context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error) {
	db := r.DB.WithContext(ctx)
	p, err := findProgress(db, staffID, quizID, restaurantID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, util.ErrProgressNotFound) {
		return nil, err
	}

	fresh := &model.QuizProgress{
		StaffID:         staffID,
		QuizID:          quizID,
		RestaurantID:    restaurantID,
		SeenQuestionIDs: emptySeen(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh).Error; err != nil {
		return nil, err
	}
	return findProgress(db, staffID, quizID, restaurantID)
}

// UpdateProgress writes p if the stored version still equals expectedVersion.
// On success p.Version is advanced; otherwise ErrConcurrencyConflict is returned.
func (r *ProgressRepository) UpdateProgress(ctx context.Context, p *model.QuizProgress, expectedVersion int64) error {
	if err := updateProgressTx(r.DB.WithContext(ctx), p, expectedVersion); err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

// CommitAttempt persists the attempt and the progress update atomically.
func (r *ProgressRepository) CommitAttempt(ctx context.Context, attempt *model.QuizAttempt, p *model.QuizProgress, expectedVersion int64) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateProgressTx(tx, p, expectedVersion); err != nil {
			return err
		}
		return tx.Create(attempt).Error
	})
	if err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

func updateProgressTx(tx *gorm.DB, p *model.QuizProgress, expectedVersion int64) error {
	seen := p.SeenQuestionIDs
	if seen == nil {
		seen = emptySeen()
	}
	res := tx.Model(&model.QuizProgress{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Updates(map[string]interface{}{
			"seen_question_ids": seen,
			"pool_size_known":   p.PoolSizeKnown,
			"is_complete":       p.IsComplete,
			"last_attempt_at":   p.LastAttemptAt,
			"version":           expectedVersion + 1,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrConcurrencyConflict
	}
	return nil
}

func (r *ProgressRepository) ListProgressByQuiz(ctx context.Context, quizID string) ([]model.QuizProgress, error) {
	var list []model.QuizProgress
	err := r.DB.WithContext(ctx).Where("quiz_id = ?", quizID).Order("staff_id").Find(&list).Error
	return list, err
}
