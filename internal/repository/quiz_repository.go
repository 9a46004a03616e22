package repository

import (
	"context"
	"errors"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) GetQuizDefinition(ctx context.Context, id string) (*model.QuizDefinition, error) {
	var quiz model.QuizDefinition
	err := r.DB.WithContext(ctx).First(&quiz, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz *model.QuizDefinition) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) SaveQuiz(ctx context.Context, quiz *model.QuizDefinition) error {
	return r.DB.WithContext(ctx).Save(quiz).Error
}

// ListQuizzes lists quizzes of a restaurant (all restaurants when empty).
func (r *QuizRepository) ListQuizzes(ctx context.Context, restaurantID string, onlyAvailable bool) ([]model.QuizDefinition, error) {
	var quizzes []model.QuizDefinition
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	if onlyAvailable {
		q = q.Where("is_available = ?", true)
	}
	err := q.Find(&quizzes).Error
	return quizzes, err
}

// ResetQuizProgress clears every progress record of the quiz and deletes its
// attempts in one transaction.
func (r *QuizRepository) ResetQuizProgress(ctx context.Context, quizID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAttemptsTx(tx, quizID); err != nil {
			return err
		}
		return tx.Model(&model.QuizProgress{}).
			Where("quiz_id = ?", quizID).
			Updates(map[string]interface{}{
				"seen_question_ids": emptySeen(),
				"is_complete":       false,
				"version":           gorm.Expr("version + 1"),
			}).Error
	})
}

// DeleteQuizCascade removes attempts, progress and the quiz definition together.
func (r *QuizRepository) DeleteQuizCascade(ctx context.Context, quizID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAttemptsTx(tx, quizID); err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizProgress{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id = ?", quizID).Delete(&model.QuizDefinition{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrQuizNotFound
		}
		return nil
	})
}

func deleteAttemptsTx(tx *gorm.DB, quizID string) error {
	if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizAttemptAnswer{}).Error; err != nil {
		return err
	}
	return tx.Where("quiz_id = ?", quizID).Delete(&model.QuizAttempt{}).Error
}
