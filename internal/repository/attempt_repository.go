package repository

import (
	"context"
	"staff_training_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// ListAttempts returns the staff member's attempts for a quiz, newest first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, staffID uint, quizID, restaurantID string, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	q := r.DB.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Where("staff_id = ? AND quiz_id = ? AND restaurant_id = ?", staffID, quizID, restaurantID).
		Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

// ListAttemptsByQuiz returns every attempt of the quiz in submission order.
func (r *AttemptRepository) ListAttemptsByQuiz(ctx context.Context, quizID string) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Where("quiz_id = ?", quizID).
		Order("submitted_at").
		Find(&attempts).Error
	return attempts, err
}
