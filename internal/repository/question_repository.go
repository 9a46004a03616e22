package repository

import (
	"context"
	"staff_training_backend/internal/model"

	"gorm.io/gorm"
)

// inChunk bounds the size of IN (...) lists sent to the database.
const inChunk = 500

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) UpdateStatus(ctx context.Context, id string, status model.QuestionStatus) error {
	return r.DB.WithContext(ctx).Model(&model.Question{}).Where("id = ?", id).Update("status", status).Error
}

// GetQuestionsByIDs returns the questions of restaurantID among ids. When
// statuses is non-empty only questions in one of them are returned. Missing
// ids are not an error.
func (r *QuestionRepository) GetQuestionsByIDs(ctx context.Context, ids []string, restaurantID string, statuses ...model.QuestionStatus) ([]model.Question, error) {
	result := make([]model.Question, 0, len(ids))
	for start := 0; start < len(ids); start += inChunk {
		end := start + inChunk
		if end > len(ids) {
			end = len(ids)
		}

		q := r.DB.WithContext(ctx).
			Where("id IN ?", ids[start:end]).
			Where("restaurant_id = ?", restaurantID)
		if len(statuses) > 0 {
			q = q.Where("status IN ?", statuses)
		}

		var chunk []model.Question
		if err := q.Find(&chunk).Error; err != nil {
			return nil, err
		}
		result = append(result, chunk...)
	}
	return result, nil
}
