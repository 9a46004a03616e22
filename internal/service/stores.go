package service

import (
	"context"
	"staff_training_backend/internal/model"
	"time"
)

// QuestionStore returns question records; statuses filters when non-empty.
type QuestionStore interface {
	GetQuestionsByIDs(ctx context.Context, ids []string, restaurantID string, statuses ...model.QuestionStatus) ([]model.Question, error)
}

type BankStore interface {
	GetBanksByIDs(ctx context.Context, ids []string, restaurantID string) ([]model.Bank, error)
}

type QuizStore interface {
	GetQuizDefinition(ctx context.Context, id string) (*model.QuizDefinition, error)
	CreateQuiz(ctx context.Context, quiz *model.QuizDefinition) error
	SaveQuiz(ctx context.Context, quiz *model.QuizDefinition) error
	ListQuizzes(ctx context.Context, restaurantID string, onlyAvailable bool) ([]model.QuizDefinition, error)
}

// QuizAdminStore performs the destructive per-quiz operations, each in a
// single transaction.
type QuizAdminStore interface {
	ResetQuizProgress(ctx context.Context, quizID string) error
	DeleteQuizCascade(ctx context.Context, quizID string) error
}

// ProgressStore writes are version-checked: a stale expectedVersion yields
// util.ErrConcurrencyConflict and nothing is written.
type ProgressStore interface {
	GetProgress(ctx context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error)
	GetOrCreateProgress(ctx context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error)
	UpdateProgress(ctx context.Context, p *model.QuizProgress, expectedVersion int64) error
	CommitAttempt(ctx context.Context, attempt *model.QuizAttempt, p *model.QuizProgress, expectedVersion int64) error
	ListProgressByQuiz(ctx context.Context, quizID string) ([]model.QuizProgress, error)
}

type AttemptStore interface {
	ListAttempts(ctx context.Context, staffID uint, quizID, restaurantID string, limit int) ([]model.QuizAttempt, error)
	ListAttemptsByQuiz(ctx context.Context, quizID string) ([]model.QuizAttempt, error)
}

// AttemptCache remembers what the last StartAttempt presented. It is advisory:
// Get returns (nil, nil) on a miss.
type AttemptCache interface {
	Put(ctx context.Context, key model.AttemptKey, session *model.AttemptSession, ttl time.Duration) error
	Get(ctx context.Context, key model.AttemptKey) (*model.AttemptSession, error)
	Delete(ctx context.Context, key model.AttemptKey) error
}

// NopAttemptCache is used when Redis is disabled.
type NopAttemptCache struct{}

func (NopAttemptCache) Put(context.Context, model.AttemptKey, *model.AttemptSession, time.Duration) error {
	return nil
}

func (NopAttemptCache) Get(context.Context, model.AttemptKey) (*model.AttemptSession, error) {
	return nil, nil
}

func (NopAttemptCache) Delete(context.Context, model.AttemptKey) error {
	return nil
}
