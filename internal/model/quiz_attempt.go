package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt is an immutable record of one graded submission.
// swagger:model QuizAttempt
type QuizAttempt struct {
	RecordBase
	StaffID         uint                `gorm:"index:idx_attempt_staff_quiz;not null" json:"staffId"`
	QuizID          string              `gorm:"size:36;index:idx_attempt_staff_quiz;index;not null" json:"quizId"`
	RestaurantID    string              `gorm:"size:64;index;not null" json:"restaurantId"`
	Score           int                 `json:"score"`
	Total           int                 `json:"total"`
	SubmittedAt     time.Time           `json:"submittedAt"`
	DurationSeconds *int                `json:"durationSeconds,omitempty"`
	Answers         []QuizAttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizAttemptAnswer stores one graded answer of an attempt, in submission order.
type QuizAttemptAnswer struct {
	ID         uint                        `gorm:"primaryKey;autoIncrement" json:"-"`
	AttemptID  string                      `gorm:"size:36;index;not null" json:"attemptId"`
	QuizID     string                      `gorm:"size:36;index;not null" json:"-"`
	Position   int                         `json:"position"`
	QuestionID string                      `gorm:"size:36;not null" json:"questionId"`
	Answer     datatypes.JSONSlice[string] `json:"answer"`
	IsCorrect  bool                        `json:"isCorrect"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
