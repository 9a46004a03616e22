package model

import "gorm.io/datatypes"

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionMultiSelect  QuestionType = "multi_select"
)

type QuestionStatus string

const (
	QuestionActive        QuestionStatus = "active"
	QuestionPendingReview QuestionStatus = "pending_review"
	QuestionArchived      QuestionStatus = "archived"
)

// QuestionOption is one answer choice. IsCorrect never leaves the engine before grading.
type QuestionOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// swagger:model Question
type Question struct {
	UUIDBase
	RestaurantID string                              `gorm:"size:64;index;not null" json:"restaurantId"`
	BankID       string                              `gorm:"size:36;index" json:"bankId"`
	QuestionType QuestionType                        `gorm:"size:32;not null" json:"questionType"`
	Text         string                              `gorm:"type:text;not null" json:"text"`
	Options      datatypes.JSONSlice[QuestionOption] `json:"options"`
	Status       QuestionStatus                      `gorm:"size:32;index;default:'active'" json:"status"`
	Explanation  string                              `gorm:"type:text" json:"explanation"`
}

func (Question) TableName() string {
	return "questions"
}
