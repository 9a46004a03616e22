package model

import "gorm.io/datatypes"

// Bank is a named collection of questions. QuestionIDs is what the bank claims to
// contain; it may reference questions that no longer exist or are not active.
// swagger:model Bank
type Bank struct {
	UUIDBase
	RestaurantID  string                      `gorm:"size:64;index;not null" json:"restaurantId"`
	Name          string                      `gorm:"size:255;not null" json:"name"`
	QuestionIDs   datatypes.JSONSlice[string] `json:"questionIds"`
	QuestionCount int                         `gorm:"default:0" json:"questionCount"`
}

func (Bank) TableName() string {
	return "question_banks"
}
