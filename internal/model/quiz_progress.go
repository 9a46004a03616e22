package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizProgress is the per (staff, quiz, restaurant) record of seen questions.
// Version is checked and incremented on every write.
// swagger:model QuizProgress
type QuizProgress struct {
	RecordBase
	StaffID         uint                        `gorm:"uniqueIndex:idx_progress_staff_quiz;not null" json:"staffId"`
	QuizID          string                      `gorm:"size:36;uniqueIndex:idx_progress_staff_quiz;index;not null" json:"quizId"`
	RestaurantID    string                      `gorm:"size:64;uniqueIndex:idx_progress_staff_quiz;not null" json:"restaurantId"`
	SeenQuestionIDs datatypes.JSONSlice[string] `json:"seenQuestionIds"`
	PoolSizeKnown   int                         `gorm:"default:0" json:"poolSizeKnown"`
	IsComplete      bool                        `gorm:"default:false" json:"isComplete"`
	LastAttemptAt   *time.Time                  `json:"lastAttemptAt,omitempty"`
	Version         int64                       `gorm:"not null;default:0" json:"-"`
}

func (QuizProgress) TableName() string {
	return "quiz_progress"
}

// SeenSet returns the seen question ids as a set.
func (p *QuizProgress) SeenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.SeenQuestionIDs))
	for _, id := range p.SeenQuestionIDs {
		set[id] = struct{}{}
	}
	return set
}
