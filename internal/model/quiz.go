package model

import "gorm.io/datatypes"

// QuizDefinition holds quiz configuration. PoolSizeSnapshot is a cache of the
// number of unique active questions across SourceBankIDs at last recompute.
// swagger:model QuizDefinition
type QuizDefinition struct {
	UUIDBase
	RestaurantID     string                      `gorm:"size:64;index;not null" json:"restaurantId"`
	Title            string                      `gorm:"size:255;not null" json:"title"`
	Description      string                      `gorm:"type:text" json:"description"`
	SourceBankIDs    datatypes.JSONSlice[string] `json:"sourceBankIds"`
	AttemptSize      int                         `gorm:"not null;default:1" json:"attemptSize"`
	PoolSizeSnapshot int                         `gorm:"default:0" json:"poolSizeSnapshot"`
	IsAvailable      bool                        `gorm:"default:false" json:"isAvailable"`
	TargetRoles      datatypes.JSONSlice[string] `json:"targetRoles"`
}

func (QuizDefinition) TableName() string {
	return "quiz_definitions"
}

// TargetsRole reports whether staff with the given role may take the quiz.
// An empty target list opens the quiz to every role.
func (q *QuizDefinition) TargetsRole(role string) bool {
	if len(q.TargetRoles) == 0 {
		return true
	}
	for _, r := range q.TargetRoles {
		if r == role {
			return true
		}
	}
	return false
}
