package model

import (
	"fmt"
	"time"
)

// AttemptKey identifies the in-flight attempt of one staff member on one quiz.
type AttemptKey struct {
	RestaurantID string
	QuizID       string
	StaffID      uint
}

func (k AttemptKey) String() string {
	return fmt.Sprintf("quiz:attempt:%s:%s:%d", k.RestaurantID, k.QuizID, k.StaffID)
}

// AttemptSession is what StartAttempt handed out, kept until submission.
type AttemptSession struct {
	QuestionIDs []string  `json:"questionIds"`
	StartedAt   time.Time `json:"startedAt"`
}
