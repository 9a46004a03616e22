package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"staff_training_backend/internal/model"
)

// AnswerGiven is the option id (single choice, true/false) or option id set
// (multi select) chosen by the staff member. JSON accepts a string or an array.
type AnswerGiven []string

func (a *AnswerGiven) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AnswerGiven{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("answer must be an option id or a list of option ids: %w", err)
	}
	*a = list
	return nil
}

func (a AnswerGiven) set() map[string]struct{} {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	return set
}

type gradeStrategy interface {
	grade(q *model.Question, answer AnswerGiven) bool
}

// Grader routes by question type. Truth always comes from the question record.
type Grader struct {
	strategies map[model.QuestionType]gradeStrategy
}

func NewGrader() *Grader {
	return &Grader{
		strategies: map[model.QuestionType]gradeStrategy{
			model.QuestionSingleChoice: singleChoiceStrategy{},
			model.QuestionTrueFalse:    singleChoiceStrategy{},
			model.QuestionMultiSelect:  multiSelectStrategy{},
		},
	}
}

// Grade reports whether answer is correct. Unknown question types and
// unknown option ids are simply incorrect.
func (g *Grader) Grade(q *model.Question, answer AnswerGiven) bool {
	s, ok := g.strategies[q.QuestionType]
	if !ok {
		return false
	}
	return s.grade(q, answer)
}

// CorrectAnswer returns the ids and display texts of the correct options.
func (g *Grader) CorrectAnswer(q *model.Question) (ids []string, texts []string) {
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
			texts = append(texts, o.Text)
		}
	}
	return ids, texts
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) grade(q *model.Question, answer AnswerGiven) bool {
	given := answer.set()
	if len(given) != 1 {
		return false
	}
	for _, o := range q.Options {
		if !o.IsCorrect {
			continue
		}
		if _, ok := given[o.ID]; ok {
			return true
		}
	}
	return false
}

type multiSelectStrategy struct{}

func (multiSelectStrategy) grade(q *model.Question, answer AnswerGiven) bool {
	correct := make(map[string]struct{})
	for _, o := range q.Options {
		if o.IsCorrect {
			correct[o.ID] = struct{}{}
		}
	}
	given := answer.set()
	if len(given) != len(correct) {
		return false
	}
	for id := range given {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}
