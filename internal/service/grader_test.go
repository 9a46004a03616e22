package service

import (
	"encoding/json"
	"staff_training_backend/internal/model"
	"testing"
)

func question(qt model.QuestionType, correct ...string) *model.Question {
	s := newMemStore()
	s.addQuestion("q", testRestaurant, qt, model.QuestionActive, correct...)
	q := s.questions["q"]
	return &q
}

func TestGrader_SingleChoice(t *testing.T) {
	g := NewGrader()
	q := question(model.QuestionSingleChoice, "b")

	cases := []struct {
		name   string
		answer AnswerGiven
		want   bool
	}{
		{"correct", AnswerGiven{"b"}, true},
		{"wrong", AnswerGiven{"a"}, false},
		{"unknown option", AnswerGiven{"zz"}, false},
		{"empty", nil, false},
		{"two options", AnswerGiven{"a", "b"}, false},
		{"repeated correct", AnswerGiven{"b", "b"}, true},
	}
	for _, tc := range cases {
		if got := g.Grade(q, tc.answer); got != tc.want {
			t.Errorf("%s: Grade(%v) = %v, want %v", tc.name, tc.answer, got, tc.want)
		}
	}
}

func TestGrader_TrueFalse(t *testing.T) {
	g := NewGrader()
	q := question(model.QuestionTrueFalse, "a")
	if !g.Grade(q, AnswerGiven{"a"}) {
		t.Fatalf("expected true option to be correct")
	}
	if g.Grade(q, AnswerGiven{"b"}) {
		t.Fatalf("expected false option to be incorrect")
	}
}

func TestGrader_MultiSelectSetEquality(t *testing.T) {
	g := NewGrader()
	q := question(model.QuestionMultiSelect, "a", "c")

	cases := []struct {
		name   string
		answer AnswerGiven
		want   bool
	}{
		{"exact", AnswerGiven{"a", "c"}, true},
		{"exact reordered", AnswerGiven{"c", "a"}, true},
		{"proper subset", AnswerGiven{"a"}, false},
		{"proper superset", AnswerGiven{"a", "b", "c"}, false},
		{"disjoint", AnswerGiven{"b", "d"}, false},
		{"same size different members", AnswerGiven{"a", "b"}, false},
		{"empty", AnswerGiven{}, false},
	}
	for _, tc := range cases {
		if got := g.Grade(q, tc.answer); got != tc.want {
			t.Errorf("%s: Grade(%v) = %v, want %v", tc.name, tc.answer, got, tc.want)
		}
	}
}

func TestGrader_UnknownTypeIsIncorrect(t *testing.T) {
	g := NewGrader()
	q := question(model.QuestionType("essay"), "a")
	if g.Grade(q, AnswerGiven{"a"}) {
		t.Fatalf("unknown question types must never grade as correct")
	}
}

func TestGrader_CorrectAnswer(t *testing.T) {
	ids, texts := NewGrader().CorrectAnswer(question(model.QuestionMultiSelect, "b", "d"))
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "d" {
		t.Fatalf("ids = %v", ids)
	}
	if texts[0] != "option b" || texts[1] != "option d" {
		t.Fatalf("texts = %v", texts)
	}
}

func TestAnswerGiven_UnmarshalJSON(t *testing.T) {
	var body struct {
		Single AnswerGiven `json:"single"`
		Multi  AnswerGiven `json:"multi"`
		Null   AnswerGiven `json:"null"`
	}
	if err := json.Unmarshal([]byte(`{"single":"a","multi":["b","c"],"null":null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Single) != 1 || body.Single[0] != "a" {
		t.Fatalf("single = %v", body.Single)
	}
	if len(body.Multi) != 2 || body.Multi[1] != "c" {
		t.Fatalf("multi = %v", body.Multi)
	}
	if body.Null != nil {
		t.Fatalf("null = %v", body.Null)
	}

	var bad AnswerGiven
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for numeric answer")
	}
}
