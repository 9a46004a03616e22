package service

import (
	"context"
	"reflect"
	"staff_training_backend/internal/model"
	"testing"
)

func TestBankRepairService_Run(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	store.addQuestion("old", testRestaurant, model.QuestionSingleChoice, model.QuestionArchived, "a")
	store.addBank("A", testRestaurant, "Q1", "old", "ghost", "Q2")
	store.addQuiz("big", testRestaurant, 3, "A")
	quizzes := newTestQuizService(store, nil)

	report, err := NewBankRepairService(store, store, quizzes).Run(ctx, testRestaurant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := []string(store.banks["A"].QuestionIDs); !reflect.DeepEqual(got, []string{"Q1", "Q2"}) {
		t.Fatalf("bank A claims = %v", got)
	}
	if store.banks["A"].QuestionCount != 2 {
		t.Fatalf("bank A count = %d", store.banks["A"].QuestionCount)
	}
	if report.BanksScanned != 2 || report.BanksRepaired != 1 || report.ClaimsDropped != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.QuizzesScanned != 2 || report.SnapshotsChanged != 2 {
		t.Fatalf("report = %+v", report)
	}
	if !reflect.DeepEqual(report.QuizzesOverSized, []string{"big"}) {
		t.Fatalf("oversized = %v", report.QuizzesOverSized)
	}
	if store.quizzes["quiz"].PoolSizeSnapshot != 3 {
		t.Fatalf("quiz snapshot = %d", store.quizzes["quiz"].PoolSizeSnapshot)
	}
	if store.quizzes["big"].PoolSizeSnapshot != 2 {
		t.Fatalf("oversized quiz snapshot = %d", store.quizzes["big"].PoolSizeSnapshot)
	}

	again, err := NewBankRepairService(store, store, quizzes).Run(ctx, testRestaurant)
	if err != nil || again.BanksRepaired != 0 || again.SnapshotsChanged != 0 {
		t.Fatalf("second run = %+v, %v", again, err)
	}
}
