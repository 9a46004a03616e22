package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/database"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver: util.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "quiz.db"),
	}, logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuestion(t *testing.T, repo *QuestionRepository, id, restaurantID string, status model.QuestionStatus) {
	t.Helper()
	q := &model.Question{
		RestaurantID: restaurantID,
		QuestionType: model.QuestionSingleChoice,
		Text:         "question " + id,
		Status:       status,
		Options: datatypes.JSONSlice[model.QuestionOption]{
			{ID: "a", Text: "yes", IsCorrect: true},
			{ID: "b", Text: "no"},
		},
	}
	q.ID = id
	if err := repo.Create(context.Background(), q); err != nil {
		t.Fatalf("create question %s: %v", id, err)
	}
}

func TestQuestionRepository_GetQuestionsByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository(newTestDB(t))
	seedQuestion(t, repo, "q1", "r1", model.QuestionActive)
	seedQuestion(t, repo, "q2", "r1", model.QuestionArchived)
	seedQuestion(t, repo, "q3", "r2", model.QuestionActive)

	// more ids than one IN list holds
	ids := []string{"q1", "q2", "q3"}
	for i := 0; i < inChunk+20; i++ {
		ids = append(ids, fmt.Sprintf("missing-%d", i))
	}

	all, err := repo.GetQuestionsByIDs(ctx, ids, "r1")
	if err != nil {
		t.Fatalf("GetQuestionsByIDs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d questions, want 2", len(all))
	}

	active, err := repo.GetQuestionsByIDs(ctx, ids, "r1", model.QuestionActive)
	if err != nil {
		t.Fatalf("GetQuestionsByIDs active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "q1" || len(active[0].Options) != 2 || !active[0].Options[0].IsCorrect {
		t.Fatalf("active = %+v", active)
	}

	if err := repo.UpdateStatus(ctx, "q1", model.QuestionArchived); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	active, _ = repo.GetQuestionsByIDs(ctx, ids, "r1", model.QuestionActive)
	if len(active) != 0 {
		t.Fatalf("archived question still active")
	}
}

func TestBankRepository_ClaimsAndListing(t *testing.T) {
	ctx := context.Background()
	repo := NewBankRepository(newTestDB(t))

	for _, b := range []*model.Bank{
		{RestaurantID: "r1", Name: "drinks", QuestionIDs: datatypes.JSONSlice[string]{"q1", "q2", "ghost"}},
		{RestaurantID: "r2", Name: "foreign", QuestionIDs: datatypes.JSONSlice[string]{"q9"}},
	} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("create bank: %v", err)
		}
	}

	banks, err := repo.ListBanks(ctx, "r1")
	if err != nil || len(banks) != 1 {
		t.Fatalf("ListBanks = %d, %v", len(banks), err)
	}
	bank := banks[0]
	if bank.QuestionCount != 3 {
		t.Fatalf("count = %d", bank.QuestionCount)
	}
	if all, _ := repo.ListBanks(ctx, ""); len(all) != 2 {
		t.Fatalf("ListBanks all = %d", len(all))
	}

	found, err := repo.GetBanksByIDs(ctx, []string{bank.ID, "nope"}, "r2")
	if err != nil || len(found) != 0 {
		t.Fatalf("foreign lookup = %+v, %v", found, err)
	}

	if err := repo.ReplaceClaims(ctx, bank.ID, []string{"q1", "q2"}); err != nil {
		t.Fatalf("ReplaceClaims: %v", err)
	}
	found, _ = repo.GetBanksByIDs(ctx, []string{bank.ID}, "r1")
	if len(found) != 1 || len(found[0].QuestionIDs) != 2 || found[0].QuestionCount != 2 {
		t.Fatalf("after repair = %+v", found)
	}
}

func TestProgressRepository_GetOrCreateConverges(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t))

	if _, err := repo.GetProgress(ctx, 7, "quiz", "r1"); !errors.Is(err, util.ErrProgressNotFound) {
		t.Fatalf("GetProgress before create: err = %v", err)
	}
	first, err := repo.GetOrCreateProgress(ctx, 7, "quiz", "r1")
	if err != nil {
		t.Fatalf("GetOrCreateProgress: %v", err)
	}
	second, err := repo.GetOrCreateProgress(ctx, 7, "quiz", "r1")
	if err != nil {
		t.Fatalf("GetOrCreateProgress again: %v", err)
	}
	if first.ID != second.ID || first.Version != 0 || first.IsComplete || len(first.SeenQuestionIDs) != 0 {
		t.Fatalf("first = %+v, second = %+v", first, second)
	}
}

func TestProgressRepository_VersionCheckedWrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewProgressRepository(db)

	p, err := repo.GetOrCreateProgress(ctx, 7, "quiz", "r1")
	if err != nil {
		t.Fatalf("GetOrCreateProgress: %v", err)
	}
	stale := *p

	p.SeenQuestionIDs = datatypes.JSONSlice[string]{"q1"}
	p.PoolSizeKnown = 3
	if err := repo.UpdateProgress(ctx, p, p.Version); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("version = %d", p.Version)
	}

	stale.SeenQuestionIDs = datatypes.JSONSlice[string]{"q2"}
	if err := repo.UpdateProgress(ctx, &stale, stale.Version); !errors.Is(err, util.ErrConcurrencyConflict) {
		t.Fatalf("stale update: err = %v", err)
	}

	now := time.Now()
	attempt := &model.QuizAttempt{
		StaffID: 7, QuizID: "quiz", RestaurantID: "r1",
		Score: 1, Total: 1, SubmittedAt: now,
		Answers: []model.QuizAttemptAnswer{{QuizID: "quiz", QuestionID: "q2", Answer: datatypes.JSONSlice[string]{"a"}, IsCorrect: true}},
	}
	stale.LastAttemptAt = &now
	if err := repo.CommitAttempt(ctx, attempt, &stale, stale.Version); !errors.Is(err, util.ErrConcurrencyConflict) {
		t.Fatalf("stale commit: err = %v", err)
	}
	var count int64
	db.Model(&model.QuizAttempt{}).Count(&count)
	if count != 0 {
		t.Fatalf("stale commit wrote %d attempts", count)
	}

	stored, _ := repo.GetProgress(ctx, 7, "quiz", "r1")
	if len(stored.SeenQuestionIDs) != 1 || stored.SeenQuestionIDs[0] != "q1" || stored.Version != 1 {
		t.Fatalf("stored = %+v", stored)
	}
}

func commit(t *testing.T, repo *ProgressRepository, staffID uint, quizID string, at time.Time, questionIDs ...string) {
	t.Helper()
	ctx := context.Background()
	p, err := repo.GetOrCreateProgress(ctx, staffID, quizID, "r1")
	if err != nil {
		t.Fatalf("GetOrCreateProgress: %v", err)
	}
	attempt := &model.QuizAttempt{StaffID: staffID, QuizID: quizID, RestaurantID: "r1", SubmittedAt: at, Total: len(questionIDs)}
	for i, id := range questionIDs {
		attempt.Answers = append(attempt.Answers, model.QuizAttemptAnswer{
			QuizID: quizID, Position: i, QuestionID: id, Answer: datatypes.JSONSlice[string]{"a"}, IsCorrect: true,
		})
		p.SeenQuestionIDs = append(p.SeenQuestionIDs, id)
	}
	attempt.Score = len(questionIDs)
	p.LastAttemptAt = &at
	if err := repo.CommitAttempt(ctx, attempt, p, p.Version); err != nil {
		t.Fatalf("CommitAttempt: %v", err)
	}
}

func TestAttemptRepository_ListAttempts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	progress := NewProgressRepository(db)
	attempts := NewAttemptRepository(db)

	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	commit(t, progress, 7, "quiz", base, "q3", "q1")
	commit(t, progress, 7, "quiz", base.Add(time.Hour), "q2")
	commit(t, progress, 8, "quiz", base, "q1")

	list, err := attempts.ListAttempts(ctx, 7, "quiz", "r1", 10)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 2 || list[0].Answers[0].QuestionID != "q2" {
		t.Fatalf("newest first expected, got %+v", list)
	}
	if a := list[1].Answers; len(a) != 2 || a[0].QuestionID != "q3" || a[1].QuestionID != "q1" {
		t.Fatalf("answers out of order: %+v", a)
	}
	if limited, _ := attempts.ListAttempts(ctx, 7, "quiz", "r1", 1); len(limited) != 1 {
		t.Fatalf("limit ignored")
	}
	if all, _ := attempts.ListAttemptsByQuiz(ctx, "quiz"); len(all) != 3 {
		t.Fatalf("ListAttemptsByQuiz = %d", len(all))
	}

	p, _ := progress.GetProgress(ctx, 7, "quiz", "r1")
	if len(p.SeenQuestionIDs) != 3 || p.Version != 2 {
		t.Fatalf("progress = %+v", p)
	}
}

func TestQuizRepository_ResetAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	quizzes := NewQuizRepository(db)
	progress := NewProgressRepository(db)

	quiz := &model.QuizDefinition{RestaurantID: "r1", Title: "Wine", SourceBankIDs: datatypes.JSONSlice[string]{"b1"}, AttemptSize: 1, IsAvailable: true}
	other := &model.QuizDefinition{RestaurantID: "r1", Title: "Beer", SourceBankIDs: datatypes.JSONSlice[string]{"b1"}, AttemptSize: 1}
	for _, q := range []*model.QuizDefinition{quiz, other} {
		if err := quizzes.CreateQuiz(ctx, q); err != nil {
			t.Fatalf("CreateQuiz: %v", err)
		}
	}
	if open, _ := quizzes.ListQuizzes(ctx, "r1", true); len(open) != 1 || open[0].ID != quiz.ID {
		t.Fatalf("ListQuizzes available = %+v", open)
	}

	now := time.Now()
	commit(t, progress, 7, quiz.ID, now, "q1")
	commit(t, progress, 8, quiz.ID, now, "q2")
	commit(t, progress, 7, other.ID, now, "q1")

	for i := 0; i < 2; i++ {
		if err := quizzes.ResetQuizProgress(ctx, quiz.ID); err != nil {
			t.Fatalf("reset %d: %v", i+1, err)
		}
	}
	rows, _ := progress.ListProgressByQuiz(ctx, quiz.ID)
	if len(rows) != 2 {
		t.Fatalf("progress rows = %d", len(rows))
	}
	for _, r := range rows {
		if len(r.SeenQuestionIDs) != 0 || r.IsComplete || r.Version != 3 {
			t.Fatalf("after reset = %+v", r)
		}
	}
	var answers int64
	db.Model(&model.QuizAttemptAnswer{}).Where("quiz_id = ?", quiz.ID).Count(&answers)
	if answers != 0 {
		t.Fatalf("answers survived reset")
	}

	if err := quizzes.DeleteQuizCascade(ctx, quiz.ID); err != nil {
		t.Fatalf("DeleteQuizCascade: %v", err)
	}
	if _, err := quizzes.GetQuizDefinition(ctx, quiz.ID); !errors.Is(err, util.ErrQuizNotFound) {
		t.Fatalf("quiz still present: %v", err)
	}
	if rows, _ := progress.ListProgressByQuiz(ctx, quiz.ID); len(rows) != 0 {
		t.Fatalf("orphaned progress")
	}
	if err := quizzes.DeleteQuizCascade(ctx, quiz.ID); !errors.Is(err, util.ErrQuizNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}

	// the other quiz is untouched
	if rows, _ := progress.ListProgressByQuiz(ctx, other.ID); len(rows) != 1 || len(rows[0].SeenQuestionIDs) != 1 {
		t.Fatalf("other quiz progress = %+v", rows)
	}
}
