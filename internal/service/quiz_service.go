package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/tracing"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CreateQuizRequest struct {
	Title         string   `json:"title" validate:"required,max=255"`
	Description   string   `json:"description"`
	SourceBankIDs []string `json:"sourceBankIds" validate:"required,min=1,dive,required"`
	AttemptSize   int      `json:"attemptSize" validate:"required,min=1"`
	IsAvailable   bool     `json:"isAvailable"`
	TargetRoles   []string `json:"targetRoles" validate:"omitempty,dive,oneof=staff manager admin"`
}

// UpdateQuizRequest only changes the fields that are set.
type UpdateQuizRequest struct {
	Title         *string   `json:"title" validate:"omitempty,max=255"`
	Description   *string   `json:"description"`
	SourceBankIDs *[]string `json:"sourceBankIds" validate:"omitempty,min=1,dive,required"`
	AttemptSize   *int      `json:"attemptSize" validate:"omitempty,min=1"`
	IsAvailable   *bool     `json:"isAvailable"`
	TargetRoles   *[]string `json:"targetRoles" validate:"omitempty,dive,oneof=staff manager admin"`
}

type StaffProgressRow struct {
	StaffID       uint       `json:"staffId"`
	SeenCount     int        `json:"seenCount"`
	PoolSizeKnown int        `json:"poolSizeKnown"`
	IsComplete    bool       `json:"isComplete"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

type quizArchive struct {
	Quiz       *model.QuizDefinition `json:"quiz"`
	ExportedAt time.Time             `json:"exportedAt"`
	Reason     string                `json:"reason"`
	Attempts   []model.QuizAttempt   `json:"attempts"`
}

// QuizService manages quiz definitions and keeps PoolSizeSnapshot in line with
// the source banks. Progress records are not touched on reconfiguration; they
// pick up the new pool size at their next attempt.
type QuizService struct {
	Quizzes  QuizStore
	Admin    QuizAdminStore
	Progress ProgressStore
	Attempts AttemptStore
	Pool     *PoolResolver
	Storage  *StorageService

	validate *validator.Validate
	now      func() time.Time
}

func NewQuizService(quizzes QuizStore, admin QuizAdminStore, progress ProgressStore, attempts AttemptStore, pool *PoolResolver, storage *StorageService) *QuizService {
	return &QuizService{
		Quizzes:  quizzes,
		Admin:    admin,
		Progress: progress,
		Attempts: attempts,
		Pool:     pool,
		Storage:  storage,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *QuizService) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", util.ErrValidation, err.Error())
	}
	return nil
}

// GetQuiz loads a quiz of the restaurant; quizzes of other tenants are reported as missing.
func (s *QuizService) GetQuiz(ctx context.Context, restaurantID, quizID string) (*model.QuizDefinition, error) {
	quiz, err := s.Quizzes.GetQuizDefinition(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.RestaurantID != restaurantID {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *QuizService) ListQuizzes(ctx context.Context, restaurantID string) ([]model.QuizDefinition, error) {
	return s.Quizzes.ListQuizzes(ctx, restaurantID, false)
}

func (s *QuizService) CreateQuiz(ctx context.Context, restaurantID string, req CreateQuizRequest) (*model.QuizDefinition, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	quiz := &model.QuizDefinition{
		RestaurantID:  restaurantID,
		Title:         req.Title,
		Description:   req.Description,
		SourceBankIDs: uniqueStrings(req.SourceBankIDs),
		AttemptSize:   req.AttemptSize,
		IsAvailable:   req.IsAvailable,
		TargetRoles:   req.TargetRoles,
	}
	if err := s.reconcile(ctx, quiz); err != nil {
		return nil, err
	}
	if err := s.Quizzes.CreateQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	logger.Log.Info("quiz created",
		zap.String("quizId", quiz.ID),
		zap.String("restaurantId", restaurantID),
		zap.Int("poolSize", quiz.PoolSizeSnapshot))
	return quiz, nil
}

// UpdateQuiz applies req to a copy of the stored quiz. When the source banks,
// attempt size or availability change the snapshot is recomputed and the
// update is rejected, leaving the stored quiz unchanged, if an available quiz
// would ask for more questions than its pool holds.
func (s *QuizService) UpdateQuiz(ctx context.Context, restaurantID, quizID string, req UpdateQuizRequest) (*model.QuizDefinition, error) {
	ctx, span := tracing.Start(ctx, "QuizService.UpdateQuiz")
	defer span.End()
	span.SetAttributes(attribute.String("quiz.id", quizID))

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	stored, err := s.GetQuiz(ctx, restaurantID, quizID)
	if err != nil {
		return nil, err
	}
	updated := *stored

	structural := false
	if req.Title != nil {
		updated.Title = *req.Title
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.SourceBankIDs != nil {
		banks := uniqueStrings(*req.SourceBankIDs)
		if !sameSet(banks, stored.SourceBankIDs) {
			structural = true
		}
		updated.SourceBankIDs = banks
	}
	if req.AttemptSize != nil && *req.AttemptSize != stored.AttemptSize {
		updated.AttemptSize = *req.AttemptSize
		structural = true
	}
	if req.IsAvailable != nil && *req.IsAvailable != stored.IsAvailable {
		updated.IsAvailable = *req.IsAvailable
		structural = true
	}
	if req.TargetRoles != nil {
		updated.TargetRoles = *req.TargetRoles
	}

	if structural {
		if err := s.reconcile(ctx, &updated); err != nil {
			return nil, err
		}
	}

	if err := s.Quizzes.SaveQuiz(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RecomputeSnapshot refreshes the cached pool size. It is idempotent. The
// fresh size is stored even when it can no longer serve an available quiz's
// attempt size; that case is reported with ErrValidation alongside the size.
func (s *QuizService) RecomputeSnapshot(ctx context.Context, restaurantID, quizID string) (int, error) {
	ctx, span := tracing.Start(ctx, "QuizService.RecomputeSnapshot")
	defer span.End()

	stored, err := s.GetQuiz(ctx, restaurantID, quizID)
	if err != nil {
		return 0, err
	}
	updated := *stored
	violation := s.reconcile(ctx, &updated)
	if violation != nil && !errors.Is(violation, util.ErrValidation) {
		return 0, violation
	}
	if updated.PoolSizeSnapshot != stored.PoolSizeSnapshot {
		if err := s.Quizzes.SaveQuiz(ctx, &updated); err != nil {
			return 0, err
		}
		logger.Log.Info("quiz pool snapshot changed",
			zap.String("quizId", quizID),
			zap.Int("from", stored.PoolSizeSnapshot),
			zap.Int("to", updated.PoolSizeSnapshot))
	}
	if violation != nil {
		logger.Log.Warn("quiz attempt size exceeds pool", zap.String("quizId", quizID), zap.Error(violation))
	}
	return updated.PoolSizeSnapshot, violation
}

// reconcile resolves the pool for quiz, stores its size on quiz and checks
// that an available quiz can fill an attempt.
func (s *QuizService) reconcile(ctx context.Context, quiz *model.QuizDefinition) error {
	pool, err := s.Pool.ResolvePool(ctx, quiz.SourceBankIDs, quiz.RestaurantID)
	if err != nil {
		return err
	}
	quiz.PoolSizeSnapshot = len(pool)
	if quiz.IsAvailable && quiz.AttemptSize > quiz.PoolSizeSnapshot {
		return fmt.Errorf("%w: attempt size %d exceeds the %d active questions available in the source banks",
			util.ErrValidation, quiz.AttemptSize, quiz.PoolSizeSnapshot)
	}
	return nil
}

// ListQuizProgress is the manager overview of every staff member's progress.
func (s *QuizService) ListQuizProgress(ctx context.Context, restaurantID, quizID string) ([]StaffProgressRow, error) {
	if _, err := s.GetQuiz(ctx, restaurantID, quizID); err != nil {
		return nil, err
	}
	list, err := s.Progress.ListProgressByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	rows := make([]StaffProgressRow, 0, len(list))
	for _, p := range list {
		if p.RestaurantID != restaurantID {
			continue
		}
		rows = append(rows, StaffProgressRow{
			StaffID:       p.StaffID,
			SeenCount:     len(p.SeenQuestionIDs),
			PoolSizeKnown: p.PoolSizeKnown,
			IsComplete:    p.IsComplete,
			LastAttemptAt: p.LastAttemptAt,
		})
	}
	return rows, nil
}

// ResetProgress clears every staff member's seen set and deletes the quiz's
// attempts. With archive set the attempts are exported first and the reset
// does not run if the export fails. Returns the archive location, if any.
func (s *QuizService) ResetProgress(ctx context.Context, restaurantID, quizID string, archive bool) (string, error) {
	quiz, err := s.GetQuiz(ctx, restaurantID, quizID)
	if err != nil {
		return "", err
	}

	var location string
	if archive {
		if location, err = s.archiveAttempts(ctx, quiz, "reset"); err != nil {
			return "", err
		}
	}
	if err := s.Admin.ResetQuizProgress(ctx, quiz.ID); err != nil {
		logger.Log.Error("quiz progress reset failed", zap.String("quizId", quiz.ID), zap.Error(err))
		return location, err
	}

	logger.Log.Info("quiz progress reset", zap.String("quizId", quiz.ID), zap.String("archive", location))
	return location, nil
}

// DeleteQuiz removes the quiz with all of its progress and attempts.
func (s *QuizService) DeleteQuiz(ctx context.Context, restaurantID, quizID string, archive bool) (string, error) {
	quiz, err := s.GetQuiz(ctx, restaurantID, quizID)
	if err != nil {
		return "", err
	}

	var location string
	if archive {
		if location, err = s.archiveAttempts(ctx, quiz, "delete"); err != nil {
			return "", err
		}
	}
	if err := s.Admin.DeleteQuizCascade(ctx, quiz.ID); err != nil {
		logger.Log.Error("quiz delete failed", zap.String("quizId", quiz.ID), zap.Error(err))
		return location, err
	}

	logger.Log.Info("quiz deleted", zap.String("quizId", quiz.ID), zap.String("archive", location))
	return location, nil
}

func (s *QuizService) archiveAttempts(ctx context.Context, quiz *model.QuizDefinition, reason string) (string, error) {
	if s.Storage == nil {
		return "", fmt.Errorf("%w: archive storage is not configured", util.ErrValidation)
	}
	attempts, err := s.Attempts.ListAttemptsByQuiz(ctx, quiz.ID)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	data, err := json.Marshal(quizArchive{
		Quiz:       quiz,
		ExportedAt: now,
		Reason:     reason,
		Attempts:   attempts,
	})
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s/%s/%s-%s.json", quiz.RestaurantID, quiz.ID, now.Format("20060102T150405Z"), reason)
	location, err := s.Storage.PutJSON(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("archive attempts: %w", err)
	}
	return location, nil
}

func sameSet(a, b []string) bool {
	x := uniqueStrings(a)
	y := uniqueStrings(b)
	if len(x) != len(y) {
		return false
	}
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
