package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"
	"staff_training_backend/pkg/tracing"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StaffIdentity is the acting staff member as resolved by the auth layer.
type StaffIdentity struct {
	StaffID      uint
	RestaurantID string
	Role         model.StaffRole
}

func (s StaffIdentity) attemptKey(quizID string) model.AttemptKey {
	return model.AttemptKey{RestaurantID: s.RestaurantID, QuizID: quizID, StaffID: s.StaffID}
}

// PresentedOption is an option without its correctness flag.
type PresentedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type PresentedQuestion struct {
	ID           string             `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	Text         string             `json:"text"`
	Options      []PresentedOption  `json:"options"`
}

type SubmittedAnswer struct {
	QuestionID string      `json:"questionId"`
	Answer     AnswerGiven `json:"answer"`
}

type QuestionResult struct {
	QuestionID        string      `json:"questionId"`
	Answer            AnswerGiven `json:"answer"`
	IsCorrect         bool        `json:"isCorrect"`
	CorrectOptionIDs  []string    `json:"correctOptionIds"`
	CorrectAnswerText []string    `json:"correctAnswerText"`
	Explanation       string      `json:"explanation,omitempty"`
}

type AttemptResult struct {
	AttemptID   string           `json:"attemptId"`
	Score       int              `json:"score"`
	Total       int              `json:"total"`
	PerQuestion []QuestionResult `json:"perQuestion"`
	SeenCount   int              `json:"seenCount"`
	PoolSize    int              `json:"poolSize"`
	IsComplete  bool             `json:"isComplete"`
}

type ProgressView struct {
	QuizID        string     `json:"quizId"`
	SeenCount     int        `json:"seenCount"`
	PoolSizeKnown int        `json:"poolSizeKnown"`
	IsComplete    bool       `json:"isComplete"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

// AttemptService starts and records quiz attempts for staff members.
type AttemptService struct {
	Quizzes   QuizStore
	Progress  ProgressStore
	Attempts  AttemptStore
	Questions QuestionStore
	Pool      *PoolResolver
	Grader    *Grader
	Cache     AttemptCache

	maxRetries atomic.Int32
	attemptTTL atomic.Int64

	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func NewAttemptService(
	quizzes QuizStore,
	progress ProgressStore,
	attempts AttemptStore,
	questions QuestionStore,
	pool *PoolResolver,
	grader *Grader,
	cache AttemptCache,
	cfg config.QuizConfig,
) *AttemptService {
	if cache == nil {
		cache = NopAttemptCache{}
	}
	s := &AttemptService{
		Quizzes:   quizzes,
		Progress:  progress,
		Attempts:  attempts,
		Questions: questions,
		Pool:      pool,
		Grader:    grader,
		Cache:     cache,
		shuffle:   rand.Shuffle,
		now:       time.Now,
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig updates the hot-reloadable tunables.
func (s *AttemptService) ApplyConfig(cfg config.QuizConfig) {
	retries := cfg.MaxConflictRetries
	if retries <= 0 {
		retries = 3
	}
	ttl := cfg.AttemptTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	s.maxRetries.Store(int32(retries))
	s.attemptTTL.Store(int64(ttl))
}

func (s *AttemptService) loadQuiz(ctx context.Context, quizID, restaurantID string) (*model.QuizDefinition, error) {
	quiz, err := s.Quizzes.GetQuizDefinition(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.RestaurantID != restaurantID {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

// StartAttempt picks up to AttemptSize questions the staff member has not
// seen yet. It returns an empty list once the pool is exhausted.
func (s *AttemptService) StartAttempt(ctx context.Context, staff StaffIdentity, quizID string) ([]PresentedQuestion, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.StartAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("quiz.id", quizID), attribute.Int64("staff.id", int64(staff.StaffID)))

	quiz, err := s.loadQuiz(ctx, quizID, staff.RestaurantID)
	if errors.Is(err, util.ErrQuizNotFound) {
		return nil, fmt.Errorf("%w: %w", util.ErrNotAvailable, err)
	}
	if err != nil {
		return nil, err
	}
	if !quiz.IsAvailable {
		return nil, util.ErrNotAvailable
	}
	if !quiz.TargetsRole(string(staff.Role)) {
		return nil, fmt.Errorf("%w: quiz does not target role %q", util.ErrPermissionDenied, staff.Role)
	}

	var pool []string
	retries := int(s.maxRetries.Load())
	for attempt := 0; ; attempt++ {
		p, err := s.Progress.GetOrCreateProgress(ctx, staff.StaffID, quiz.ID, staff.RestaurantID)
		if err != nil {
			return nil, err
		}
		if p.IsComplete {
			monitoring.AttemptsStarted.WithLabelValues("complete").Inc()
			return []PresentedQuestion{}, nil
		}

		if pool == nil {
			if pool, err = s.Pool.ResolvePool(ctx, quiz.SourceBankIDs, staff.RestaurantID); err != nil {
				return nil, err
			}
		}

		seen := p.SeenSet()
		available := make([]string, 0, len(pool))
		for _, id := range pool {
			if _, ok := seen[id]; !ok {
				available = append(available, id)
			}
		}

		expected := p.Version
		if len(available) == 0 {
			p.IsComplete = true
			p.PoolSizeKnown = len(pool)
			err := s.Progress.UpdateProgress(ctx, p, expected)
			if errors.Is(err, util.ErrConcurrencyConflict) && attempt < retries {
				s.conflict("start", attempt)
				continue
			}
			if err != nil {
				return nil, s.finalError("start", err)
			}
			monitoring.AttemptsStarted.WithLabelValues("exhausted").Inc()
			return []PresentedQuestion{}, nil
		}

		s.shuffle(len(available), func(i, j int) {
			available[i], available[j] = available[j], available[i]
		})
		size := quiz.AttemptSize
		if size <= 0 || size > len(available) {
			size = len(available)
		}
		chosen := available[:size]

		presented, err := s.fetchPresentable(ctx, chosen, staff.RestaurantID)
		if err != nil {
			return nil, err
		}

		if p.PoolSizeKnown != len(pool) {
			p.PoolSizeKnown = len(pool)
			err := s.Progress.UpdateProgress(ctx, p, expected)
			if errors.Is(err, util.ErrConcurrencyConflict) && attempt < retries {
				s.conflict("start", attempt)
				continue
			}
			if err != nil {
				return nil, s.finalError("start", err)
			}
		}

		s.rememberSession(ctx, staff.attemptKey(quiz.ID), presented)
		monitoring.AttemptsStarted.WithLabelValues("presented").Inc()
		return presented, nil
	}
}

// fetchPresentable loads the chosen questions in chosen order, stripped of
// correctness. Questions that vanished since pool resolution are skipped.
func (s *AttemptService) fetchPresentable(ctx context.Context, chosen []string, restaurantID string) ([]PresentedQuestion, error) {
	questions, err := s.Questions.GetQuestionsByIDs(ctx, chosen, restaurantID, model.QuestionActive)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	presented := make([]PresentedQuestion, 0, len(chosen))
	for _, id := range chosen {
		q, ok := byID[id]
		if !ok {
			continue
		}
		options := make([]PresentedOption, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, PresentedOption{ID: o.ID, Text: o.Text})
		}
		presented = append(presented, PresentedQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Text:         q.Text,
			Options:      options,
		})
	}
	if len(presented) < len(chosen) {
		logger.Log.Warn("questions disappeared between pool resolution and fetch",
			zap.Int("requested", len(chosen)), zap.Int("found", len(presented)))
	}
	return presented, nil
}

func (s *AttemptService) rememberSession(ctx context.Context, key model.AttemptKey, presented []PresentedQuestion) {
	ids := make([]string, len(presented))
	for i, q := range presented {
		ids[i] = q.ID
	}
	session := &model.AttemptSession{QuestionIDs: ids, StartedAt: s.now()}
	if err := s.Cache.Put(ctx, key, session, time.Duration(s.attemptTTL.Load())); err != nil {
		logger.Log.Warn("failed to cache attempt session", zap.String("key", key.String()), zap.Error(err))
	}
}

// SubmitAttempt grades the answers against the stored questions, records the
// attempt and grows the seen set in one atomic step.
func (s *AttemptService) SubmitAttempt(ctx context.Context, staff StaffIdentity, quizID string, answers []SubmittedAnswer) (*AttemptResult, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.SubmitAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("quiz.id", quizID), attribute.Int64("staff.id", int64(staff.StaffID)))

	quiz, err := s.loadQuiz(ctx, quizID, staff.RestaurantID)
	if err != nil {
		return nil, err
	}
	p, err := s.Progress.GetProgress(ctx, staff.StaffID, quiz.ID, staff.RestaurantID)
	if err != nil {
		return nil, err
	}

	answers = uniqueAnswers(answers)
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: no answers submitted", util.ErrValidation)
	}

	key := staff.attemptKey(quiz.ID)
	session, err := s.Cache.Get(ctx, key)
	if err != nil {
		logger.Log.Warn("failed to read attempt session", zap.String("key", key.String()), zap.Error(err))
		session = nil
	}

	pool, err := s.Pool.ResolvePool(ctx, quiz.SourceBankIDs, staff.RestaurantID)
	if err != nil {
		return nil, err
	}
	belongs, err := s.quizQuestionSet(ctx, quiz, pool, session)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		if _, ok := belongs[a.QuestionID]; ok {
			ids = append(ids, a.QuestionID)
		}
	}
	var questions []model.Question
	if len(ids) > 0 {
		if questions, err = s.Questions.GetQuestionsByIDs(ctx, ids, staff.RestaurantID); err != nil {
			return nil, err
		}
	}
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	result := &AttemptResult{PerQuestion: make([]QuestionResult, 0, len(answers))}
	records := make([]model.QuizAttemptAnswer, 0, len(answers))
	graded := make([]string, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			logger.Log.Debug("submitted answer outside the quiz ignored", zap.String("questionId", a.QuestionID))
			continue
		}
		correct := s.Grader.Grade(q, a.Answer)
		if correct {
			result.Score++
		}
		correctIDs, correctTexts := s.Grader.CorrectAnswer(q)
		result.PerQuestion = append(result.PerQuestion, QuestionResult{
			QuestionID:        q.ID,
			Answer:            a.Answer,
			IsCorrect:         correct,
			CorrectOptionIDs:  correctIDs,
			CorrectAnswerText: correctTexts,
			Explanation:       q.Explanation,
		})
		records = append(records, model.QuizAttemptAnswer{
			QuizID:     quiz.ID,
			Position:   len(records),
			QuestionID: q.ID,
			Answer:     []string(a.Answer),
			IsCorrect:  correct,
		})
		graded = append(graded, q.ID)
	}
	if len(graded) == 0 {
		return nil, fmt.Errorf("%w: none of the submitted questions belong to the quiz", util.ErrValidation)
	}

	result.Total = len(graded)
	var duration *int
	if session != nil {
		result.Total = len(uniqueStrings(append(append([]string{}, session.QuestionIDs...), graded...)))
		secs := int(s.now().Sub(session.StartedAt).Seconds())
		if secs >= 0 {
			duration = &secs
		}
	}

	retries := int(s.maxRetries.Load())
	for attempt := 0; ; attempt++ {
		now := s.now()
		seen := mergeSeen(p.SeenQuestionIDs, graded)
		p.SeenQuestionIDs = seen
		p.PoolSizeKnown = len(pool)
		// completion is sticky until an administrative reset
		p.IsComplete = p.IsComplete || coversPool(seen, pool)
		p.LastAttemptAt = &now

		record := &model.QuizAttempt{
			StaffID:         staff.StaffID,
			QuizID:          quiz.ID,
			RestaurantID:    staff.RestaurantID,
			Score:           result.Score,
			Total:           result.Total,
			SubmittedAt:     now,
			DurationSeconds: duration,
			Answers:         append([]model.QuizAttemptAnswer(nil), records...),
		}

		err := s.Progress.CommitAttempt(ctx, record, p, p.Version)
		if errors.Is(err, util.ErrConcurrencyConflict) && attempt < retries {
			s.conflict("submit", attempt)
			if p, err = s.Progress.GetProgress(ctx, staff.StaffID, quiz.ID, staff.RestaurantID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, s.finalError("submit", err)
		}

		result.AttemptID = record.ID
		result.SeenCount = len(seen)
		result.PoolSize = len(pool)
		result.IsComplete = p.IsComplete
		break
	}

	if err := s.Cache.Delete(ctx, key); err != nil {
		logger.Log.Warn("failed to clear attempt session", zap.String("key", key.String()), zap.Error(err))
	}
	monitoring.AttemptsSubmitted.Inc()
	logger.Log.Info("quiz attempt recorded",
		zap.String("quizId", quiz.ID),
		zap.Uint("staffId", staff.StaffID),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
		zap.Bool("complete", result.IsComplete))
	return result, nil
}

// quizQuestionSet holds the ids a submission for quiz may answer: the fresh
// pool, the ids presented by the cached session and every id the source banks
// claim regardless of status, so questions archived after start still grade.
func (s *AttemptService) quizQuestionSet(ctx context.Context, quiz *model.QuizDefinition, pool []string, session *model.AttemptSession) (map[string]struct{}, error) {
	claimed, err := s.Pool.ClaimedIDs(ctx, quiz.SourceBankIDs, quiz.RestaurantID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(pool)+len(claimed))
	for _, id := range pool {
		set[id] = struct{}{}
	}
	for _, id := range claimed {
		set[id] = struct{}{}
	}
	if session != nil {
		for _, id := range session.QuestionIDs {
			set[id] = struct{}{}
		}
	}
	return set, nil
}

func (s *AttemptService) GetProgress(ctx context.Context, staff StaffIdentity, quizID string) (*ProgressView, error) {
	p, err := s.Progress.GetProgress(ctx, staff.StaffID, quizID, staff.RestaurantID)
	if err != nil {
		return nil, err
	}
	return &ProgressView{
		QuizID:        p.QuizID,
		SeenCount:     len(p.SeenQuestionIDs),
		PoolSizeKnown: p.PoolSizeKnown,
		IsComplete:    p.IsComplete,
		LastAttemptAt: p.LastAttemptAt,
	}, nil
}

// ListAttempts returns the staff member's attempt history for a quiz.
func (s *AttemptService) ListAttempts(ctx context.Context, staff StaffIdentity, quizID string, limit int) ([]model.QuizAttempt, error) {
	if _, err := s.loadQuiz(ctx, quizID, staff.RestaurantID); err != nil {
		return nil, err
	}
	return s.Attempts.ListAttempts(ctx, staff.StaffID, quizID, staff.RestaurantID, limit)
}

// ListAvailableQuizzes lists the restaurant's open quizzes targeting role.
func (s *AttemptService) ListAvailableQuizzes(ctx context.Context, staff StaffIdentity) ([]model.QuizDefinition, error) {
	quizzes, err := s.Quizzes.ListQuizzes(ctx, staff.RestaurantID, true)
	if err != nil {
		return nil, err
	}
	out := quizzes[:0]
	for _, q := range quizzes {
		if q.TargetsRole(string(staff.Role)) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *AttemptService) conflict(operation string, attempt int) {
	monitoring.ProgressConflicts.WithLabelValues(operation, "retried").Inc()
	logger.Log.Debug("progress version conflict, retrying",
		zap.String("operation", operation), zap.Int("attempt", attempt+1))
}

func (s *AttemptService) finalError(operation string, err error) error {
	if errors.Is(err, util.ErrConcurrencyConflict) {
		monitoring.ProgressConflicts.WithLabelValues(operation, "exhausted").Inc()
		logger.Log.Warn("progress conflict retries exhausted", zap.String("operation", operation))
	}
	return err
}

// uniqueAnswers keeps the first answer per question id and drops blank ids.
func uniqueAnswers(in []SubmittedAnswer) []SubmittedAnswer {
	seen := make(map[string]struct{}, len(in))
	out := make([]SubmittedAnswer, 0, len(in))
	for _, a := range in {
		if a.QuestionID == "" {
			continue
		}
		if _, ok := seen[a.QuestionID]; ok {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func mergeSeen(seen []string, add []string) []string {
	merged := make([]string, 0, len(seen)+len(add))
	merged = append(merged, seen...)
	return uniqueStrings(append(merged, add...))
}

// coversPool reports whether every pool id is in seen.
func coversPool(seen []string, pool []string) bool {
	set := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		set[id] = struct{}{}
	}
	for _, id := range pool {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
