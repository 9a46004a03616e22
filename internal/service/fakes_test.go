package service

import (
	"context"
	"fmt"
	"sort"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"sync"
	"time"

	"gorm.io/datatypes"
)

/* ---------------- In-memory fake satisfying every store interface ---------------- */

type progressKey struct {
	staffID      uint
	quizID       string
	restaurantID string
}

type memStore struct {
	mu        sync.Mutex
	questions map[string]model.Question
	banks     map[string]model.Bank
	quizzes   map[string]model.QuizDefinition
	progress  map[progressKey]model.QuizProgress
	attempts  []model.QuizAttempt
	seq       int

	// conflicts makes the next n progress writes fail as if another writer won.
	conflicts   int
	commitCalls int
	saveCalls   int
	resetErr    error
}

func newMemStore() *memStore {
	return &memStore{
		questions: map[string]model.Question{},
		banks:     map[string]model.Bank{},
		quizzes:   map[string]model.QuizDefinition{},
		progress:  map[progressKey]model.QuizProgress{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func copyProgress(p model.QuizProgress) model.QuizProgress {
	p.SeenQuestionIDs = append(datatypes.JSONSlice[string]{}, p.SeenQuestionIDs...)
	return p
}

func copyQuiz(q model.QuizDefinition) model.QuizDefinition {
	q.SourceBankIDs = append(datatypes.JSONSlice[string]{}, q.SourceBankIDs...)
	q.TargetRoles = append(datatypes.JSONSlice[string]{}, q.TargetRoles...)
	return q
}

// seeding helpers

func (s *memStore) addQuestion(id, restaurantID string, qt model.QuestionType, status model.QuestionStatus, correct ...string) {
	q := model.Question{
		RestaurantID: restaurantID,
		QuestionType: qt,
		Text:         "question " + id,
		Status:       status,
	}
	q.ID = id
	correctSet := map[string]bool{}
	for _, c := range correct {
		correctSet[c] = true
	}
	for _, opt := range []string{"a", "b", "c", "d"} {
		q.Options = append(q.Options, model.QuestionOption{
			ID:        opt,
			Text:      "option " + opt,
			IsCorrect: correctSet[opt],
		})
	}
	s.questions[id] = q
}

func (s *memStore) addActive(restaurantID string, ids ...string) {
	for _, id := range ids {
		s.addQuestion(id, restaurantID, model.QuestionSingleChoice, model.QuestionActive, "a")
	}
}

func (s *memStore) addBank(id, restaurantID string, questionIDs ...string) {
	b := model.Bank{RestaurantID: restaurantID, Name: "bank " + id, QuestionIDs: questionIDs, QuestionCount: len(questionIDs)}
	b.ID = id
	s.banks[id] = b
}

func (s *memStore) addQuiz(id, restaurantID string, attemptSize int, bankIDs ...string) {
	q := model.QuizDefinition{
		RestaurantID:  restaurantID,
		Title:         "quiz " + id,
		SourceBankIDs: bankIDs,
		AttemptSize:   attemptSize,
		IsAvailable:   true,
	}
	q.ID = id
	s.quizzes[id] = q
}

func (s *memStore) setStatus(id string, status model.QuestionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.questions[id]
	q.Status = status
	s.questions[id] = q
}

// QuestionStore

func (s *memStore) GetQuestionsByIDs(_ context.Context, ids []string, restaurantID string, statuses ...model.QuestionStatus) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Question{}
	for _, id := range ids {
		q, ok := s.questions[id]
		if !ok || q.RestaurantID != restaurantID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if q.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// BankStore / BankMaintenanceStore

func (s *memStore) GetBanksByIDs(_ context.Context, ids []string, restaurantID string) ([]model.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Bank{}
	for _, id := range ids {
		if b, ok := s.banks[id]; ok && b.RestaurantID == restaurantID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ListBanks(_ context.Context, restaurantID string) ([]model.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Bank{}
	for _, b := range s.banks {
		if restaurantID == "" || b.RestaurantID == restaurantID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ReplaceClaims(_ context.Context, bankID string, questionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.banks[bankID]
	b.QuestionIDs = append(datatypes.JSONSlice[string]{}, questionIDs...)
	b.QuestionCount = len(questionIDs)
	s.banks[bankID] = b
	return nil
}

// QuizStore / QuizAdminStore

func (s *memStore) GetQuizDefinition(_ context.Context, id string) (*model.QuizDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	q = copyQuiz(q)
	return &q, nil
}

func (s *memStore) CreateQuiz(_ context.Context, quiz *model.QuizDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = s.nextID("quiz")
	}
	s.quizzes[quiz.ID] = copyQuiz(*quiz)
	return nil
}

func (s *memStore) SaveQuiz(_ context.Context, quiz *model.QuizDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.quizzes[quiz.ID] = copyQuiz(*quiz)
	return nil
}

func (s *memStore) ListQuizzes(_ context.Context, restaurantID string, onlyAvailable bool) ([]model.QuizDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QuizDefinition{}
	for _, q := range s.quizzes {
		if restaurantID != "" && q.RestaurantID != restaurantID {
			continue
		}
		if onlyAvailable && !q.IsAvailable {
			continue
		}
		out = append(out, copyQuiz(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ResetQuizProgress(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	for k, p := range s.progress {
		if k.quizID != quizID {
			continue
		}
		p.SeenQuestionIDs = datatypes.JSONSlice[string]{}
		p.IsComplete = false
		p.Version++
		s.progress[k] = p
	}
	s.dropAttempts(quizID)
	return nil
}

func (s *memStore) DeleteQuizCascade(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return util.ErrQuizNotFound
	}
	for k := range s.progress {
		if k.quizID == quizID {
			delete(s.progress, k)
		}
	}
	s.dropAttempts(quizID)
	delete(s.quizzes, quizID)
	return nil
}

func (s *memStore) dropAttempts(quizID string) {
	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if a.QuizID != quizID {
			kept = append(kept, a)
		}
	}
	s.attempts = kept
}

// ProgressStore

func (s *memStore) GetProgress(_ context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{staffID, quizID, restaurantID}]
	if !ok {
		return nil, util.ErrProgressNotFound
	}
	p = copyProgress(p)
	return &p, nil
}

func (s *memStore) GetOrCreateProgress(ctx context.Context, staffID uint, quizID, restaurantID string) (*model.QuizProgress, error) {
	s.mu.Lock()
	k := progressKey{staffID, quizID, restaurantID}
	if _, ok := s.progress[k]; !ok {
		p := model.QuizProgress{
			StaffID:         staffID,
			QuizID:          quizID,
			RestaurantID:    restaurantID,
			SeenQuestionIDs: datatypes.JSONSlice[string]{},
		}
		p.ID = s.nextID("progress")
		s.progress[k] = p
	}
	s.mu.Unlock()
	return s.GetProgress(ctx, staffID, quizID, restaurantID)
}

func (s *memStore) writeProgress(p *model.QuizProgress, expectedVersion int64) error {
	if s.conflicts > 0 {
		s.conflicts--
		return util.ErrConcurrencyConflict
	}
	k := progressKey{p.StaffID, p.QuizID, p.RestaurantID}
	stored, ok := s.progress[k]
	if !ok || stored.Version != expectedVersion {
		return util.ErrConcurrencyConflict
	}
	next := copyProgress(*p)
	next.Version = expectedVersion + 1
	s.progress[k] = next
	return nil
}

func (s *memStore) UpdateProgress(_ context.Context, p *model.QuizProgress, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeProgress(p, expectedVersion); err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

func (s *memStore) CommitAttempt(_ context.Context, attempt *model.QuizAttempt, p *model.QuizProgress, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitCalls++
	if err := s.writeProgress(p, expectedVersion); err != nil {
		return err
	}
	attempt.ID = s.nextID("attempt")
	for i := range attempt.Answers {
		attempt.Answers[i].AttemptID = attempt.ID
	}
	s.attempts = append(s.attempts, *attempt)
	p.Version = expectedVersion + 1
	return nil
}

func (s *memStore) ListProgressByQuiz(_ context.Context, quizID string) ([]model.QuizProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QuizProgress{}
	for k, p := range s.progress {
		if k.quizID == quizID {
			out = append(out, copyProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

// AttemptStore

func (s *memStore) ListAttempts(_ context.Context, staffID uint, quizID, restaurantID string, limit int) ([]model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QuizAttempt{}
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if a.StaffID == staffID && a.QuizID == quizID && a.RestaurantID == restaurantID {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) ListAttemptsByQuiz(_ context.Context, quizID string) ([]model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QuizAttempt{}
	for _, a := range s.attempts {
		if a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

/* ---------------- AttemptCache fake ---------------- */

type memCache struct {
	mu       sync.Mutex
	sessions map[string]model.AttemptSession
}

func newMemCache() *memCache {
	return &memCache{sessions: map[string]model.AttemptSession{}}
}

func (c *memCache) Put(_ context.Context, key model.AttemptKey, session *model.AttemptSession, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[key.String()] = *session
	return nil
}

func (c *memCache) Get(_ context.Context, key model.AttemptKey) (*model.AttemptSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[key.String()]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *memCache) Delete(_ context.Context, key model.AttemptKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key.String())
	return nil
}

/* ---------------- wiring ---------------- */

const testRestaurant = "rest-1"

func newTestAttemptService(store *memStore, cache AttemptCache) *AttemptService {
	pool := NewPoolResolver(store, store)
	svc := NewAttemptService(store, store, store, store, pool, NewGrader(), cache, config.QuizConfig{MaxConflictRetries: 3})
	// identity shuffle keeps selection deterministic
	svc.shuffle = func(int, func(i, j int)) {}
	return svc
}

func newTestQuizService(store *memStore, storage *StorageService) *QuizService {
	return NewQuizService(store, store, store, store, NewPoolResolver(store, store), storage)
}

func staff(id uint) StaffIdentity {
	return StaffIdentity{StaffID: id, RestaurantID: testRestaurant, Role: model.RoleStaff}
}

// correctAnswers answers every presented question with its correct option.
func correctAnswers(store *memStore, presented []PresentedQuestion) []SubmittedAnswer {
	store.mu.Lock()
	defer store.mu.Unlock()
	out := make([]SubmittedAnswer, 0, len(presented))
	for _, p := range presented {
		var ans AnswerGiven
		for _, o := range store.questions[p.ID].Options {
			if o.IsCorrect {
				ans = append(ans, o.ID)
			}
		}
		out = append(out, SubmittedAnswer{QuestionID: p.ID, Answer: ans})
	}
	return out
}

func presentedIDs(presented []PresentedQuestion) []string {
	ids := make([]string, len(presented))
	for i, p := range presented {
		ids[i] = p.ID
	}
	return ids
}
