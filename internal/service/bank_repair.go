package service

import (
	"context"
	"errors"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/logger"

	"go.uber.org/zap"
)

// BankMaintenanceStore is the write side of the bank store used by the
// offline repair.
type BankMaintenanceStore interface {
	ListBanks(ctx context.Context, restaurantID string) ([]model.Bank, error)
	ReplaceClaims(ctx context.Context, bankID string, questionIDs []string) error
}

type RepairReport struct {
	BanksScanned     int      `json:"banksScanned"`
	BanksRepaired    int      `json:"banksRepaired"`
	ClaimsDropped    int      `json:"claimsDropped"`
	QuizzesScanned   int      `json:"quizzesScanned"`
	SnapshotsChanged int      `json:"snapshotsChanged"`
	QuizzesOverSized []string `json:"quizzesOverSized"`
}

// BankRepairService rewrites stale bank claims. The request path never needs
// it since the pool resolver filters on read.
type BankRepairService struct {
	Banks     BankMaintenanceStore
	Questions QuestionStore
	Quizzes   *QuizService
}

func NewBankRepairService(banks BankMaintenanceStore, questions QuestionStore, quizzes *QuizService) *BankRepairService {
	return &BankRepairService{Banks: banks, Questions: questions, Quizzes: quizzes}
}

// Run repairs the banks of restaurantID ("" for every restaurant) and then
// refreshes the snapshot of every affected quiz.
func (s *BankRepairService) Run(ctx context.Context, restaurantID string) (*RepairReport, error) {
	report := &RepairReport{QuizzesOverSized: []string{}}

	banks, err := s.Banks.ListBanks(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	for _, bank := range banks {
		report.BanksScanned++
		claimed := uniqueStrings(bank.QuestionIDs)
		questions, err := s.Questions.GetQuestionsByIDs(ctx, claimed, bank.RestaurantID, model.QuestionActive)
		if err != nil {
			return nil, err
		}
		valid := make(map[string]struct{}, len(questions))
		for _, q := range questions {
			valid[q.ID] = struct{}{}
		}
		kept := make([]string, 0, len(valid))
		for _, id := range bank.QuestionIDs {
			if _, ok := valid[id]; ok {
				kept = append(kept, id)
				delete(valid, id)
			}
		}
		if len(kept) == len(bank.QuestionIDs) && bank.QuestionCount == len(kept) {
			continue
		}
		if err := s.Banks.ReplaceClaims(ctx, bank.ID, kept); err != nil {
			return nil, err
		}
		report.BanksRepaired++
		report.ClaimsDropped += len(bank.QuestionIDs) - len(kept)
		logger.Log.Info("bank claims repaired",
			zap.String("bankId", bank.ID),
			zap.Int("before", len(bank.QuestionIDs)),
			zap.Int("after", len(kept)))
	}

	quizzes, err := s.Quizzes.Quizzes.ListQuizzes(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}
	for _, quiz := range quizzes {
		report.QuizzesScanned++
		size, err := s.Quizzes.RecomputeSnapshot(ctx, quiz.RestaurantID, quiz.ID)
		if err != nil && !errors.Is(err, util.ErrValidation) {
			return nil, err
		}
		if size != quiz.PoolSizeSnapshot {
			report.SnapshotsChanged++
		}
		if err != nil {
			report.QuizzesOverSized = append(report.QuizzesOverSized, quiz.ID)
		}
	}

	return report, nil
}
