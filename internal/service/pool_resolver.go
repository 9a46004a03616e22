package service

import (
	"context"
	"sort"
	"staff_training_backend/internal/model"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// PoolResolver computes the set of question ids a quiz can draw from. It only
// reads: ids claimed by a bank that are missing, foreign or not active are
// dropped without touching the bank.
type PoolResolver struct {
	Banks     BankStore
	Questions QuestionStore
}

func NewPoolResolver(banks BankStore, questions QuestionStore) *PoolResolver {
	return &PoolResolver{Banks: banks, Questions: questions}
}

// ClaimedIDs is the deduplicated union of the ids the tenant's banks claim,
// without checking the questions themselves.
func (r *PoolResolver) ClaimedIDs(ctx context.Context, bankIDs []string, restaurantID string) ([]string, error) {
	bankIDs = uniqueStrings(bankIDs)
	if len(bankIDs) == 0 {
		return []string{}, nil
	}

	banks, err := r.Banks.GetBanksByIDs(ctx, bankIDs, restaurantID)
	if err != nil {
		return nil, err
	}

	var claimed []string
	for _, b := range banks {
		if b.RestaurantID != restaurantID {
			continue
		}
		claimed = append(claimed, b.QuestionIDs...)
	}
	return uniqueStrings(claimed), nil
}

// ResolvePool returns the sorted, deduplicated, validated pool. No matching
// bank yields an empty pool, not an error.
func (r *PoolResolver) ResolvePool(ctx context.Context, bankIDs []string, restaurantID string) ([]string, error) {
	claimed, err := r.ClaimedIDs(ctx, bankIDs, restaurantID)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return []string{}, nil
	}

	questions, err := r.Questions.GetQuestionsByIDs(ctx, claimed, restaurantID, model.QuestionActive)
	if err != nil {
		return nil, err
	}

	valid := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if q.RestaurantID != restaurantID || q.Status != model.QuestionActive {
			continue
		}
		valid[q.ID] = struct{}{}
	}

	pool := make([]string, 0, len(valid))
	for _, id := range claimed {
		if _, ok := valid[id]; ok {
			pool = append(pool, id)
		}
	}
	sort.Strings(pool)

	if dropped := len(claimed) - len(pool); dropped > 0 {
		monitoring.PoolDroppedQuestions.Add(float64(dropped))
		logger.Log.Debug("pool dropped stale question references",
			zap.String("restaurantId", restaurantID),
			zap.Strings("bankIds", uniqueStrings(bankIDs)),
			zap.Int("dropped", dropped))
	}

	return pool, nil
}

// uniqueStrings drops empty and repeated values, keeping first-seen order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
