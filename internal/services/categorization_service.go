package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngacho/cashstate/internal/ai"
	"github.com/ngacho/cashstate/internal/core"
	"github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/store"
)

// DefaultBatchSize caps how many transactions go to the model in one request.
const DefaultBatchSize = 200

// CategorizeResult reports what each stage of the pipeline accomplished.
type CategorizeResult struct {
	RuleMatched   []core.Transaction
	AIMatched     []core.Transaction
	Uncategorized []core.Transaction
}

// CategorizationService assigns categories to transactions: user rules first,
// then the model for whatever the rules left over.
type CategorizationService struct {
	transactions store.TransactionStore
	categories   store.CategoryStore
	rules        store.RuleStore
	categorizer  *ai.Categorizer

	batchSize int
	aiTimeout time.Duration
}

func NewCategorizationService(transactions store.TransactionStore, categories store.CategoryStore, rules store.RuleStore, categorizer *ai.Categorizer, batchSize int, aiTimeout time.Duration) *CategorizationService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CategorizationService{
		transactions: transactions,
		categories:   categories,
		rules:        rules,
		categorizer:  categorizer,
		batchSize:    batchSize,
		aiTimeout:    aiTimeout,
	}
}

// Categorize runs the pipeline over the named transactions, or over the
// user's recent transactions when ids is empty (uncategorized ones unless
// force is set). Rule results are persisted before the model is consulted,
// so a model failure loses nothing: the error wraps core.ErrCollaborator and
// the result still carries the rule matches.
func (s *CategorizationService) Categorize(ctx context.Context, userID string, ids []string, force bool) (CategorizeResult, error) {
	var result CategorizeResult

	txns, err := s.loadBatch(ctx, userID, ids, force)
	if err != nil {
		return result, err
	}
	if len(txns) == 0 {
		return result, nil
	}

	rules, err := s.rules.RulesForUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("load rules: %w", err)
	}

	matched, remaining := core.ApplyRules(txns, rules)
	for _, m := range matched {
		updated, err := s.transactions.UpdateCategorization(ctx, m.Transaction.ID, m.Rule.CategoryID, m.Rule.SubcategoryID, core.SourceRule)
		if err != nil {
			return result, fmt.Errorf("apply rule result: %w", err)
		}
		result.RuleMatched = append(result.RuleMatched, updated)
	}

	if s.categorizer == nil || len(remaining) == 0 {
		result.Uncategorized = remaining
		s.logOutcome(ctx, userID, result)
		return result, nil
	}

	aiMatched, uncategorized, err := s.categorizeWithModel(ctx, userID, remaining)
	result.AIMatched = aiMatched
	result.Uncategorized = uncategorized
	s.logOutcome(ctx, userID, result)
	if err != nil {
		// Rule matches above are already persisted; only the model step
		// failed.
		return result, err
	}
	return result, nil
}

func (s *CategorizationService) loadBatch(ctx context.Context, userID string, ids []string, force bool) ([]core.Transaction, error) {
	if len(ids) == 0 {
		txns, err := s.transactions.RecentTransactions(ctx, userID, s.batchSize, !force)
		if err != nil {
			return nil, fmt.Errorf("load recent transactions: %w", err)
		}
		return txns, nil
	}

	txns := make([]core.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := s.transactions.Transaction(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.UserID != userID {
			return nil, fmt.Errorf("transaction %s does not belong to user %s: %w", id, userID, core.ErrNotFound)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *CategorizationService) categorizeWithModel(ctx context.Context, userID string, remaining []core.Transaction) (matched, uncategorized []core.Transaction, err error) {
	categories, err := s.categories.CategoriesForUser(ctx, userID)
	if err != nil {
		return nil, remaining, fmt.Errorf("load categories: %w", err)
	}
	subcategories, err := s.categories.Subcategories(ctx)
	if err != nil {
		return nil, remaining, fmt.Errorf("load subcategories: %w", err)
	}

	pending := make(map[string]core.Transaction, len(remaining))
	for _, t := range remaining {
		pending[t.ID] = t
	}

	for offset := 0; offset < len(remaining); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[offset:end]

		suggestions, batchErr := s.completeBatch(ctx, batch, categories, subcategories)
		if batchErr != nil {
			return matched, leftover(pending, remaining), batchErr
		}

		for _, sug := range suggestions {
			updated, err := s.transactions.UpdateCategorization(ctx, sug.TransactionID, sug.CategoryID, sug.SubcategoryID, core.SourceAI)
			if err != nil {
				return matched, leftover(pending, remaining), fmt.Errorf("apply model result: %w", err)
			}
			matched = append(matched, updated)
			delete(pending, sug.TransactionID)
		}
	}

	return matched, leftover(pending, remaining), nil
}

func (s *CategorizationService) completeBatch(ctx context.Context, batch []core.Transaction, categories []core.Category, subcategories []core.Subcategory) ([]ai.Categorization, error) {
	if s.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()
	}
	return s.categorizer.Categorize(ctx, batch, categories, subcategories)
}

// leftover returns the still-pending transactions in their original order.
func leftover(pending map[string]core.Transaction, order []core.Transaction) []core.Transaction {
	var out []core.Transaction
	for _, t := range order {
		if _, ok := pending[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// CategorizeManual sets a category by hand. When makeRule is set and the
// transaction has a payee, a payee rule is synthesized so future
// transactions from the same payee categorize automatically.
func (s *CategorizationService) CategorizeManual(ctx context.Context, userID, transactionID, categoryID, subcategoryID string, makeRule bool) (core.Transaction, error) {
	if categoryID == "" {
		return core.Transaction{}, fmt.Errorf("%w: category is required", core.ErrInvalidInput)
	}

	t, err := s.transactions.Transaction(ctx, transactionID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.UserID != userID {
		return core.Transaction{}, fmt.Errorf("transaction %s does not belong to user %s: %w", transactionID, userID, core.ErrNotFound)
	}

	updated, err := s.transactions.UpdateCategorization(ctx, transactionID, categoryID, subcategoryID, core.SourceManual)
	if err != nil {
		return core.Transaction{}, err
	}

	if makeRule && t.Payee != "" {
		rule := core.Rule{
			UserID:        userID,
			MatchField:    core.MatchPayee,
			MatchValue:    t.Payee,
			CategoryID:    categoryID,
			SubcategoryID: subcategoryID,
		}
		if _, err := s.rules.CreateRule(ctx, rule); err != nil {
			// The manual assignment stands; the convenience rule does not.
			slog.WarnContext(ctx, "Failed to synthesize payee rule",
				log.FieldUserID, userID,
				log.FieldTransactionID, transactionID,
				log.FieldError, err)
		}
	}
	return updated, nil
}

// CategorizeManyManual applies one manual category to several transactions.
// Transactions are updated in order; on failure the earlier updates stand and
// the returned slice holds them.
func (s *CategorizationService) CategorizeManyManual(ctx context.Context, userID string, transactionIDs []string, categoryID, subcategoryID string) ([]core.Transaction, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category is required", core.ErrInvalidInput)
	}
	if len(transactionIDs) == 0 {
		return nil, fmt.Errorf("%w: no transactions given", core.ErrInvalidInput)
	}

	updated := make([]core.Transaction, 0, len(transactionIDs))
	for _, id := range transactionIDs {
		t, err := s.transactions.Transaction(ctx, id)
		if err != nil {
			return updated, err
		}
		if t.UserID != userID {
			return updated, fmt.Errorf("transaction %s does not belong to user %s: %w", id, userID, core.ErrNotFound)
		}
		u, err := s.transactions.UpdateCategorization(ctx, id, categoryID, subcategoryID, core.SourceManual)
		if err != nil {
			return updated, err
		}
		updated = append(updated, u)
	}
	return updated, nil
}

func (s *CategorizationService) logOutcome(ctx context.Context, userID string, r CategorizeResult) {
	slog.InfoContext(ctx, "Categorization pass finished",
		log.FieldComponent, log.ComponentCategorize,
		log.FieldUserID, userID,
		log.FieldRuleMatches, len(r.RuleMatched),
		log.FieldAIMatches, len(r.AIMatched),
		"uncategorized", len(r.Uncategorized))
}
