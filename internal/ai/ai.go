// Package ai categorizes transactions with a language model. The model is an
// external collaborator: every failure crosses back as core.ErrCollaborator so
// callers can keep the results they already have.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ngacho/cashstate/internal/core"
)

// Model is the completion surface the categorizer talks to. Implementations
// wrap a real provider; tests supply a canned one.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Categorization is one model suggestion for one transaction.
type Categorization struct {
	TransactionID string  `json:"transaction_id"`
	CategoryID    string  `json:"category_id"`
	SubcategoryID string  `json:"subcategory_id"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// Categorizer turns a batch of transactions plus the user's taxonomy into a
// prompt, and the model's reply into validated categorizations.
type Categorizer struct {
	model Model
}

func NewCategorizer(model Model) *Categorizer {
	return &Categorizer{model: model}
}

// Categorize asks the model for one suggestion per transaction. Suggestions
// naming a category outside the taxonomy are dropped, not errored: a partial
// batch is still useful.
func (c *Categorizer) Categorize(ctx context.Context, txns []core.Transaction, categories []core.Category, subcategories []core.Subcategory) ([]Categorization, error) {
	if len(txns) == 0 {
		return nil, nil
	}

	prompt := BuildPrompt(txns, categories, subcategories)

	raw, err := c.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: model completion: %v", core.ErrCollaborator, err)
	}

	var suggestions []Categorization
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &suggestions); err != nil {
		return nil, fmt.Errorf("%w: parse model output: %v", core.ErrCollaborator, err)
	}

	return validate(suggestions, txns, categories, subcategories), nil
}

// BuildPrompt renders the taxonomy and the batch as strict-JSON instructions.
func BuildPrompt(txns []core.Transaction, categories []core.Category, subcategories []core.Subcategory) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant that categorizes bank transactions.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Assign ONE category (and optionally one subcategory) to EACH transaction below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects, one per transaction.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"transaction_id\": string, copied from the input\n")
	b.WriteString("- \"category_id\": string, one of the category ids below\n")
	b.WriteString("- \"subcategory_id\": string, one of the subcategory ids below, or \"\" if none fits\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n")
	b.WriteString("- \"reasoning\": string, one short sentence\n\n")

	b.WriteString("Categories:\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "- id=%s name=%q\n", cat.ID, cat.Name)
	}
	b.WriteString("\nSubcategories:\n")
	for _, sub := range subcategories {
		fmt.Fprintf(&b, "- id=%s category_id=%s name=%q\n", sub.ID, sub.CategoryID, sub.Name)
	}

	b.WriteString("\nTransactions:\n")
	for _, t := range txns {
		fmt.Fprintf(&b, "- id=%s date=%s amount=%.2f payee=%q description=%q memo=%q\n",
			t.ID, t.Posted.Format("2006-01-02"), t.Amount, t.Payee, t.Description, t.Memo)
	}

	return b.String()
}

// validate keeps only suggestions that reference a transaction from the batch
// and a category (and, when set, subcategory) from the taxonomy.
func validate(suggestions []Categorization, txns []core.Transaction, categories []core.Category, subcategories []core.Subcategory) []Categorization {
	txnSet := make(map[string]struct{}, len(txns))
	for _, t := range txns {
		txnSet[t.ID] = struct{}{}
	}
	catSet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		catSet[c.ID] = struct{}{}
	}
	subParent := make(map[string]string, len(subcategories))
	for _, s := range subcategories {
		subParent[s.ID] = s.CategoryID
	}

	var out []Categorization
	for _, s := range suggestions {
		if _, ok := txnSet[s.TransactionID]; !ok {
			continue
		}
		if _, ok := catSet[s.CategoryID]; !ok {
			continue
		}
		if s.SubcategoryID != "" {
			parent, ok := subParent[s.SubcategoryID]
			if !ok || parent != s.CategoryID {
				// Subcategory outside the category: keep the category alone.
				s.SubcategoryID = ""
			}
		}
		out = append(out, s)
	}
	return out
}

// cleanModelJSON strips markdown code fences and any chatter around the JSON
// array. Models wrap output in ```json fences despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep from the first '[' to the last ']' so leading or trailing prose
	// does not break the parse.
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start != -1 && end != -1 && end > start {
		s = s[start : end+1]
	}
	return s
}
