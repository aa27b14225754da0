package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthStart(t *testing.T) {
	cases := []struct {
		year, month int
		ok          bool
	}{
		{2025, 1, true},
		{2025, 12, true},
		{2025, 0, false},
		{2025, 13, false},
		{2025, -3, false},
	}
	for i, tc := range cases {
		got, err := MonthStart(tc.year, tc.month)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d: unexpected error %v", i, err)
			}
			if got.Day() != 1 || got.Hour() != 0 {
				t.Fatalf("case %d: not normalized to first of month: %v", i, got)
			}
		} else if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestMonthEndDecemberRollsOver(t *testing.T) {
	dec, _ := MonthStart(2025, 12)
	end := MonthEnd(dec)
	if end.Year() != 2026 || end.Month() != time.January || end.Day() != 1 {
		t.Fatalf("end = %v, want 2026-01-01", end)
	}
}

func TestGoalValidate(t *testing.T) {
	good := Goal{Name: "Emergency fund", Type: GoalSavings, TargetAmount: 10000}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Goal{
		{Name: "", Type: GoalSavings, TargetAmount: 100},
		{Name: "x", Type: GoalType("retirement"), TargetAmount: 100},
		{Name: "x", Type: GoalDebtPayment, TargetAmount: 0},
		{Name: "x", Type: GoalSavings, TargetAmount: -5},
	}
	for i, g := range bads {
		if err := g.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	good := Rule{MatchField: MatchPayee, MatchValue: "netflix", CategoryID: "c1"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Rule{
		{MatchField: MatchField("amount"), MatchValue: "x", CategoryID: "c1"},
		{MatchField: MatchPayee, MatchValue: "  ", CategoryID: "c1"},
		{MatchField: MatchPayee, MatchValue: "x"},
	}
	for i, r := range bads {
		if err := r.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestTransactionField(t *testing.T) {
	txn := Transaction{Payee: "p", Description: "d", Memo: "m"}
	if txn.Field(MatchPayee) != "p" || txn.Field(MatchDescription) != "d" || txn.Field(MatchMemo) != "m" {
		t.Fatalf("field lookup mismatch")
	}
	if txn.Field(MatchField("other")) != "" {
		t.Fatalf("unknown field should be empty")
	}
}
