package core

import (
	"errors"
	"testing"
)

func TestReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		report  Report
		wantErr error
	}{
		{
			name:   "valid personal report",
			report: Report{Type: ReportPersonal, Name: "My finances"},
		},
		{
			name:   "valid family report",
			report: Report{Type: ReportFamily, Name: "Household"},
		},
		{
			name:    "unknown type",
			report:  Report{Type: "SHARED", Name: "x"},
			wantErr: ErrInvalidReportType,
		},
		{
			name:    "blank name",
			report:  Report{Type: ReportPersonal, Name: "   "},
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.report.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBalanceSheetItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    BalanceSheetItem
		wantErr error
	}{
		{
			name: "valid asset",
			item: BalanceSheetItem{Category: CurrentAsset, Name: "Savings", Amount: 100},
		},
		{
			name: "valid debt",
			item: BalanceSheetItem{Category: ConsumerDebt, Name: "Card", Amount: 500},
		},
		{
			name:    "empty name",
			item:    BalanceSheetItem{Category: CurrentAsset, Amount: 100},
			wantErr: ErrEmptyName,
		},
		{
			name:    "bad category",
			item:    BalanceSheetItem{Category: "CRYPTO", Name: "x", Amount: 1},
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "negative amount",
			item:    BalanceSheetItem{Category: CurrentAsset, Name: "x", Amount: -1},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIncomeExpenseItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    IncomeExpenseItem
		wantErr error
	}{
		{
			name: "valid income",
			item: IncomeExpenseItem{Type: Income, Category: LaborIncome, Name: "Salary", Amount: 1},
		},
		{
			name:    "bad type",
			item:    IncomeExpenseItem{Type: "TRANSFER", Category: LaborIncome, Name: "x", Amount: 1},
			wantErr: ErrInvalidType,
		},
		{
			name:    "bad category",
			item:    IncomeExpenseItem{Type: Expense, Category: "FUN", Name: "x", Amount: 1},
			wantErr: ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBalanceCategorySides(t *testing.T) {
	assets := []BalanceCategory{CurrentAsset, InvestmentAsset, PersonalAsset}
	debts := []BalanceCategory{ConsumerDebt, InvestmentDebt, PersonalDebt}

	for _, c := range assets {
		if !c.IsAsset() || c.IsDebt() {
			t.Errorf("%s should be an asset", c)
		}
	}
	for _, c := range debts {
		if !c.IsDebt() || c.IsAsset() {
			t.Errorf("%s should be a debt", c)
		}
	}
}
