package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ReportPersonal ReportType = "PERSONAL"
	ReportFamily   ReportType = "FAMILY"
)

const (
	CurrentAsset    BalanceCategory = "CURRENT_ASSET"
	InvestmentAsset BalanceCategory = "INVESTMENT_ASSET"
	PersonalAsset   BalanceCategory = "PERSONAL_ASSET"
	ConsumerDebt    BalanceCategory = "CONSUMER_DEBT"
	InvestmentDebt  BalanceCategory = "INVESTMENT_DEBT"
	PersonalDebt    BalanceCategory = "PERSONAL_DEBT"
)

const (
	Income  FlowType = "INCOME"
	Expense FlowType = "EXPENSE"
)

const (
	LaborIncome   FlowCategory = "LABOR_INCOME"
	AssetIncome   FlowCategory = "ASSET_INCOME"
	LivingExpense FlowCategory = "LIVING_EXPENSE"
	AssetExpense  FlowCategory = "ASSET_EXPENSE"
	LoanRepayment FlowCategory = "LOAN_REPAYMENT"
)

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type (
	ReportType      string
	BalanceCategory string
	FlowType        string
	FlowCategory    string
	Gender          string

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		Email        string    `json:"email,omitempty"`
		Phone        string    `json:"phone,omitempty"`
		Gender       Gender    `json:"gender,omitempty"`
		Age          *int      `json:"age,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Report struct {
		ID        int64      `json:"id"`
		UserID    int64      `json:"userId"`
		Type      ReportType `json:"type"`
		Name      string     `json:"name"`
		CreatedAt time.Time  `json:"createdAt"`
	}

	BalanceSheetItem struct {
		ID       int64           `json:"id"`
		ReportID int64           `json:"reportId"`
		Category BalanceCategory `json:"category"`
		Name     string          `json:"name"`
		Amount   float64         `json:"amount"`
		// Interest fields are optional on the balance sheet; nil means
		// "not provided", which reconciliation must leave untouched.
		IsInterest     *bool    `json:"isInterest,omitempty"`
		InterestAmount *float64 `json:"interestAmount,omitempty"`
		Note           string   `json:"note,omitempty"`
	}

	IncomeExpenseItem struct {
		ID             int64        `json:"id"`
		ReportID       int64        `json:"reportId"`
		Type           FlowType     `json:"type"`
		Category       FlowCategory `json:"category"`
		Name           string       `json:"name"`
		Amount         float64      `json:"amount"`
		IsInterest     bool         `json:"isInterest"`
		InterestAmount *float64     `json:"interestAmount,omitempty"`
		Note           string       `json:"note,omitempty"`
	}
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid type")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidReportType = errors.New("invalid report type")
)

func (t ReportType) Valid() bool {
	return t == ReportPersonal || t == ReportFamily
}

// IsAsset reports whether the category is on the asset side of the sheet.
func (c BalanceCategory) IsAsset() bool {
	switch c {
	case CurrentAsset, InvestmentAsset, PersonalAsset:
		return true
	}
	return false
}

// IsDebt reports whether the category is on the debt side of the sheet.
func (c BalanceCategory) IsDebt() bool {
	switch c {
	case ConsumerDebt, InvestmentDebt, PersonalDebt:
		return true
	}
	return false
}

func (c BalanceCategory) Valid() bool {
	return c.IsAsset() || c.IsDebt()
}

func (t FlowType) Valid() bool {
	return t == Income || t == Expense
}

func (c FlowCategory) Valid() bool {
	switch c {
	case LaborIncome, AssetIncome, LivingExpense, AssetExpense, LoanRepayment:
		return true
	}
	return false
}

func (r Report) Validate() error {
	if !r.Type.Valid() {
		return ErrInvalidReportType
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (b BalanceSheetItem) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if !b.Category.Valid() {
		return ErrInvalidCategory
	}
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i IncomeExpenseItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if !i.Type.Valid() {
		return ErrInvalidType
	}
	if !i.Category.Valid() {
		return ErrInvalidCategory
	}
	if i.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}
