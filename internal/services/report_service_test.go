package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/storage"
)

const eps = 1e-9

func newTestReportService(t *testing.T) (*ReportService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewReportService(repo, nil, true), repo
}

func seedUser(t *testing.T, repo *storage.SQLiteRepository, username string) *core.User {
	t.Helper()
	user := &core.User{
		Username:     username,
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

func TestCreateReport_TypeUniqueness(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")

	if _, err := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "My finances"); err != nil {
		t.Fatalf("first CreateReport: %v", err)
	}

	_, err := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Another")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate type error = %v, want ErrConflict", err)
	}

	// A different type is still allowed.
	if _, err := svc.CreateReport(ctx, user.ID, core.ReportFamily, "Family"); err != nil {
		t.Errorf("family CreateReport: %v", err)
	}

	reports, err := svc.ListReports(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("len(reports) = %d, want 2", len(reports))
	}
}

func TestCreateReport_Validation(t *testing.T) {
	svc, repo := newTestReportService(t)
	user := seedUser(t, repo, "alice")

	if _, err := svc.CreateReport(context.Background(), user.ID, "QUARTERLY", "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad type error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateReport(context.Background(), user.ID, core.ReportPersonal, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name error = %v, want ErrValidation", err)
	}
}

func TestOwnershipGuard(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "owner")
	intruder := seedUser(t, repo, "intruder")

	rep, err := svc.CreateReport(ctx, owner.ID, core.ReportPersonal, "Mine")
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	tests := []struct {
		name string
		op   func(userID int64) error
	}{
		{"list balance sheet", func(uid int64) error {
			_, err := svc.ListBalanceSheetItems(ctx, uid, rep.ID)
			return err
		}},
		{"create item", func(uid int64) error {
			_, err := svc.CreateBalanceSheetItem(ctx, uid, rep.ID, core.BalanceSheetItem{
				Category: core.CurrentAsset, Name: "Cash", Amount: 1,
			})
			return err
		}},
		{"cashflow", func(uid int64) error {
			_, err := svc.CashFlow(ctx, uid, rep.ID)
			return err
		}},
		// Last: the owner call succeeds and removes the shared report.
		{"delete report", func(uid int64) error { return svc.DeleteReport(ctx, uid, rep.ID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(intruder.ID); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("intruder error = %v, want ErrUnauthorized", err)
			}
			if err := tt.op(owner.ID); errors.Is(err, ErrUnauthorized) {
				t.Errorf("owner unexpectedly unauthorized: %v", err)
			}
		})
	}

	// A missing report is NotFound regardless of caller.
	if _, err := svc.CashFlow(ctx, owner.ID, 99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing report error = %v, want ErrNotFound", err)
	}
}

func TestItemCRUD_WrongReportIsNotFound(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")

	rep1, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "One")
	rep2, _ := svc.CreateReport(ctx, user.ID, core.ReportFamily, "Two")

	item, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep1.ID, core.BalanceSheetItem{
		Category: core.CurrentAsset, Name: "Cash", Amount: 100,
	})
	if err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	// The item lives in rep1; addressing it through rep2 must not work.
	if err := svc.DeleteBalanceSheetItem(ctx, user.ID, rep2.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-report delete error = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateBalanceSheetItem(ctx, user.ID, rep2.ID, item.ID, *item); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-report update error = %v, want ErrNotFound", err)
	}
}

func TestReconciliation_BalanceSheetToIncomeExpense(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	if _, err := svc.CreateIncomeExpenseItem(ctx, user.ID, rep.ID, core.IncomeExpenseItem{
		Type: core.Income, Category: core.AssetIncome, Name: "Stock A", Amount: 50,
	}); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}

	// Writing the balance-sheet side propagates amount and non-nil interest
	// fields onto the same-named counterpart.
	if _, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.InvestmentAsset, Name: "Stock A", Amount: 100,
		InterestAmount: fptr(7),
	}); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	ieItems, err := svc.ListIncomeExpenseItems(ctx, user.ID, rep.ID)
	if err != nil {
		t.Fatalf("ListIncomeExpenseItems: %v", err)
	}
	if len(ieItems) != 1 {
		t.Fatalf("len(ieItems) = %d, want 1 (no counterpart creation)", len(ieItems))
	}
	got := ieItems[0]
	if math.Abs(got.Amount-100) > eps {
		t.Errorf("counterpart amount = %v, want 100", got.Amount)
	}
	if got.InterestAmount == nil || math.Abs(*got.InterestAmount-7) > eps {
		t.Errorf("counterpart interestAmount = %v, want 7", got.InterestAmount)
	}
	// isInterest was nil on the balance-sheet item, so the counterpart keeps
	// its original value.
	if got.IsInterest {
		t.Error("counterpart isInterest changed despite nil source field")
	}
}

func TestReconciliation_IncomeExpenseToBalanceSheet(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	if _, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.InvestmentDebt, Name: "Mortgage", Amount: 300000,
	}); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	if _, err := svc.CreateIncomeExpenseItem(ctx, user.ID, rep.ID, core.IncomeExpenseItem{
		Type: core.Expense, Category: core.LoanRepayment, Name: "Mortgage",
		Amount: 1500, IsInterest: true, InterestAmount: fptr(400),
	}); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}

	bsItems, err := svc.ListBalanceSheetItems(ctx, user.ID, rep.ID)
	if err != nil {
		t.Fatalf("ListBalanceSheetItems: %v", err)
	}
	if len(bsItems) != 1 {
		t.Fatalf("len(bsItems) = %d, want 1", len(bsItems))
	}
	got := bsItems[0]
	if math.Abs(got.Amount-1500) > eps {
		t.Errorf("counterpart amount = %v, want 1500", got.Amount)
	}
	if got.IsInterest == nil || !*got.IsInterest {
		t.Errorf("counterpart isInterest = %v, want true", got.IsInterest)
	}
	if got.InterestAmount == nil || math.Abs(*got.InterestAmount-400) > eps {
		t.Errorf("counterpart interestAmount = %v, want 400", got.InterestAmount)
	}
}

func TestReconciliation_NoMatchIsNoop(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	if _, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.CurrentAsset, Name: "Cash", Amount: 500,
	}); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	ieItems, _ := svc.ListIncomeExpenseItems(ctx, user.ID, rep.ID)
	if len(ieItems) != 0 {
		t.Errorf("len(ieItems) = %d, want 0 (reconciler never creates)", len(ieItems))
	}
}

func TestReconciliation_FirstMatchOnly(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	for _, amount := range []float64{10, 20} {
		if _, err := svc.CreateIncomeExpenseItem(ctx, user.ID, rep.ID, core.IncomeExpenseItem{
			Type: core.Income, Category: core.AssetIncome, Name: "Dividends", Amount: amount,
		}); err != nil {
			t.Fatalf("CreateIncomeExpenseItem: %v", err)
		}
	}

	if _, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.InvestmentAsset, Name: "Dividends", Amount: 999,
	}); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	ieItems, _ := svc.ListIncomeExpenseItems(ctx, user.ID, rep.ID)
	if len(ieItems) != 2 {
		t.Fatalf("len(ieItems) = %d, want 2", len(ieItems))
	}
	if math.Abs(ieItems[0].Amount-999) > eps {
		t.Errorf("first match amount = %v, want 999", ieItems[0].Amount)
	}
	if math.Abs(ieItems[1].Amount-20) > eps {
		t.Errorf("second item amount = %v, want 20 (untouched)", ieItems[1].Amount)
	}
}

func TestCashFlow_Endpoint(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	if _, err := svc.CreateIncomeExpenseItem(ctx, user.ID, rep.ID, core.IncomeExpenseItem{
		Type: core.Income, Category: core.LaborIncome, Name: "Salary", Amount: 5000,
	}); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}
	if _, err := svc.CreateIncomeExpenseItem(ctx, user.ID, rep.ID, core.IncomeExpenseItem{
		Type: core.Expense, Category: core.LivingExpense, Name: "Rent", Amount: 1200,
	}); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}

	summary, err := svc.CashFlow(ctx, user.ID, rep.ID)
	if err != nil {
		t.Fatalf("CashFlow: %v", err)
	}
	if math.Abs(summary.TotalIncome-5000) > eps {
		t.Errorf("totalIncome = %v, want 5000", summary.TotalIncome)
	}
	if math.Abs(summary.TotalExpense-1200) > eps {
		t.Errorf("totalExpense = %v, want 1200", summary.TotalExpense)
	}
	if math.Abs(summary.NetCashFlow-3800) > eps {
		t.Errorf("netCashFlow = %v, want 3800", summary.NetCashFlow)
	}
}

func TestDeleteReport_Cascade(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	item, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.CurrentAsset, Name: "Cash", Amount: 100,
	})
	if err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	if err := svc.DeleteReport(ctx, user.ID, rep.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}

	if _, err := repo.GetReport(ctx, rep.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("report still present after delete: %v", err)
	}
	if _, err := repo.GetBalanceSheetItem(ctx, item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("item still present after cascade delete: %v", err)
	}
}

func TestDeleteReport_NoCascade(t *testing.T) {
	_, repo := newTestReportService(t)
	svc := NewReportService(repo, nil, false)
	ctx := context.Background()
	user := seedUser(t, repo, "bob")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	item, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, core.BalanceSheetItem{
		Category: core.CurrentAsset, Name: "Cash", Amount: 100,
	})
	if err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	// A worker-written snapshot must not block deletion either.
	if err := repo.SaveSnapshot(ctx, storage.Snapshot{ReportID: rep.ID, NetCashFlow: 100, ComputedAt: time.Now()}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := svc.DeleteReport(ctx, user.ID, rep.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}

	if _, err := repo.GetBalanceSheetItem(ctx, item.ID); err != nil {
		t.Errorf("item should survive without cascade: %v", err)
	}

	// The snapshot row follows its report.
	pending, err := repo.PendingSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSnapshots: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d, want 0 after report deletion", len(pending))
	}
}

func TestNetWorth(t *testing.T) {
	svc, repo := newTestReportService(t)
	ctx := context.Background()
	user := seedUser(t, repo, "alice")
	rep, _ := svc.CreateReport(ctx, user.ID, core.ReportPersonal, "Mine")

	items := []core.BalanceSheetItem{
		{Category: core.CurrentAsset, Name: "Cash", Amount: 1000},
		{Category: core.InvestmentAsset, Name: "Stocks", Amount: 4000},
		{Category: core.ConsumerDebt, Name: "Card", Amount: 500},
	}
	for _, it := range items {
		if _, err := svc.CreateBalanceSheetItem(ctx, user.ID, rep.ID, it); err != nil {
			t.Fatalf("CreateBalanceSheetItem: %v", err)
		}
	}

	nw, err := svc.NetWorth(ctx, user.ID, rep.ID)
	if err != nil {
		t.Fatalf("NetWorth: %v", err)
	}
	if math.Abs(nw.TotalAssets-5000) > eps {
		t.Errorf("totalAssets = %v, want 5000", nw.TotalAssets)
	}
	if math.Abs(nw.TotalDebts-500) > eps {
		t.Errorf("totalDebts = %v, want 500", nw.TotalDebts)
	}
	if math.Abs(nw.NetWorth-4500) > eps {
		t.Errorf("netWorth = %v, want 4500", nw.NetWorth)
	}
}
