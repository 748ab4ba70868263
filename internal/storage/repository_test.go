package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cashflow/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUserAndReport(t *testing.T, repo *SQLiteRepository) (*core.User, *core.Report) {
	t.Helper()
	ctx := context.Background()

	user := &core.User{Username: "alice", PasswordHash: "x", Email: "alice@example.com"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	report := &core.Report{UserID: user.ID, Type: core.ReportPersonal, Name: "My finances"}
	if err := repo.CreateReport(ctx, report); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	return user, report
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	age := 30
	user := &core.User{
		Username:     "bob",
		PasswordHash: "hash",
		Email:        "bob@example.com",
		Phone:        "123456",
		Gender:       core.GenderMale,
		Age:          &age,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("CreateUser should assign ID")
	}

	got, err := repo.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.Email != "bob@example.com" || got.Gender != core.GenderMale {
		t.Errorf("unexpected user: %+v", got)
	}
	if got.Age == nil || *got.Age != 30 {
		t.Errorf("Age = %v, want 30", got.Age)
	}

	if _, err := repo.GetUserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID(missing) = %v, want ErrNotFound", err)
	}

	exists, err := repo.UsernameExists(ctx, "bob")
	if err != nil || !exists {
		t.Errorf("UsernameExists(bob) = %v, %v; want true", exists, err)
	}
}

func TestGetUserByIdentifier(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := &core.User{Username: "carol", PasswordHash: "x", Email: "carol@example.com", Phone: "555"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, identifier := range []string{"carol", "carol@example.com", "555"} {
		got, err := repo.GetUserByIdentifier(ctx, identifier)
		if err != nil {
			t.Errorf("GetUserByIdentifier(%q): %v", identifier, err)
			continue
		}
		if got.ID != user.ID {
			t.Errorf("GetUserByIdentifier(%q) = user %d, want %d", identifier, got.ID, user.ID)
		}
	}
}

func TestReportCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, report := seedUserAndReport(t, repo)

	got, err := repo.GetReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.UserID != user.ID || got.Type != core.ReportPersonal {
		t.Errorf("unexpected report: %+v", got)
	}

	exists, err := repo.ReportTypeExists(ctx, user.ID, core.ReportPersonal)
	if err != nil || !exists {
		t.Errorf("ReportTypeExists = %v, %v; want true", exists, err)
	}
	exists, err = repo.ReportTypeExists(ctx, user.ID, core.ReportFamily)
	if err != nil || exists {
		t.Errorf("ReportTypeExists(FAMILY) = %v, %v; want false", exists, err)
	}

	reports, err := repo.ListReportsByUser(ctx, user.ID)
	if err != nil || len(reports) != 1 {
		t.Fatalf("ListReportsByUser = %v, %v; want 1 report", reports, err)
	}

	if err := repo.DeleteReport(ctx, report.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if _, err := repo.GetReport(ctx, report.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetReport(deleted) = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteReport(ctx, report.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteReport(twice) = %v, want ErrNotFound", err)
	}
}

func TestBalanceSheetItemCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, report := seedUserAndReport(t, repo)

	isInterest := true
	interest := 200.0
	item := &core.BalanceSheetItem{
		ReportID:       report.ID,
		Category:       core.PersonalDebt,
		Name:           "Mortgage",
		Amount:         180000,
		IsInterest:     &isInterest,
		InterestAmount: &interest,
		Note:           "30y fixed",
	}
	if err := repo.CreateBalanceSheetItem(ctx, item); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}

	got, err := repo.GetBalanceSheetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetBalanceSheetItem: %v", err)
	}
	if got.IsInterest == nil || !*got.IsInterest {
		t.Error("IsInterest should round-trip as true")
	}
	if got.InterestAmount == nil || *got.InterestAmount != 200 {
		t.Errorf("InterestAmount = %v, want 200", got.InterestAmount)
	}

	got.Amount = 175000
	got.InterestAmount = nil
	if err := repo.UpdateBalanceSheetItem(ctx, got); err != nil {
		t.Fatalf("UpdateBalanceSheetItem: %v", err)
	}
	updated, err := repo.GetBalanceSheetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetBalanceSheetItem after update: %v", err)
	}
	if updated.Amount != 175000 {
		t.Errorf("Amount = %v, want 175000", updated.Amount)
	}
	if updated.InterestAmount != nil {
		t.Errorf("InterestAmount = %v, want nil", updated.InterestAmount)
	}

	items, err := repo.ListBalanceSheetItems(ctx, report.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListBalanceSheetItems = %d items, %v; want 1", len(items), err)
	}

	if err := repo.DeleteBalanceSheetItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteBalanceSheetItem: %v", err)
	}
	if _, err := repo.GetBalanceSheetItem(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBalanceSheetItem(deleted) = %v, want ErrNotFound", err)
	}
}

func TestIncomeExpenseItemCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, report := seedUserAndReport(t, repo)

	item := &core.IncomeExpenseItem{
		ReportID:   report.ID,
		Type:       core.Expense,
		Category:   core.LivingExpense,
		Name:       "Groceries",
		Amount:     600,
		IsInterest: false,
	}
	if err := repo.CreateIncomeExpenseItem(ctx, item); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}

	item.Amount = 650
	item.IsInterest = true
	if err := repo.UpdateIncomeExpenseItem(ctx, item); err != nil {
		t.Fatalf("UpdateIncomeExpenseItem: %v", err)
	}

	got, err := repo.GetIncomeExpenseItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetIncomeExpenseItem: %v", err)
	}
	if got.Amount != 650 || !got.IsInterest {
		t.Errorf("unexpected item after update: %+v", got)
	}
	if got.InterestAmount != nil {
		t.Errorf("InterestAmount = %v, want nil", got.InterestAmount)
	}

	items, err := repo.ListIncomeExpenseItems(ctx, report.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListIncomeExpenseItems = %d items, %v; want 1", len(items), err)
	}
}

func TestDeleteReportItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, report := seedUserAndReport(t, repo)

	bs := &core.BalanceSheetItem{ReportID: report.ID, Category: core.CurrentAsset, Name: "Cash", Amount: 100}
	if err := repo.CreateBalanceSheetItem(ctx, bs); err != nil {
		t.Fatalf("CreateBalanceSheetItem: %v", err)
	}
	ie := &core.IncomeExpenseItem{ReportID: report.ID, Type: core.Income, Category: core.LaborIncome, Name: "Salary", Amount: 1000}
	if err := repo.CreateIncomeExpenseItem(ctx, ie); err != nil {
		t.Fatalf("CreateIncomeExpenseItem: %v", err)
	}

	if err := repo.DeleteReportItems(ctx, report.ID); err != nil {
		t.Fatalf("DeleteReportItems: %v", err)
	}

	bsItems, _ := repo.ListBalanceSheetItems(ctx, report.ID)
	ieItems, _ := repo.ListIncomeExpenseItems(ctx, report.ID)
	if len(bsItems) != 0 || len(ieItems) != 0 {
		t.Errorf("items remain after cascade: bs=%d ie=%d", len(bsItems), len(ieItems))
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, report := seedUserAndReport(t, repo)

	snap := Snapshot{
		ReportID:    report.ID,
		TotalIncome: 4000,
		TotalExpense: 1500,
		NetCashFlow: 2500,
		TotalAssets: 10000,
		TotalDebts:  3000,
		NetWorth:    7000,
	}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	pending, err := repo.PendingSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSnapshots: %v", err)
	}
	if len(pending) != 1 || pending[0].ReportID != report.ID {
		t.Fatalf("pending = %+v, want 1 snapshot for report %d", pending, report.ID)
	}

	if err := repo.MarkSnapshotSynced(ctx, report.ID); err != nil {
		t.Fatalf("MarkSnapshotSynced: %v", err)
	}
	pending, err = repo.PendingSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSnapshots after sync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d, want 0", len(pending))
	}

	// Re-saving resets the synced flag.
	snap.NetCashFlow = 2600
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot (update): %v", err)
	}
	pending, err = repo.PendingSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSnapshots after update: %v", err)
	}
	if len(pending) != 1 || pending[0].NetCashFlow != 2600 {
		t.Errorf("pending after update = %+v, want updated snapshot", pending)
	}
}
