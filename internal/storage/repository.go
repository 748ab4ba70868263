package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cashflow/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Snapshot is the worker-side record of a report's last computed cash flow.
type Snapshot struct {
	ReportID     int64
	TotalIncome  float64
	TotalExpense float64
	NetCashFlow  float64
	TotalAssets  float64
	TotalDebts   float64
	NetWorth     float64
	ComputedAt   time.Time
	Synced       bool
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// The pragma goes in the DSN so every pooled connection enforces
	// foreign keys, not just the one a bare Exec would run on.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ===== Users =====

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email, phone, gender, age, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.Email, u.Phone, string(u.Gender), intPtrToNull(u.Age), u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user last insert id: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID, "username", u.Username)
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, phone, gender, age, created_at
		 FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, phone, gender, age, created_at
		 FROM users WHERE username = ?`, username))
}

// GetUserByIdentifier looks a user up by username, email, or phone, in that
// order of precedence.
func (r *SQLiteRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, phone, gender, age, created_at
		 FROM users WHERE username = ? OR email = ? OR phone = ?
		 ORDER BY CASE WHEN username = ? THEN 0 WHEN email = ? THEN 1 ELSE 2 END
		 LIMIT 1`,
		identifier, identifier, identifier, identifier, identifier))
}

func (r *SQLiteRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count usernames: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, phone = ?, gender = ?, age = ?
		 WHERE id = ?`,
		u.Username, u.Email, u.Phone, string(u.Gender), intPtrToNull(u.Age), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*core.User, error) {
	var (
		u        core.User
		gender   string
		age      sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Phone, &gender, &age, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Gender = core.Gender(gender)
	u.Age = nullToIntPtr(age)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// ===== Reports =====

func (r *SQLiteRepository) CreateReport(ctx context.Context, rep *core.Report) error {
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (user_id, type, name, created_at) VALUES (?, ?, ?, ?)`,
		rep.UserID, string(rep.Type), rep.Name, rep.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	rep.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("report last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Report saved to SQLite",
		"id", rep.ID, "user_id", rep.UserID, "report_type", string(rep.Type))
	return nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, id int64) (*core.Report, error) {
	var (
		rep       core.Report
		repType   string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, name, created_at FROM reports WHERE id = ?`, id,
	).Scan(&rep.ID, &rep.UserID, &repType, &rep.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rep.Type = core.ReportType(repType)
	rep.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rep, nil
}

func (r *SQLiteRepository) ListReportsByUser(ctx context.Context, userID int64) ([]core.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, name, created_at FROM reports WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]core.Report, 0)
	for rows.Next() {
		var (
			rep       core.Report
			repType   string
			createdAt int64
		)
		if err := rows.Scan(&rep.ID, &rep.UserID, &repType, &rep.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.Type = core.ReportType(repType)
		rep.CreatedAt = time.Unix(createdAt, 0).UTC()
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

func (r *SQLiteRepository) ReportTypeExists(ctx context.Context, userID int64, t core.ReportType) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM reports WHERE user_id = ? AND type = ?`, userID, string(t)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count reports by type: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteReport(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireRow(res)
}

// DeleteReportItems removes both item collections of a report in one
// transaction. Used by the configurable cascade on report deletion.
func (r *SQLiteRepository) DeleteReportItems(ctx context.Context, reportID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balance_sheet_items WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("delete balance sheet items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM income_expense_items WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("delete income expense items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cashflow_snapshots WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ===== Balance sheet items =====

func (r *SQLiteRepository) CreateBalanceSheetItem(ctx context.Context, it *core.BalanceSheetItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO balance_sheet_items (report_id, category, name, amount, is_interest, interest_amount, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.ReportID, string(it.Category), it.Name, it.Amount,
		boolPtrToNull(it.IsInterest), floatPtrToNull(it.InterestAmount), it.Note,
	)
	if err != nil {
		return fmt.Errorf("insert balance sheet item: %w", err)
	}

	it.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("balance sheet item last insert id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBalanceSheetItem(ctx context.Context, id int64) (*core.BalanceSheetItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, report_id, category, name, amount, is_interest, interest_amount, note
		 FROM balance_sheet_items WHERE id = ?`, id)

	it, err := scanBalanceSheetItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan balance sheet item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) UpdateBalanceSheetItem(ctx context.Context, it *core.BalanceSheetItem) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE balance_sheet_items
		 SET category = ?, name = ?, amount = ?, is_interest = ?, interest_amount = ?, note = ?
		 WHERE id = ?`,
		string(it.Category), it.Name, it.Amount,
		boolPtrToNull(it.IsInterest), floatPtrToNull(it.InterestAmount), it.Note, it.ID,
	)
	if err != nil {
		return fmt.Errorf("update balance sheet item: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteBalanceSheetItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM balance_sheet_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete balance sheet item: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ListBalanceSheetItems(ctx context.Context, reportID int64) ([]core.BalanceSheetItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, report_id, category, name, amount, is_interest, interest_amount, note
		 FROM balance_sheet_items WHERE report_id = ? ORDER BY id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query balance sheet items: %w", err)
	}
	defer rows.Close()

	items := make([]core.BalanceSheetItem, 0)
	for rows.Next() {
		it, err := scanBalanceSheetItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan balance sheet item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance sheet items: %w", err)
	}
	return items, nil
}

// ===== Income / expense items =====

func (r *SQLiteRepository) CreateIncomeExpenseItem(ctx context.Context, it *core.IncomeExpenseItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO income_expense_items (report_id, type, category, name, amount, is_interest, interest_amount, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ReportID, string(it.Type), string(it.Category), it.Name, it.Amount,
		it.IsInterest, floatPtrToNull(it.InterestAmount), it.Note,
	)
	if err != nil {
		return fmt.Errorf("insert income expense item: %w", err)
	}

	it.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("income expense item last insert id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetIncomeExpenseItem(ctx context.Context, id int64) (*core.IncomeExpenseItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, report_id, type, category, name, amount, is_interest, interest_amount, note
		 FROM income_expense_items WHERE id = ?`, id)

	it, err := scanIncomeExpenseItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan income expense item: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) UpdateIncomeExpenseItem(ctx context.Context, it *core.IncomeExpenseItem) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE income_expense_items
		 SET type = ?, category = ?, name = ?, amount = ?, is_interest = ?, interest_amount = ?, note = ?
		 WHERE id = ?`,
		string(it.Type), string(it.Category), it.Name, it.Amount,
		it.IsInterest, floatPtrToNull(it.InterestAmount), it.Note, it.ID,
	)
	if err != nil {
		return fmt.Errorf("update income expense item: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteIncomeExpenseItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM income_expense_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income expense item: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ListIncomeExpenseItems(ctx context.Context, reportID int64) ([]core.IncomeExpenseItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, report_id, type, category, name, amount, is_interest, interest_amount, note
		 FROM income_expense_items WHERE report_id = ? ORDER BY id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query income expense items: %w", err)
	}
	defer rows.Close()

	items := make([]core.IncomeExpenseItem, 0)
	for rows.Next() {
		it, err := scanIncomeExpenseItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan income expense item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate income expense items: %w", err)
	}
	return items, nil
}

// ===== Snapshots =====

// SaveSnapshot upserts a report's computed snapshot and marks it pending sync.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s Snapshot) error {
	if s.ComputedAt.IsZero() {
		s.ComputedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cashflow_snapshots
		 (report_id, total_income, total_expense, net_cash_flow, total_assets, total_debts, net_worth, computed_at, synced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(report_id) DO UPDATE SET
		   total_income = excluded.total_income,
		   total_expense = excluded.total_expense,
		   net_cash_flow = excluded.net_cash_flow,
		   total_assets = excluded.total_assets,
		   total_debts = excluded.total_debts,
		   net_worth = excluded.net_worth,
		   computed_at = excluded.computed_at,
		   synced = 0`,
		s.ReportID, s.TotalIncome, s.TotalExpense, s.NetCashFlow,
		s.TotalAssets, s.TotalDebts, s.NetWorth, s.ComputedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// PendingSnapshots returns snapshots not yet exported, oldest first.
func (r *SQLiteRepository) PendingSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT report_id, total_income, total_expense, net_cash_flow, total_assets, total_debts, net_worth, computed_at, synced
		 FROM cashflow_snapshots WHERE synced = 0 ORDER BY computed_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			s          Snapshot
			computedAt int64
		)
		if err := rows.Scan(&s.ReportID, &s.TotalIncome, &s.TotalExpense, &s.NetCashFlow,
			&s.TotalAssets, &s.TotalDebts, &s.NetWorth, &computedAt, &s.Synced); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.ComputedAt = time.Unix(computedAt, 0).UTC()
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *SQLiteRepository) MarkSnapshotSynced(ctx context.Context, reportID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cashflow_snapshots SET synced = 1 WHERE report_id = ?`, reportID)
	if err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}
	return nil
}

// ===== Scan helpers =====

func scanBalanceSheetItem(scan func(...any) error) (*core.BalanceSheetItem, error) {
	var (
		it             core.BalanceSheetItem
		category       string
		isInterest     sql.NullBool
		interestAmount sql.NullFloat64
	)
	err := scan(&it.ID, &it.ReportID, &category, &it.Name, &it.Amount, &isInterest, &interestAmount, &it.Note)
	if err != nil {
		return nil, err
	}
	it.Category = core.BalanceCategory(category)
	it.IsInterest = nullToBoolPtr(isInterest)
	it.InterestAmount = nullToFloatPtr(interestAmount)
	return &it, nil
}

func scanIncomeExpenseItem(scan func(...any) error) (*core.IncomeExpenseItem, error) {
	var (
		it             core.IncomeExpenseItem
		flowType       string
		category       string
		interestAmount sql.NullFloat64
	)
	err := scan(&it.ID, &it.ReportID, &flowType, &category, &it.Name, &it.Amount, &it.IsInterest, &interestAmount, &it.Note)
	if err != nil {
		return nil, err
	}
	it.Type = core.FlowType(flowType)
	it.Category = core.FlowCategory(category)
	it.InterestAmount = nullToFloatPtr(interestAmount)
	return &it, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func intPtrToNull(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullToIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolPtrToNull(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullToBoolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}

func floatPtrToNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullToFloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
