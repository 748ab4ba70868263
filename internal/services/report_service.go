package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/storage"
)

// ReportService orchestrates report and item operations: ownership checks,
// CRUD against SQLite, cross-ledger reconciliation, and change events over
// AMQP.
type ReportService struct {
	storage       *storage.SQLiteRepository
	amqpClient    *amqp.Client
	cascadeDelete bool
}

func NewReportService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, cascadeDelete bool) *ReportService {
	return &ReportService{
		storage:       storage,
		amqpClient:    amqpClient,
		cascadeDelete: cascadeDelete,
	}
}

// ensureOwned loads the report and verifies it belongs to userID. Every
// report-scoped operation goes through here first.
func (s *ReportService) ensureOwned(ctx context.Context, reportID, userID int64) (*core.Report, error) {
	rep, err := s.storage.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("report")
		}
		return nil, fmt.Errorf("load report: %w", err)
	}
	if rep.UserID != userID {
		return nil, fmt.Errorf("%w: report belongs to another user", ErrUnauthorized)
	}
	return rep, nil
}

// CreateReport creates a report for the user. A user may own at most one
// report of each type.
func (s *ReportService) CreateReport(ctx context.Context, userID int64, reportType core.ReportType, name string) (*core.Report, error) {
	rep := &core.Report{
		UserID:    userID,
		Type:      reportType,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := rep.Validate(); err != nil {
		return nil, invalid(err)
	}

	exists, err := s.storage.ReportTypeExists(ctx, userID, reportType)
	if err != nil {
		return nil, fmt.Errorf("check report type: %w", err)
	}
	if exists {
		return nil, conflict(fmt.Sprintf("a %s report already exists", reportType))
	}

	if err := s.storage.CreateReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

// ListReports returns all reports owned by the user.
func (s *ReportService) ListReports(ctx context.Context, userID int64) ([]core.Report, error) {
	reports, err := s.storage.ListReportsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// DeleteReport deletes a report owned by the user. Item deletion is an
// explicit step controlled by configuration, not a database cascade.
func (s *ReportService) DeleteReport(ctx context.Context, userID, reportID int64) error {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return err
	}

	if s.cascadeDelete {
		if err := s.storage.DeleteReportItems(ctx, reportID); err != nil {
			return fmt.Errorf("delete report items: %w", err)
		}
	}
	if err := s.storage.DeleteReport(ctx, reportID); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}

	s.publishChange(ctx, reportID, amqp.ChangeReportDeleted)
	return nil
}

// CreateBalanceSheetItem adds a balance-sheet item to an owned report and
// reconciles any same-named income/expense counterpart.
func (s *ReportService) CreateBalanceSheetItem(ctx context.Context, userID, reportID int64, item core.BalanceSheetItem) (*core.BalanceSheetItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}
	item.ReportID = reportID
	if err := item.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.storage.CreateBalanceSheetItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("create balance sheet item: %w", err)
	}

	s.reconcileFromBalanceSheet(ctx, item)
	s.publishChange(ctx, reportID, amqp.ChangeItemWritten)
	return &item, nil
}

// UpdateBalanceSheetItem updates an item after verifying it belongs to the
// owned report, then reconciles the counterpart.
func (s *ReportService) UpdateBalanceSheetItem(ctx context.Context, userID, reportID, itemID int64, item core.BalanceSheetItem) (*core.BalanceSheetItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}

	existing, err := s.storage.GetBalanceSheetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("balance sheet item")
		}
		return nil, fmt.Errorf("load balance sheet item: %w", err)
	}
	if existing.ReportID != reportID {
		return nil, notFound("balance sheet item")
	}

	item.ID = itemID
	item.ReportID = reportID
	if err := item.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.storage.UpdateBalanceSheetItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("update balance sheet item: %w", err)
	}

	s.reconcileFromBalanceSheet(ctx, item)
	s.publishChange(ctx, reportID, amqp.ChangeItemWritten)
	return &item, nil
}

// DeleteBalanceSheetItem removes an item from an owned report.
func (s *ReportService) DeleteBalanceSheetItem(ctx context.Context, userID, reportID, itemID int64) error {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return err
	}

	existing, err := s.storage.GetBalanceSheetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound("balance sheet item")
		}
		return fmt.Errorf("load balance sheet item: %w", err)
	}
	if existing.ReportID != reportID {
		return notFound("balance sheet item")
	}

	if err := s.storage.DeleteBalanceSheetItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete balance sheet item: %w", err)
	}

	s.publishChange(ctx, reportID, amqp.ChangeItemDeleted)
	return nil
}

// ListBalanceSheetItems returns the balance-sheet items of an owned report.
func (s *ReportService) ListBalanceSheetItems(ctx context.Context, userID, reportID int64) ([]core.BalanceSheetItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}
	items, err := s.storage.ListBalanceSheetItems(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list balance sheet items: %w", err)
	}
	return items, nil
}

// CreateIncomeExpenseItem adds an income/expense item to an owned report and
// reconciles any same-named balance-sheet counterpart.
func (s *ReportService) CreateIncomeExpenseItem(ctx context.Context, userID, reportID int64, item core.IncomeExpenseItem) (*core.IncomeExpenseItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}
	item.ReportID = reportID
	if err := item.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.storage.CreateIncomeExpenseItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("create income expense item: %w", err)
	}

	s.reconcileFromIncomeExpense(ctx, item)
	s.publishChange(ctx, reportID, amqp.ChangeItemWritten)
	return &item, nil
}

// UpdateIncomeExpenseItem updates an item after verifying it belongs to the
// owned report, then reconciles the counterpart.
func (s *ReportService) UpdateIncomeExpenseItem(ctx context.Context, userID, reportID, itemID int64, item core.IncomeExpenseItem) (*core.IncomeExpenseItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}

	existing, err := s.storage.GetIncomeExpenseItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("income expense item")
		}
		return nil, fmt.Errorf("load income expense item: %w", err)
	}
	if existing.ReportID != reportID {
		return nil, notFound("income expense item")
	}

	item.ID = itemID
	item.ReportID = reportID
	if err := item.Validate(); err != nil {
		return nil, invalid(err)
	}

	if err := s.storage.UpdateIncomeExpenseItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("update income expense item: %w", err)
	}

	s.reconcileFromIncomeExpense(ctx, item)
	s.publishChange(ctx, reportID, amqp.ChangeItemWritten)
	return &item, nil
}

// DeleteIncomeExpenseItem removes an item from an owned report.
func (s *ReportService) DeleteIncomeExpenseItem(ctx context.Context, userID, reportID, itemID int64) error {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return err
	}

	existing, err := s.storage.GetIncomeExpenseItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound("income expense item")
		}
		return fmt.Errorf("load income expense item: %w", err)
	}
	if existing.ReportID != reportID {
		return notFound("income expense item")
	}

	if err := s.storage.DeleteIncomeExpenseItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete income expense item: %w", err)
	}

	s.publishChange(ctx, reportID, amqp.ChangeItemDeleted)
	return nil
}

// ListIncomeExpenseItems returns the income/expense items of an owned report.
func (s *ReportService) ListIncomeExpenseItems(ctx context.Context, userID, reportID int64) ([]core.IncomeExpenseItem, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}
	items, err := s.storage.ListIncomeExpenseItems(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list income expense items: %w", err)
	}
	return items, nil
}

// CashFlow computes the cash-flow summary for an owned report from the
// current item sets. No caching; every call reads live data.
func (s *ReportService) CashFlow(ctx context.Context, userID, reportID int64) (*core.Summary, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}

	bsItems, err := s.storage.ListBalanceSheetItems(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list balance sheet items: %w", err)
	}
	ieItems, err := s.storage.ListIncomeExpenseItems(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list income expense items: %w", err)
	}

	summary := core.ComputeCashFlow(bsItems, ieItems)
	return &summary, nil
}

// NetWorth rolls up the balance sheet of an owned report.
func (s *ReportService) NetWorth(ctx context.Context, userID, reportID int64) (*core.NetWorth, error) {
	if _, err := s.ensureOwned(ctx, reportID, userID); err != nil {
		return nil, err
	}

	bsItems, err := s.storage.ListBalanceSheetItems(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list balance sheet items: %w", err)
	}

	nw := core.ComputeNetWorth(bsItems)
	return &nw, nil
}

// reconcileFromBalanceSheet copies amount and non-nil interest fields from a
// balance-sheet item onto the first income/expense item with the same name.
// Best-effort: the primary write already succeeded, so failures here are
// logged and swallowed.
func (s *ReportService) reconcileFromBalanceSheet(ctx context.Context, item core.BalanceSheetItem) {
	counterparts, err := s.storage.ListIncomeExpenseItems(ctx, item.ReportID)
	if err != nil {
		slog.ErrorContext(ctx, "Reconciliation scan failed",
			"report_id", item.ReportID, "item_name", item.Name, "error", err)
		return
	}

	for i := range counterparts {
		if counterparts[i].Name != item.Name {
			continue
		}
		c := counterparts[i]
		c.Amount = item.Amount
		if item.IsInterest != nil {
			c.IsInterest = *item.IsInterest
		}
		if item.InterestAmount != nil {
			amt := *item.InterestAmount
			c.InterestAmount = &amt
		}
		if err := s.storage.UpdateIncomeExpenseItem(ctx, &c); err != nil {
			slog.ErrorContext(ctx, "Reconciliation update failed",
				"report_id", item.ReportID, "item_name", item.Name, "error", err)
		}
		return
	}
}

// reconcileFromIncomeExpense is the symmetric direction: copy amount and
// interest fields onto the first balance-sheet item with the same name.
func (s *ReportService) reconcileFromIncomeExpense(ctx context.Context, item core.IncomeExpenseItem) {
	counterparts, err := s.storage.ListBalanceSheetItems(ctx, item.ReportID)
	if err != nil {
		slog.ErrorContext(ctx, "Reconciliation scan failed",
			"report_id", item.ReportID, "item_name", item.Name, "error", err)
		return
	}

	for i := range counterparts {
		if counterparts[i].Name != item.Name {
			continue
		}
		c := counterparts[i]
		c.Amount = item.Amount
		isInterest := item.IsInterest
		c.IsInterest = &isInterest
		if item.InterestAmount != nil {
			amt := *item.InterestAmount
			c.InterestAmount = &amt
		}
		if err := s.storage.UpdateBalanceSheetItem(ctx, &c); err != nil {
			slog.ErrorContext(ctx, "Reconciliation update failed",
				"report_id", item.ReportID, "item_name", item.Name, "error", err)
		}
		return
	}
}

func (s *ReportService) publishChange(ctx context.Context, reportID int64, change string) {
	if s.amqpClient == nil {
		return
	}
	msg := amqp.NewReportChangedMessage(reportID, change)
	if err := s.amqpClient.PublishReportChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish report change",
			"report_id", reportID, "change", change, "error", err)
		// Don't fail the request - the write is already persisted.
	}
}
