package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/sheets"
	"cashflow/internal/storage"
)

// SnapshotWorker recomputes cash-flow snapshots when reports change and
// exports them to a spreadsheet.
type SnapshotWorker struct {
	storage   *storage.SQLiteRepository
	sheets    sheets.SnapshotWriter
	batchSize int
}

func NewSnapshotWorker(storage *storage.SQLiteRepository, sheets sheets.SnapshotWriter, batchSize int) *SnapshotWorker {
	return &SnapshotWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleReportChange processes a single report change message from AMQP:
// recompute the snapshot from the current item sets, persist it, and export
// it. Deleted reports yield no snapshot.
func (w *SnapshotWorker) HandleReportChange(ctx context.Context, msg *amqp.ReportChangedMessage) error {
	slog.InfoContext(ctx, "Processing report change",
		"report_id", msg.ReportID,
		"change", msg.Change)

	if msg.Change == amqp.ChangeReportDeleted {
		// Nothing to recompute; the snapshot row was removed with the report.
		return nil
	}

	snap, err := w.computeSnapshot(ctx, msg.ReportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Report deleted between publish and consume.
			slog.WarnContext(ctx, "Report gone, skipping snapshot", "report_id", msg.ReportID)
			return nil
		}
		return fmt.Errorf("compute snapshot: %w", err)
	}

	if err := w.storage.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return w.exportSnapshot(ctx, snap)
}

// ProcessPendingSnapshots exports snapshots that haven't reached the sheet
// yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SnapshotWorker) ProcessPendingSnapshots(ctx context.Context) error {
	pending, err := w.storage.PendingSnapshots(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending snapshots: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending snapshots", "count", len(pending))

	for _, snap := range pending {
		if err := w.exportSnapshot(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Failed to export snapshot",
				"report_id", snap.ReportID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains any pending snapshots at worker startup, using a
// larger batch to recover from downtime.
func (w *SnapshotWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSnapshots(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending snapshots for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending snapshots found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending snapshots on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, snap := range pending {
		if err := w.exportSnapshot(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Failed to export snapshot during startup",
				"report_id", snap.ReportID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

// computeSnapshot reads the report's item sets and aggregates them.
func (w *SnapshotWorker) computeSnapshot(ctx context.Context, reportID int64) (storage.Snapshot, error) {
	if _, err := w.storage.GetReport(ctx, reportID); err != nil {
		return storage.Snapshot{}, err
	}

	bsItems, err := w.storage.ListBalanceSheetItems(ctx, reportID)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("list balance sheet items: %w", err)
	}
	ieItems, err := w.storage.ListIncomeExpenseItems(ctx, reportID)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("list income expense items: %w", err)
	}

	summary := core.ComputeCashFlow(bsItems, ieItems)
	nw := core.ComputeNetWorth(bsItems)

	return storage.Snapshot{
		ReportID:     reportID,
		TotalIncome:  summary.TotalIncome,
		TotalExpense: summary.TotalExpense,
		NetCashFlow:  summary.NetCashFlow,
		TotalAssets:  nw.TotalAssets,
		TotalDebts:   nw.TotalDebts,
		NetWorth:     nw.NetWorth,
		ComputedAt:   time.Now(),
	}, nil
}

func (w *SnapshotWorker) exportSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if w.sheets == nil {
		slog.WarnContext(ctx, "No snapshot writer configured, skipping export",
			"report_id", snap.ReportID)
		return nil
	}

	ref, err := w.sheets.AppendSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.storage.MarkSnapshotSynced(ctx, snap.ReportID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark snapshot synced",
			"report_id", snap.ReportID, "error", err)
		// Don't return error here - the export actually worked.
	}

	slog.InfoContext(ctx, "Successfully exported snapshot",
		"report_id", snap.ReportID,
		"sheets_ref", ref,
		"net_cash_flow", snap.NetCashFlow)
	return nil
}
