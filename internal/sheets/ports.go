package sheets

import (
	"context"

	"cashflow/internal/storage"
)

// Ports for outbound adapters.
type (
	// SnapshotWriter exports a computed cash-flow snapshot to an external
	// sheet or store.
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, s storage.Snapshot) (rowRef string, err error)
	}
)
