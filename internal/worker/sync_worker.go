// Package worker moves freshly written attendance records into the
// report backend: AMQP messages drive the fast path, a periodic sweep
// over pending rows covers lost messages and downtime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"elaun/internal/amqp"
	"elaun/internal/core"
	"elaun/internal/report"
	"elaun/internal/storage"
)

// Store is the slice of the repository the worker needs.
type Store interface {
	GetRecord(ctx context.Context, recordID string) (*core.AttendanceRecord, error)
	ListPendingSyncRecords(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkRecordSynced(ctx context.Context, recordID string) error
	MarkRecordSyncError(ctx context.Context, recordID string) error
}

// SyncWorker recomputes a record's report rows and writes them to the
// sink, tracking sync state in the store.
type SyncWorker struct {
	store     Store
	sink      report.RowWriter
	classes   report.ClassDirectory
	rates     report.RateSource
	roster    report.Roster
	batchSize int
}

func NewSyncWorker(store Store, sink report.RowWriter, classes report.ClassDirectory, rates report.RateSource, roster report.Roster, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		sink:      sink,
		classes:   classes,
		rates:     rates,
		roster:    roster,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one record sync message from AMQP. The
// message carries only the id; the worker always exports the record as
// currently stored, so a newer write than the message's version is fine.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"record_id", msg.RecordID,
		"version", msg.Version)

	rec, err := w.store.GetRecord(ctx, msg.RecordID)
	if errors.Is(err, storage.ErrNotFound) {
		// Requeueing a message for a record that no longer exists
		// would loop forever.
		slog.WarnContext(ctx, "Sync message for unknown record, dropping",
			"record_id", msg.RecordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	return w.syncRecord(ctx, rec)
}

// ProcessPendingRecords syncs records whose last write never reached
// the backend. This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingRecords(ctx context.Context) error {
	pending, err := w.store.ListPendingSyncRecords(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))
	for _, p := range pending {
		rec, err := w.store.GetRecord(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get record", "record_id", p.ID, "error", err)
			if err := w.store.MarkRecordSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "record_id", p.ID, "error", err)
			}
			continue
		}
		if err := w.syncRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record", "record_id", p.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains pending records accumulated while the worker
// was down, using a larger batch than the regular sweep.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingSyncRecords(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending records on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		rec, err := w.store.GetRecord(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get record for startup sync",
				"record_id", p.ID, "error", err)
			if err := w.store.MarkRecordSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "record_id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.syncRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record during startup",
				"record_id", p.ID, "error", err)
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

// RunPendingSweep blocks, running ProcessPendingRecords on the interval
// until the context is cancelled.
func (w *SyncWorker) RunPendingSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingRecords(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) syncRecord(ctx context.Context, rec *core.AttendanceRecord) error {
	rows, err := report.BuildRows(ctx, rec, w.classes, w.rates, w.roster)
	if err != nil {
		return fmt.Errorf("build report rows: %w", err)
	}

	if err := w.sink.WriteRows(ctx, rec.ID, rows); err != nil {
		if markErr := w.store.MarkRecordSyncError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "record_id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("write report rows: %w", err)
	}

	if err := w.store.MarkRecordSynced(ctx, rec.ID); err != nil {
		// The export itself worked; surface the bookkeeping failure in
		// the log only.
		slog.ErrorContext(ctx, "Failed to mark as synced", "record_id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"record_id", rec.ID,
		"rows", len(rows),
		"version", rec.Version)
	return nil
}
