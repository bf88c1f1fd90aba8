// Package editor orchestrates attendance record mutations across the
// store, the master roster and the AMQP sync channel. Every mutation
// loads the record, applies one change, persists the whole record under
// the caller's version token and then queues a report sync.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"elaun/internal/core"
	"elaun/internal/storage"
)

// ErrNoPriorData reports a copy-forward with nothing to copy: the
// previous month's record is missing or was never filled in.
var ErrNoPriorData = errors.New("no prior month data to copy")

// Store is the record persistence port.
type Store interface {
	GetRecord(ctx context.Context, recordID string) (*core.AttendanceRecord, error)
	GetOrCreateRecord(ctx context.Context, classID string, m core.Month) (*core.AttendanceRecord, error)
	UpsertRecord(ctx context.Context, rec *core.AttendanceRecord) error
}

// Roster resolves people against the master registries.
type Roster interface {
	Snapshot(ctx context.Context, role core.Role, personID string) (core.Participant, error)
	Category(ctx context.Context, role core.Role, personID string) (string, error)
}

// Publisher queues report-sync notifications. May be absent; mutations
// still commit locally and the pending sweep catches up.
type Publisher interface {
	PublishRecordSync(ctx context.Context, recordID string, version int64) error
}

type Editor struct {
	store     Store
	roster    Roster
	publisher Publisher
}

func New(store Store, roster Roster, publisher Publisher) *Editor {
	return &Editor{
		store:     store,
		roster:    roster,
		publisher: publisher,
	}
}

// Load returns the record for (classID, month), creating an empty one on
// first access.
func (e *Editor) Load(ctx context.Context, classID string, m core.Month) (*core.AttendanceRecord, error) {
	return e.store.GetOrCreateRecord(ctx, classID, m)
}

// ToggleAttendance flips one (person, day) cell. baseVersion is the
// version the caller loaded; the persist is rejected when the record
// moved in between. A person absent from the targeted list is a no-op
// and nothing is written.
func (e *Editor) ToggleAttendance(ctx context.Context, classID string, m core.Month, role core.Role, personID string, day int, baseVersion int64) (*core.AttendanceRecord, error) {
	rec, err := e.store.GetOrCreateRecord(ctx, classID, m)
	if err != nil {
		return nil, err
	}

	changed, err := rec.ToggleAttendance(role, personID, day)
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.InfoContext(ctx, "Toggle ignored, person not on record",
			"record_id", rec.ID, "role", string(role), "person_id", personID)
		return rec, nil
	}

	return rec, e.persist(ctx, rec, baseVersion)
}

// AddParticipant resolves the person in the master roster and appends
// the snapshot with an empty attendance set.
func (e *Editor) AddParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error) {
	if !role.Valid() {
		return nil, core.ErrInvalidRole
	}
	p, err := e.roster.Snapshot(ctx, role, personID)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.GetOrCreateRecord(ctx, classID, m)
	if err != nil {
		return nil, err
	}
	if err := rec.AddParticipant(role, p); err != nil {
		return nil, err
	}

	return rec, e.persist(ctx, rec, baseVersion)
}

// RemoveParticipant drops the person and their attendance for this
// record. The HTTP boundary confirms the destructive intent; here the
// call is already confirmed.
func (e *Editor) RemoveParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error) {
	rec, err := e.store.GetOrCreateRecord(ctx, classID, m)
	if err != nil {
		return nil, err
	}
	if !rec.RemoveParticipant(role, personID) {
		slog.InfoContext(ctx, "Remove ignored, person not on record",
			"record_id", rec.ID, "role", string(role), "person_id", personID)
		return rec, nil
	}

	return rec, e.persist(ctx, rec, baseVersion)
}

// CopyFromPreviousMonth carries the previous month's roster and unset
// metadata into this record. Attendance never copies. Fails with
// ErrNoPriorData when the previous record is missing or empty.
func (e *Editor) CopyFromPreviousMonth(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, core.CopyForwardResult, error) {
	prev, err := e.store.GetRecord(ctx, core.RecordID(classID, m.Prev()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, core.CopyForwardResult{}, ErrNoPriorData
		}
		return nil, core.CopyForwardResult{}, fmt.Errorf("load previous record: %w", err)
	}
	if emptyRecord(prev) {
		return nil, core.CopyForwardResult{}, ErrNoPriorData
	}

	rec, err := e.store.GetOrCreateRecord(ctx, classID, m)
	if err != nil {
		return nil, core.CopyForwardResult{}, err
	}

	metaBefore := rec.Meta
	res := rec.CopyForward(prev)
	if res == (core.CopyForwardResult{}) && rec.Meta == metaBefore {
		// Everything was already present. Succeed without bumping the
		// version or queuing a sync.
		return rec, res, nil
	}
	if err := e.persist(ctx, rec, baseVersion); err != nil {
		return nil, core.CopyForwardResult{}, err
	}

	slog.InfoContext(ctx, "Copied previous month forward",
		"record_id", rec.ID,
		"workers_added", res.WorkersAdded,
		"students_added", res.StudentsAdded)
	return rec, res, nil
}

// SyncCategoryFromMaster backfills empty pay-category snapshots from
// the master roster. Populated snapshots are left alone, so a second
// run writes nothing.
func (e *Editor) SyncCategoryFromMaster(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, int, error) {
	rec, err := e.store.GetOrCreateRecord(ctx, classID, m)
	if err != nil {
		return nil, 0, err
	}

	filled := 0
	for _, role := range []core.Role{core.RoleWorker, core.RoleStudent} {
		for _, p := range *participants(rec, role) {
			if p.KategoriElaun != "" {
				continue
			}
			kategori, err := e.roster.Category(ctx, role, p.ID)
			if err != nil {
				return nil, 0, fmt.Errorf("resolve category for %s: %w", p.ID, err)
			}
			if rec.FillCategory(role, p.ID, kategori) {
				filled++
			}
		}
	}

	if filled == 0 {
		return rec, 0, nil
	}
	if err := e.persist(ctx, rec, baseVersion); err != nil {
		return nil, 0, err
	}

	slog.InfoContext(ctx, "Backfilled pay categories",
		"record_id", rec.ID, "filled", filled)
	return rec, filled, nil
}

func participants(rec *core.AttendanceRecord, role core.Role) *[]core.Participant {
	if role == core.RoleWorker {
		return &rec.Workers
	}
	return &rec.Students
}

func emptyRecord(rec *core.AttendanceRecord) bool {
	return len(rec.Workers) == 0 && len(rec.Students) == 0 &&
		rec.Meta == (core.ClassMeta{})
}

// persist writes the record under the caller's version token and queues
// the report sync. Publish failure is logged, not returned; the record
// stays pending and the sweep retries it.
func (e *Editor) persist(ctx context.Context, rec *core.AttendanceRecord, baseVersion int64) error {
	rec.Version = baseVersion
	if err := e.store.UpsertRecord(ctx, rec); err != nil {
		return err
	}

	if e.publisher == nil {
		return nil
	}
	if err := e.publisher.PublishRecordSync(ctx, rec.ID, rec.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"record_id", rec.ID, "version", rec.Version, "error", err)
	}
	return nil
}
