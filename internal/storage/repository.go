package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"elaun/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound reports a missing record or master-data row.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict reports a rejected write: the record's stored
	// version differs from the version the caller based its edit on.
	ErrVersionConflict = errors.New("record version conflict")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetRecord loads one record by id. Returns ErrNotFound when the
// (class, month) pair has never been touched.
func (r *SQLiteRepository) GetRecord(ctx context.Context, recordID string) (*core.AttendanceRecord, error) {
	row, err := r.queries.GetRecord(ctx, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", recordID, err)
	}
	return recordFromRow(row)
}

// GetOrCreateRecord returns the record for (classID, month), persisting
// an empty one on first access so subsequent edits carry a real version
// token.
func (r *SQLiteRepository) GetOrCreateRecord(ctx context.Context, classID string, m core.Month) (*core.AttendanceRecord, error) {
	id := core.RecordID(classID, m)
	rec, err := r.GetRecord(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rec = core.NewRecord(classID, m)
	rec.UpdatedAt = time.Now().UTC()
	row, err := recordToRow(rec)
	if err != nil {
		return nil, err
	}
	if err := r.queries.InsertRecord(ctx, row); err != nil {
		// Lost the creation race; the concurrent insert is the record.
		if existing, getErr := r.GetRecord(ctx, id); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create record %s: %w", id, err)
	}
	rec.Version = 1

	slog.InfoContext(ctx, "Attendance record created",
		"record_id", id,
		"class_id", classID,
		"month", m.String())
	return rec, nil
}

// UpsertRecord writes the full record guarded by its version token. A
// record at version zero must not exist yet; otherwise the stored
// version must equal rec.Version. On success rec.Version is advanced to
// the stored value and the record is queued for report sync.
func (r *SQLiteRepository) UpsertRecord(ctx context.Context, rec *core.AttendanceRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validate record %s: %w", rec.ID, err)
	}
	rec.UpdatedAt = time.Now().UTC()
	row, err := recordToRow(rec)
	if err != nil {
		return err
	}

	if rec.Version == 0 {
		if err := r.queries.InsertRecord(ctx, row); err != nil {
			if _, getErr := r.queries.GetRecord(ctx, rec.ID); getErr == nil {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
		rec.Version = 1
		return nil
	}

	n, err := r.queries.UpdateRecord(ctx, row, rec.Version)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	return nil
}

// ListRecordsByMonthRange loads every record whose month falls inside
// [start, end], ordered by month then class.
func (r *SQLiteRepository) ListRecordsByMonthRange(ctx context.Context, start, end core.Month) ([]*core.AttendanceRecord, error) {
	rows, err := r.queries.ListRecordsByMonthRange(ctx, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list records %s..%s: %w", start, end, err)
	}

	out := make([]*core.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListRecordsByYear is the calendar-year window the aggregation and
// tracker views load.
func (r *SQLiteRepository) ListRecordsByYear(ctx context.Context, year int) ([]*core.AttendanceRecord, error) {
	return r.ListRecordsByMonthRange(ctx, core.Month{Year: year, Mon: 1}, core.Month{Year: year, Mon: 12})
}

// ListPendingSyncRecords returns ids of records whose latest write has
// not reached the report backend yet, oldest first.
func (r *SQLiteRepository) ListPendingSyncRecords(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.queries.ListPendingSyncRecords(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending sync records: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) MarkRecordSynced(ctx context.Context, recordID string) error {
	if err := r.queries.MarkRecordSynced(ctx, recordID); err != nil {
		return fmt.Errorf("mark record %s synced: %w", recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkRecordSyncError(ctx context.Context, recordID string) error {
	if err := r.queries.MarkRecordSyncError(ctx, recordID); err != nil {
		return fmt.Errorf("mark record %s sync error: %w", recordID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetWorker(ctx context.Context, id string) (core.Worker, error) {
	row, err := r.queries.GetWorker(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Worker{}, ErrNotFound
	}
	if err != nil {
		return core.Worker{}, fmt.Errorf("get worker %s: %w", id, err)
	}
	return workerFromRow(row), nil
}

func (r *SQLiteRepository) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	rows, err := r.queries.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	out := make([]core.Worker, 0, len(rows))
	for _, row := range rows {
		out = append(out, workerFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) GetStudent(ctx context.Context, id string) (core.Student, error) {
	row, err := r.queries.GetStudent(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Student{}, ErrNotFound
	}
	if err != nil {
		return core.Student{}, fmt.Errorf("get student %s: %w", id, err)
	}
	return studentFromRow(row), nil
}

func (r *SQLiteRepository) ListStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := r.queries.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]core.Student, 0, len(rows))
	for _, row := range rows {
		out = append(out, studentFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) ListRates(ctx context.Context) ([]core.RateCategory, error) {
	rows, err := r.queries.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rate categories: %w", err)
	}
	out := make([]core.RateCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.RateCategory{
			Kategori: row.Kategori,
			Jenis:    row.Jenis,
			Payment:  core.PaymentMode(row.PaymentMode),
			Amount:   core.Money{Sen: row.AmountSen},
		})
	}
	return out, nil
}

func (r *SQLiteRepository) GetClass(ctx context.Context, id string) (core.Class, error) {
	row, err := r.queries.GetClass(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Class{}, ErrNotFound
	}
	if err != nil {
		return core.Class{}, fmt.Errorf("get class %s: %w", id, err)
	}
	return classFromRow(row), nil
}

func (r *SQLiteRepository) ListClasses(ctx context.Context) ([]core.Class, error) {
	rows, err := r.queries.ListClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	out := make([]core.Class, 0, len(rows))
	for _, row := range rows {
		out = append(out, classFromRow(row))
	}
	return out, nil
}

func recordFromRow(row RecordRow) (*core.AttendanceRecord, error) {
	m, err := core.ParseMonth(row.Month)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", row.ID, err)
	}

	rec := &core.AttendanceRecord{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Month:     m,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
		Meta: core.ClassMeta{
			Language:     nullToPtr(row.Language),
			Schedule:     nullToPtr(row.Schedule),
			Sponsor:      nullToPtr(row.Sponsor),
			Frequency:    nullToPtr(row.Frequency),
			ContactName:  nullToPtr(row.ContactName),
			ContactPhone: nullToPtr(row.ContactPhone),
			Notes:        nullToPtr(row.Notes),
		},
	}
	if err := json.Unmarshal(row.Workers, &rec.Workers); err != nil {
		return nil, fmt.Errorf("record %s: decode workers: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Students, &rec.Students); err != nil {
		return nil, fmt.Errorf("record %s: decode students: %w", row.ID, err)
	}
	return rec, nil
}

func recordToRow(rec *core.AttendanceRecord) (RecordRow, error) {
	workers, err := json.Marshal(participantsOrEmpty(rec.Workers))
	if err != nil {
		return RecordRow{}, fmt.Errorf("record %s: encode workers: %w", rec.ID, err)
	}
	students, err := json.Marshal(participantsOrEmpty(rec.Students))
	if err != nil {
		return RecordRow{}, fmt.Errorf("record %s: encode students: %w", rec.ID, err)
	}
	return RecordRow{
		ID:           rec.ID,
		ClassID:      rec.ClassID,
		Month:        rec.Month.String(),
		Workers:      workers,
		Students:     students,
		Language:     ptrToNull(rec.Meta.Language),
		Schedule:     ptrToNull(rec.Meta.Schedule),
		Sponsor:      ptrToNull(rec.Meta.Sponsor),
		Frequency:    ptrToNull(rec.Meta.Frequency),
		ContactName:  ptrToNull(rec.Meta.ContactName),
		ContactPhone: ptrToNull(rec.Meta.ContactPhone),
		Notes:        ptrToNull(rec.Meta.Notes),
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// participantsOrEmpty keeps the stored JSON an array even for empty
// rosters.
func participantsOrEmpty(l []core.Participant) []core.Participant {
	if l == nil {
		return []core.Participant{}
	}
	return l
}

func workerFromRow(row WorkerRow) core.Worker {
	return core.Worker{
		ID:            row.ID,
		Name:          row.Name,
		Position:      row.Position,
		KategoriElaun: row.KategoriElaun,
		BankName:      row.BankName,
		BankAccount:   row.BankAccount,
	}
}

func studentFromRow(row StudentRow) core.Student {
	return core.Student{
		ID:            row.ID,
		Name:          row.Name,
		IdentityNo:    row.IdentityNo,
		KategoriElaun: row.KategoriElaun,
		BankName:      row.BankName,
		BankAccount:   row.BankAccount,
	}
}

func classFromRow(row ClassRow) core.Class {
	return core.Class{
		ID:       row.ID,
		Name:     row.Name,
		Location: row.Location,
		State:    row.State,
		Type:     row.ClassType,
		Level:    row.Level,
	}
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
