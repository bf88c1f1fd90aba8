package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB / *sql.Tx the query layer needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the hand-written SQL for the attendance store and the
// master-data tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// RecordRow mirrors one attendance_records row. Participants travel as
// JSON documents; the record is the atomic overwrite unit.
type RecordRow struct {
	ID           string
	ClassID      string
	Month        string
	Workers      []byte
	Students     []byte
	Language     sql.NullString
	Schedule     sql.NullString
	Sponsor      sql.NullString
	Frequency    sql.NullString
	ContactName  sql.NullString
	ContactPhone sql.NullString
	Notes        sql.NullString
	Version      int64
	SyncStatus   string
	UpdatedAt    time.Time
}

type WorkerRow struct {
	ID            string
	Name          string
	Position      string
	KategoriElaun string
	BankName      string
	BankAccount   string
}

type StudentRow struct {
	ID            string
	Name          string
	IdentityNo    string
	KategoriElaun string
	BankName      string
	BankAccount   string
}

type RateRow struct {
	Kategori    string
	Jenis       string
	PaymentMode string
	AmountSen   int64
}

type ClassRow struct {
	ID        string
	Name      string
	Location  string
	State     string
	ClassType string
	Level     string
}

// PendingSyncRecord is the minimal shape the report worker needs.
type PendingSyncRecord struct {
	ID      string
	Version int64
}

const recordColumns = `id, class_id, month, workers, students,
	language, schedule, sponsor, frequency, contact_name, contact_phone, notes,
	version, sync_status, updated_at`

func scanRecord(s interface{ Scan(...any) error }) (RecordRow, error) {
	var r RecordRow
	err := s.Scan(&r.ID, &r.ClassID, &r.Month, &r.Workers, &r.Students,
		&r.Language, &r.Schedule, &r.Sponsor, &r.Frequency,
		&r.ContactName, &r.ContactPhone, &r.Notes,
		&r.Version, &r.SyncStatus, &r.UpdatedAt)
	return r, err
}

func (q *Queries) GetRecord(ctx context.Context, id string) (RecordRow, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`, id)
	return scanRecord(row)
}

// InsertRecord creates a record at version 1. The caller handles the
// unique-constraint error when the record already exists.
func (q *Queries) InsertRecord(ctx context.Context, r RecordRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO attendance_records
		 (id, class_id, month, workers, students,
		  language, schedule, sponsor, frequency, contact_name, contact_phone, notes,
		  version, sync_status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 'pending', ?)`,
		r.ID, r.ClassID, r.Month, r.Workers, r.Students,
		r.Language, r.Schedule, r.Sponsor, r.Frequency,
		r.ContactName, r.ContactPhone, r.Notes, r.UpdatedAt)
	return err
}

// UpdateRecord overwrites the full record, guarded by the base version.
// Returns the number of rows written: zero means the version moved
// underneath the caller.
func (q *Queries) UpdateRecord(ctx context.Context, r RecordRow, baseVersion int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE attendance_records
		 SET workers = ?, students = ?,
		     language = ?, schedule = ?, sponsor = ?, frequency = ?,
		     contact_name = ?, contact_phone = ?, notes = ?,
		     version = version + 1, sync_status = 'pending', updated_at = ?
		 WHERE id = ? AND version = ?`,
		r.Workers, r.Students,
		r.Language, r.Schedule, r.Sponsor, r.Frequency,
		r.ContactName, r.ContactPhone, r.Notes, r.UpdatedAt,
		r.ID, baseVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListRecordsByMonthRange(ctx context.Context, startMonth, endMonth string) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM attendance_records
		 WHERE month >= ? AND month <= ? ORDER BY month, class_id`,
		startMonth, endMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) ListPendingSyncRecords(ctx context.Context, limit int64) ([]PendingSyncRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, version FROM attendance_records
		 WHERE sync_status = 'pending' ORDER BY updated_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingSyncRecord
	for rows.Next() {
		var p PendingSyncRecord
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) MarkRecordSynced(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE attendance_records SET sync_status = 'synced' WHERE id = ?`, id)
	return err
}

func (q *Queries) MarkRecordSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE attendance_records SET sync_status = 'error' WHERE id = ?`, id)
	return err
}

func (q *Queries) GetWorker(ctx context.Context, id string) (WorkerRow, error) {
	var w WorkerRow
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, position, kategori_elaun, bank_name, bank_account
		 FROM workers WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.Position, &w.KategoriElaun, &w.BankName, &w.BankAccount)
	return w, err
}

func (q *Queries) ListWorkers(ctx context.Context) ([]WorkerRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, position, kategori_elaun, bank_name, bank_account
		 FROM workers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkerRow
	for rows.Next() {
		var w WorkerRow
		if err := rows.Scan(&w.ID, &w.Name, &w.Position, &w.KategoriElaun, &w.BankName, &w.BankAccount); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (q *Queries) GetStudent(ctx context.Context, id string) (StudentRow, error) {
	var s StudentRow
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, identity_no, kategori_elaun, bank_name, bank_account
		 FROM students WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.IdentityNo, &s.KategoriElaun, &s.BankName, &s.BankAccount)
	return s, err
}

func (q *Queries) ListStudents(ctx context.Context) ([]StudentRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, identity_no, kategori_elaun, bank_name, bank_account
		 FROM students ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudentRow
	for rows.Next() {
		var s StudentRow
		if err := rows.Scan(&s.ID, &s.Name, &s.IdentityNo, &s.KategoriElaun, &s.BankName, &s.BankAccount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) ListRates(ctx context.Context) ([]RateRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT kategori, jenis, payment_mode, amount_sen FROM rate_categories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RateRow
	for rows.Next() {
		var r RateRow
		if err := rows.Scan(&r.Kategori, &r.Jenis, &r.PaymentMode, &r.AmountSen); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) GetClass(ctx context.Context, id string) (ClassRow, error) {
	var c ClassRow
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, location, state, class_type, level FROM classes WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Location, &c.State, &c.ClassType, &c.Level)
	return c, err
}

func (q *Queries) ListClasses(ctx context.Context) ([]ClassRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, location, state, class_type, level FROM classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassRow
	for rows.Next() {
		var c ClassRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Location, &c.State, &c.ClassType, &c.Level); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
