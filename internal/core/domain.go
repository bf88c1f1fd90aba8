package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Role tags which of a record's two participant lists a person belongs to.
type Role string

const (
	RoleWorker  Role = "worker"  // instructional staff / volunteer
	RoleStudent Role = "student" // enrolled participant
)

// Jenis returns the rate-table discriminator for the role.
func (r Role) Jenis() string {
	if r == RoleWorker {
		return JenisPetugas
	}
	return JenisMualaf
}

func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleStudent
}

// Sentinel defaults some call sites use for never-set metadata. They are
// applied at the presentation boundary only; stored fields stay nil until
// a value is explicitly entered.
const (
	DefaultLanguage  = "Bahasa Melayu"
	DefaultFrequency = "Mingguan"
)

var (
	ErrInvalidDay           = errors.New("day outside month range")
	ErrInvalidRole          = errors.New("invalid role")
	ErrDuplicateParticipant = errors.New("participant already present")
	ErrEmptyPersonID        = errors.New("empty person id")
)

type (
	// Participant is a roster snapshot embedded in one record. Name,
	// identity/position fields and the pay category are copied at
	// add-time, not live-linked to the master roster.
	Participant struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		IdentityNo string `json:"identityNo,omitempty"` // students
		Position   string `json:"position,omitempty"`   // workers
		// KategoriElaun is the denormalized pay-category snapshot. It
		// may be empty; once populated it is authoritative for this
		// record even if the master roster changes later.
		KategoriElaun string `json:"kategoriElaun,omitempty"`
		// Attendance holds the attended day-of-month numbers, sorted,
		// unique, each within [1, month.Days()].
		Attendance []int `json:"attendance"`
	}

	// ClassMeta carries the per-period class metadata. All fields are
	// nullable so "never set" is distinguishable from "set to the
	// default text".
	ClassMeta struct {
		Language     *string `json:"language,omitempty"`
		Schedule     *string `json:"schedule,omitempty"`
		Sponsor      *string `json:"sponsor,omitempty"`
		Frequency    *string `json:"frequency,omitempty"`
		ContactName  *string `json:"contactName,omitempty"`
		ContactPhone *string `json:"contactPhone,omitempty"`
		Notes        *string `json:"notes,omitempty"`
	}

	// AttendanceRecord is the attendance-and-metadata unit for one class
	// in one calendar month.
	AttendanceRecord struct {
		ID       string
		ClassID  string
		Month    Month
		Workers  []Participant
		Students []Participant
		Meta     ClassMeta
		// Version is the optimistic concurrency token checked by the
		// store on upsert.
		Version   int64
		UpdatedAt time.Time
	}

	// Worker is a master roster entry for instructional staff.
	Worker struct {
		ID            string
		Name          string
		Position      string
		KategoriElaun string
		BankName      string
		BankAccount   string
	}

	// Student is a master roster entry for an enrolled participant.
	Student struct {
		ID            string
		Name          string
		IdentityNo    string
		KategoriElaun string
		BankName      string
		BankAccount   string
	}

	// Class is the master metadata resolved per class id.
	Class struct {
		ID       string
		Name     string
		Location string
		State    string
		Type     string
		Level    string
	}
)

// NewRecord creates an empty record for a (class, month) pair with empty
// rosters and no metadata. Records come into existence on first access.
func NewRecord(classID string, m Month) *AttendanceRecord {
	return &AttendanceRecord{
		ID:      RecordID(classID, m),
		ClassID: classID,
		Month:   m,
	}
}

func (r *AttendanceRecord) list(role Role) *[]Participant {
	if role == RoleWorker {
		return &r.Workers
	}
	return &r.Students
}

// Find returns the participant with the given id in the role's list, or
// nil when absent.
func (r *AttendanceRecord) Find(role Role, personID string) *Participant {
	l := *r.list(role)
	for i := range l {
		if l[i].ID == personID {
			return &l[i]
		}
	}
	return nil
}

// ToggleAttendance inverts membership of day in the participant's
// attendance set. A day outside the month's valid range is rejected
// without mutating anything. A person id not present in the targeted
// list is a silent no-op (changed=false).
func (r *AttendanceRecord) ToggleAttendance(role Role, personID string, day int) (changed bool, err error) {
	if !role.Valid() {
		return false, ErrInvalidRole
	}
	if day < 1 || day > r.Month.Days() {
		return false, ErrInvalidDay
	}
	p := r.Find(role, personID)
	if p == nil {
		return false, nil
	}
	for i, d := range p.Attendance {
		if d == day {
			p.Attendance = append(p.Attendance[:i], p.Attendance[i+1:]...)
			return true, nil
		}
	}
	p.Attendance = append(p.Attendance, day)
	sort.Ints(p.Attendance)
	return true, nil
}

// AddParticipant appends a participant with an empty attendance set.
// Adding an id already present in the target list is rejected.
func (r *AttendanceRecord) AddParticipant(role Role, p Participant) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyPersonID
	}
	if r.Find(role, p.ID) != nil {
		return ErrDuplicateParticipant
	}
	p.Attendance = nil
	l := r.list(role)
	*l = append(*l, p)
	return nil
}

// RemoveParticipant deletes the participant entirely; the attendance
// history for that person in this record is lost. Returns false when the
// id is not present.
func (r *AttendanceRecord) RemoveParticipant(role Role, personID string) bool {
	l := r.list(role)
	for i := range *l {
		if (*l)[i].ID == personID {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// CopyForwardResult reports what a copy-forward actually added.
type CopyForwardResult struct {
	WorkersAdded  int
	StudentsAdded int
}

// CopyForward carries the previous period's roster and unset metadata
// into r. Participants already present keep their attendance untouched;
// new ones arrive with empty attendance. Metadata fields are filled only
// when unset in r; an explicitly entered value always wins.
func (r *AttendanceRecord) CopyForward(prev *AttendanceRecord) CopyForwardResult {
	var res CopyForwardResult
	for _, p := range prev.Workers {
		if r.Find(RoleWorker, p.ID) == nil {
			p.Attendance = nil
			r.Workers = append(r.Workers, p)
			res.WorkersAdded++
		}
	}
	for _, p := range prev.Students {
		if r.Find(RoleStudent, p.ID) == nil {
			p.Attendance = nil
			r.Students = append(r.Students, p)
			res.StudentsAdded++
		}
	}
	fill(&r.Meta.Language, prev.Meta.Language)
	fill(&r.Meta.Schedule, prev.Meta.Schedule)
	fill(&r.Meta.Sponsor, prev.Meta.Sponsor)
	fill(&r.Meta.Frequency, prev.Meta.Frequency)
	fill(&r.Meta.ContactName, prev.Meta.ContactName)
	fill(&r.Meta.ContactPhone, prev.Meta.ContactPhone)
	fill(&r.Meta.Notes, prev.Meta.Notes)
	return res
}

func fill(dst **string, src *string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// FillCategory sets the participant's pay-category snapshot only while
// the snapshot is empty. A populated snapshot is never overwritten.
func (r *AttendanceRecord) FillCategory(role Role, personID, kategori string) bool {
	p := r.Find(role, personID)
	if p == nil || p.KategoriElaun != "" || kategori == "" {
		return false
	}
	p.KategoriElaun = kategori
	return true
}

// Validate checks the record's structural invariants: id matches
// (classID, month), ids unique per list, attendance days in range.
func (r *AttendanceRecord) Validate() error {
	if r.ID != RecordID(r.ClassID, r.Month) {
		return ErrInvalidRecordID
	}
	days := r.Month.Days()
	for _, l := range [][]Participant{r.Workers, r.Students} {
		seen := make(map[string]struct{}, len(l))
		for _, p := range l {
			if p.ID == "" {
				return ErrEmptyPersonID
			}
			if _, dup := seen[p.ID]; dup {
				return ErrDuplicateParticipant
			}
			seen[p.ID] = struct{}{}
			for _, d := range p.Attendance {
				if d < 1 || d > days {
					return ErrInvalidDay
				}
			}
		}
	}
	return nil
}
