package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidRecordID = errors.New("invalid record id")
)

// Month identifies one calendar month (the period unit of an attendance
// record). The canonical string form is YYYY-MM.
type Month struct {
	Year int
	Mon  int // 1-12
}

// ParseMonth parses the strict YYYY-MM form. Anything else is rejected,
// including single-digit months.
func ParseMonth(s string) (Month, error) {
	m := monthPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	year, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	if mon < 1 || mon > 12 {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: year, Mon: mon}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Mon)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

// Prev returns the previous calendar month, rolling over the year
// boundary (2025-01 -> 2024-12).
func (m Month) Prev() Month {
	if m.Mon == 1 {
		return Month{Year: m.Year - 1, Mon: 12}
	}
	return Month{Year: m.Year, Mon: m.Mon - 1}
}

// Days returns the number of days in the month, leap-aware.
func (m Month) Days() int {
	return time.Date(m.Year, time.Month(m.Mon)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Before reports whether m is chronologically before other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Mon < other.Mon
}

// RecordID composes the canonical record identifier <classID>_<YYYY-MM>.
func RecordID(classID string, m Month) string {
	return classID + "_" + m.String()
}

// ParseRecordID splits a record identifier into class id and month. The
// class id may itself contain underscores, so the month is taken from the
// last separator. A malformed month segment fails the parse.
func ParseRecordID(id string) (classID string, m Month, err error) {
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return "", Month{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, id)
	}
	m, err = ParseMonth(id[i+1:])
	if err != nil {
		return "", Month{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, id)
	}
	return id[:i], m, nil
}
