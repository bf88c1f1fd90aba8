// Package core holds the attendance and stipend domain types.
//
// This file contains the rate-table types and the stipend formula. A
// stipend is always recomputed from durable inputs (rate, attendance,
// optional day filter); it is never persisted.
package core

import (
	"fmt"
	"strconv"
)

// Rate-table discriminators and payment modes.
const (
	JenisPetugas = "petugas" // workers
	JenisMualaf  = "mualaf"  // students

	PayFlat       PaymentMode = "flat"        // one amount per period when present
	PayPerSession PaymentMode = "per_session" // amount multiplied by session count
)

type (
	PaymentMode string

	// Money is an amount in sen. Calculations stay in integer sen;
	// Ringgit is for display only.
	Money struct {
		Sen int64 `json:"sen"`
	}

	// RateCategory is one external rate-table row, matched by exact
	// (Kategori, Jenis) pair against a participant's snapshot.
	RateCategory struct {
		Kategori string
		Jenis    string
		Payment  PaymentMode
		Amount   Money
	}
)

func (m Money) Add(other Money) Money {
	return Money{Sen: m.Sen + other.Sen}
}

// Ringgit returns the display value ("RM12.50"). Use sen for arithmetic.
func (m Money) Ringgit() string {
	sen := m.Sen
	neg := sen < 0
	if neg {
		sen = -sen
	}
	s := "RM" + strconv.FormatInt(sen/100, 10) + "." + fmt.Sprintf("%02d", sen%100)
	if neg {
		return "-" + s
	}
	return s
}

func (pm PaymentMode) Valid() bool {
	return pm == PayFlat || pm == PayPerSession
}

// Present reports whether a participant counts as present: non-empty
// attendance normally, or containing the filtered day when a single-day
// filter is active.
func Present(attendance []int, dayFilter *int) bool {
	if dayFilter == nil {
		return len(attendance) > 0
	}
	for _, d := range attendance {
		if d == *dayFilter {
			return true
		}
	}
	return false
}

// Sessions is the session count fed into the stipend formula: the full
// attendance count, or exactly one when a day filter is active and that
// day was attended (zero otherwise).
func Sessions(attendance []int, dayFilter *int) int {
	if dayFilter == nil {
		return len(attendance)
	}
	if Present(attendance, dayFilter) {
		return 1
	}
	return 0
}

// Stipend evaluates the formula for one participant in one record. A nil
// rate (no matching category) degrades to zero; the participant still
// counts toward headcount at the call site.
//
// Flat mode pays the amount once per period when present, regardless of
// how many sessions were attended. Per-session mode pays rate times the
// session count.
func Stipend(rate *RateCategory, attendance []int, dayFilter *int) Money {
	if rate == nil {
		return Money{}
	}
	switch rate.Payment {
	case PayFlat:
		if Present(attendance, dayFilter) {
			return rate.Amount
		}
		return Money{}
	case PayPerSession:
		return Money{Sen: rate.Amount.Sen * int64(Sessions(attendance, dayFilter))}
	default:
		return Money{}
	}
}
