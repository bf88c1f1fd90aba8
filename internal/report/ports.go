// Package report defines the reporting boundary: flattened stipend rows
// and the ports the sync worker and the export endpoints write through.
package report

import (
	"context"

	"elaun/internal/core"
)

// Row is one flattened stipend line: a participant's month in a class,
// with the identity and bank fields a payout form needs.
type Row struct {
	RecordID    string     `json:"recordId"`
	ClassID     string     `json:"classId"`
	ClassName   string     `json:"className"`
	State       string     `json:"state,omitempty"`
	Location    string     `json:"location,omitempty"`
	Month       string     `json:"month"`
	PersonID    string     `json:"personId"`
	Name        string     `json:"name"`
	IdentityNo  string     `json:"identityNo,omitempty"`
	Role        core.Role  `json:"role"`
	Kategori    string     `json:"kategoriElaun,omitempty"`
	Sessions    int        `json:"sessions"`
	Stipend     core.Money `json:"stipend"`
	BankName    string     `json:"bankName,omitempty"`
	BankAccount string     `json:"bankAccount,omitempty"`
}

// Ports for outbound adapters.
type (
	// RowWriter receives the recomputed rows for one record. A delivery
	// replaces whatever the sink held for that record before.
	RowWriter interface {
		WriteRows(ctx context.Context, recordID string, rows []Row) error
	}

	// Exporter renders rows into a downloadable document.
	Exporter interface {
		Export(ctx context.Context, rows []Row) ([]byte, error)
	}
)
