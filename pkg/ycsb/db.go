// Package ycsb defines the data-access contract a benchmark harness drives.
//
// A harness creates one DB per worker, calls Init once, issues any number of
// Read/Scan/Update/Insert/Delete calls and finally calls Cleanup. Data
// operations never return errors: every outcome is reported as a Status.
package ycsb

import "context"

// Status is the tri-state result of a data operation.
type Status int

const (
	// StatusOK reports a successful operation.
	StatusOK Status = iota
	// StatusNotFound reports that the addressed record does not exist.
	StatusNotFound
	// StatusError reports any other failure.
	StatusError
)

// String returns the harness name of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsOK reports whether the status is StatusOK.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// DB is the contract between the harness and a database binding.
type DB interface {
	// Init prepares the binding. A returned error aborts the worker.
	Init(ctx context.Context) error

	// Cleanup releases everything Init acquired.
	Cleanup(ctx context.Context) error

	// Read fetches one record. A nil or empty fields slice selects all fields.
	Read(ctx context.Context, table, key string, fields []string) (Record, Status)

	// Scan fetches up to count records starting at startKey.
	Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]Record, Status)

	// Update merges values into an existing record.
	Update(ctx context.Context, table, key string, values Record) Status

	// Insert writes a new record.
	Insert(ctx context.Context, table, key string, values Record) Status

	// Delete removes a record.
	Delete(ctx context.Context, table, key string) Status
}

// Creator builds a fresh, uninitialised DB. The harness calls it once per worker.
type Creator func(props Properties) (DB, error)
