package store

import "fmt"

// Operations reported by PersistenceError.
const (
	OpBegin   = "begin"
	OpMarshal = "marshal"
	OpInsert  = "insert"
	OpCommit  = "commit"
)

// PersistenceError is returned when a dictionary could not be stored.
// The surrounding transaction has been rolled back.
type PersistenceError struct {
	Identifier string
	Op         string
	// Index is the position of the failing record for marshal/insert, -1 otherwise.
	Index int
	Err   error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("persist %s: %s record %d: %v", e.Identifier, e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("persist %s: %s: %v", e.Identifier, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
