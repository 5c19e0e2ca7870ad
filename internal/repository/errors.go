// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver errors themselves.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist (or is not
// visible to the caller). Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting an author
// that still has books or reusing an ISBN. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrInsufficientStock is returned when a stock change would make a
// book's stock negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidTransition is returned when an order status change is not
// allowed by the order lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrEmailExists is returned by UserRepo.Create for duplicate emails.
var ErrEmailExists = errors.New("email already exists")

// LineError reports which books of a checkout failed and why.  It wraps
// ErrNotFound (books that do not exist) or ErrInsufficientStock.
type LineError struct {
	Err     error
	BookIDs []uint64
}

func (e *LineError) Error() string { return fmt.Sprintf("%v: books %v", e.Err, e.BookIDs) }
func (e *LineError) Unwrap() error { return e.Err }

// MySQL error numbers the repositories react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

// isReferenced reports a foreign key violation on delete.
func isReferenced(err error) bool { return mysqlErrNumber(err) == mysqlRowIsReferenced }

// isMissingParent reports a foreign key violation on insert/update.
func isMissingParent(err error) bool { return mysqlErrNumber(err) == mysqlNoReferencedRow }
