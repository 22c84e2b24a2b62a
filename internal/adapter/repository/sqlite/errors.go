package sqlite

import (
	"context"
	"errors"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/iho/stockledger/internal/domain"
)

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}

	return false
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()

	// Extended codes such as SQLITE_BUSY_SNAPSHOT keep the primary code in the low byte.
	return code&0xff == sqlite3lib.SQLITE_BUSY || code&0xff == sqlite3lib.SQLITE_LOCKED
}

// storageError classifies err as a domain.StorageError.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}

	transient := isBusy(err) || errors.Is(err, context.DeadlineExceeded)

	return domain.NewStorageError(op, transient, err)
}
