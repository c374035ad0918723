package db

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
)

// IsUniqueViolation reports whether err is a sqlite UNIQUE or PRIMARY KEY
// constraint failure. When constraintName is provided, the helper looks for
// it in the error message (sqlite reports "table.column" there).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique && liteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return false
		}
		return constraintName == "" || strings.Contains(liteErr.Error(), constraintName)
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// IsBusy reports whether sqlite gave up waiting on a lock.
func IsBusy(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsNotFound reports whether a First/Take query matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// StorageError tags err as a local persistence failure.
func StorageError(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, message)
}
