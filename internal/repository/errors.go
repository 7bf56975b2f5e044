package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Sentinel errors returned by the register repositories. The service layer
// maps them to typed business errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrOpenSessionExists = errors.New("a register session is already open")
	ErrSessionClosed     = errors.New("register session is closed")
	ErrAlreadyCancelled  = errors.New("entry already cancelled")
)

// isUniqueViolation recognises duplicate-key errors whether or not GORM
// translated them.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
