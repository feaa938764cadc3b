package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the SQLSTATE postgres reports for unique constraint conflicts
const pgUniqueViolation = "23505"

// UniqueViolation reports that a write conflicted with a unique constraint.
type UniqueViolation struct {
	// Constraint is the violated index on postgres (e.g. idx_tools_name) and
	// the table.column list on sqlite (e.g. tools.name).
	Constraint string
	Err        error
}

func (e *UniqueViolation) Error() string {
	return "unique violation on " + e.Constraint
}

func (e *UniqueViolation) Unwrap() error {
	return e.Err
}

// ClassifyError converts driver unique-constraint failures into *UniqueViolation.
// Any other error is returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var uv *UniqueViolation
	if errors.As(err, &uv) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolation{Constraint: pgErr.ConstraintName, Err: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return &UniqueViolation{Constraint: sqliteConstraint(sqliteErr), Err: err}
	}

	return err
}

// IsUniqueViolation reports whether err is, or classifies as, a unique violation.
func IsUniqueViolation(err error) bool {
	var uv *UniqueViolation
	return errors.As(ClassifyError(err), &uv)
}

// sqlite does not name the index, only the columns: "UNIQUE constraint failed: tools.name".
// The violation class comes from ExtendedCode; this column list is the only
// part of classification read from message text.
func sqliteConstraint(err sqlite3.Error) string {
	_, cols, ok := strings.Cut(err.Error(), "failed: ")
	if !ok {
		return ""
	}
	return cols
}
