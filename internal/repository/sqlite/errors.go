package sqlite

import (
	"errors"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// constraint classifies a SQLite constraint violation.
type constraint int

const (
	noConstraint constraint = iota
	uniqueConstraint
	checkConstraint
	foreignKeyConstraint
)

// violation reports which kind of constraint err violated, if any.
//
// The driver returns *sqlite.Error carrying the extended result code. The
// message check covers builds where extended codes are not enabled.
func violation(err error) constraint {
	if err == nil {
		return noConstraint
	}

	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueConstraint
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return checkConstraint
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return foreignKeyConstraint
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return uniqueConstraint
	case strings.Contains(msg, "CHECK constraint failed"):
		return checkConstraint
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return foreignKeyConstraint
	}
	return noConstraint
}

// violatesColumn reports whether err is a UNIQUE violation naming column,
// given as "table.column" the way SQLite prints it.
func violatesColumn(err error, column string) bool {
	return violation(err) == uniqueConstraint && strings.Contains(err.Error(), column)
}
