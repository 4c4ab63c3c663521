package dbx

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// UniqueViolation reports whether err is a PostgreSQL unique constraint
// violation and returns the violated constraint name.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != pgUniqueViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// ColumnFromConstraint extracts the column part of a constraint named
// "<table>_<column>_key" (the PostgreSQL default for UNIQUE columns).
// Unknown shapes are returned unchanged.
func ColumnFromConstraint(table, constraint string) string {
	c := strings.TrimPrefix(constraint, table+"_")
	c = strings.TrimSuffix(c, "_key")
	return c
}
