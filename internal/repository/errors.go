// Package repository implements the persistence seams of the identity core
// on top of database/sql. Every lookup excludes soft-deleted rows; callers
// never observe a row with is_deleted = 1.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup matches no visible row. The service
// layer maps it to the appropriate taxonomy error (user not found, invalid
// token) so nothing leaks to clients.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint and
// the violated index could not be identified more precisely.
var ErrDuplicate = errors.New("duplicate key")

// isDuplicateErr reports whether err is a MySQL duplicate-key error (1062),
// optionally scoped to a given index name.
func isDuplicateErr(err error, index string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") && !strings.Contains(msg, "duplicate entry") {
		return false
	}
	return index == "" || strings.Contains(msg, strings.ToLower(index))
}
