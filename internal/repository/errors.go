// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// knowing which database driver is underneath. Any other error returned
// by a repository is an infrastructure failure wrapped with %w.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint,
// e.g. a second user with the same email or a second participant row for
// the same (job, user) pair.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a conditional update matched no row because
// another operation changed it first (e.g. a refresh token that was already
// revoked by a concurrent rotation).
var ErrConflict = errors.New("conflict")

// translate maps driver level errors onto the sentinels above.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isSerializationFailure recognises a transaction aborted because a
// concurrent transaction touched the same rows: PostgreSQL 40001 and MySQL
// deadlock 1213.
func isSerializationFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "1213") ||
		strings.Contains(msg, "deadlock")
}

// isDuplicate recognises unique violations. gorm translates them when the
// dialector supports it; the string checks cover MySQL 1062, PostgreSQL
// 23505 and SQLite messages when it does not.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
