package store

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned by updates that target a missing row.
var ErrNotFound = errors.New("record not found")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
