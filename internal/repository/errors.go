// Package repository holds the storage-level errors shared by stores and the
// services that translate them into domain kinds.
package repository

import "errors"

var (
	// ErrNotFound means no row matched the tenant and id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a revision check or a uniqueness constraint failed,
	// typically because another writer committed first.
	ErrConflict = errors.New("conflict: contract was modified concurrently")

	// ErrForeignKeyViolation means a referenced parent row does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)
