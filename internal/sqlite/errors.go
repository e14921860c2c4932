package sqlite

import (
	"fmt"
	"strings"

	"github.com/rpggio/clmcore/internal/repository"
)

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storageError maps constraint failures onto repository errors and wraps
// anything else with what was being attempted.
func storageError(err error, format string, args ...any) error {
	switch {
	case isUniqueViolation(err):
		return repository.ErrConflict
	case isForeignKeyViolation(err):
		return repository.ErrForeignKeyViolation
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
