package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrConstraint    = errors.New("constraint violation")
	ErrUnknownColumn = errors.New("unknown column")
	ErrUnfiltered    = errors.New("refusing to modify rows without a filter")
)

// classify maps driver and GORM errors onto the package's sentinel errors by
// the driver's message, which is kept in the returned error. Sqlite and
// Postgres both name the violated constraint kind in their messages.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	upper := strings.ToUpper(msg)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case strings.Contains(upper, "UNIQUE CONSTRAINT"),
		strings.Contains(upper, "DUPLICATE KEY"):
		return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, msg)
	case strings.Contains(upper, "FOREIGN KEY"),
		strings.Contains(upper, "CHECK CONSTRAINT"),
		strings.Contains(upper, "NOT NULL CONSTRAINT"),
		strings.Contains(upper, "NOT-NULL CONSTRAINT"):
		return fmt.Errorf("%s: %w: %s", op, ErrConstraint, msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
