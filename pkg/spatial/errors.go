package spatial

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("spatial: id not found")
	// ErrDuplicate is returned when inserting an id that is already indexed.
	ErrDuplicate = errors.New("spatial: id already indexed")
)

// NotFoundError reports a grid operation on an id the grid does not know.
// It means the caller holds a stale id and its view of the world has drifted
// from the index.
type NotFoundError[ID comparable] struct {
	Op string
	ID ID
}

func (e *NotFoundError[ID]) Error() string {
	return fmt.Sprintf("spatial: %s %v: id not found", e.Op, e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError[ID]) Unwrap() error {
	return ErrNotFound
}
