package repositories

import "github.com/pkg/errors"

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}
