package state

import (
	"fmt"

	"tlog.app/go/errors"
)

// ErrInvalidArgument is matched by every range and enum error raised by the
// register file accessors.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports an index or enum value outside its valid range.
// Accessors panic with it: a bad index is a programming error, never a guest
// condition.
type ArgumentError struct {
	// Name is the argument that was rejected.
	Name string
	// Value is the rejected value.
	Value int
	// Limit is the exclusive upper bound the value was checked against.
	Limit int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%v: %s %d out of range [0, %d)", ErrInvalidArgument, e.Name, e.Value, e.Limit)
}

// Unwrap makes errors.Is(err, ErrInvalidArgument) hold.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func checkIndex(name string, value, limit int) {
	if value < 0 || value >= limit {
		panic(&ArgumentError{Name: name, Value: value, Limit: limit})
	}
}
