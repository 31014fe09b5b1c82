package clipengine

import (
	"errors"
	"strings"
)

// slotErrors wraps errors that might occure when multiple slots are
// filled at once.
type slotErrors []error

func (e slotErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e slotErrors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error is list is empty.
func (e slotErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
