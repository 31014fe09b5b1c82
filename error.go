package clipengine

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotEmpty is returned when a clip operation addresses a slot
	// without clip.
	ErrSlotEmpty = errors.New("slot is empty")
	// ErrSlotIndexOutOfRange is returned when slot index is negative or
	// exceeds MaxSlots.
	ErrSlotIndexOutOfRange = errors.New("slot index out of range")
	// ErrNotRecordable is returned when recording is requested for a
	// column or clip which can't record.
	ErrNotRecordable = errors.New("slot is not recordable")
	// ErrCommandQueueFull is returned when command can't be sent because
	// real-time side didn't drain the queue yet. It's retryable.
	ErrCommandQueueFull = errors.New("command queue is full")
	// ErrColumnInactive is returned when column has no host playback.
	ErrColumnInactive = errors.New("column is not active")
	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// IsRetryable returns true if the same operation can succeed later
// without changes.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCommandQueueFull)
}

// SlotError is returned if operation on the slot failed.
type SlotError struct {
	Index int
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d: %v", e.Index, e.Err)
}

// Unwrap returns the cause.
func (e *SlotError) Unwrap() error {
	return e.Err
}

func slotError(index int, err error) error {
	if err == nil {
		return nil
	}
	return &SlotError{Index: index, Err: err}
}
