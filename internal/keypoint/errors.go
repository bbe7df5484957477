package keypoint

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptStore is wrapped by every CorruptStoreError.
	ErrCorruptStore = errors.New("corrupt keypoint store")
	// ErrPairingViolation is wrapped by every PairingError.
	ErrPairingViolation = errors.New("keypoint pairing violated")
	// ErrNoFrame is returned by mutations issued before a frame is loaded.
	ErrNoFrame = errors.New("no frame loaded")
	// ErrInvalidID is returned for negative landmark IDs.
	ErrInvalidID = errors.New("invalid landmark id")
	// ErrPendingMismatch is returned when the left and right pending clicks
	// were made for different landmarks.
	ErrPendingMismatch = errors.New("pending clicks name different landmarks")
)

// CorruptStoreError reports a persisted view that exists but cannot be read
// as keypoint records.
type CorruptStoreError struct {
	Frame string
	View  View
	Path  string
	Err   error
}

func (e *CorruptStoreError) Error() string {
	where := e.Path
	if where == "" {
		where = e.View.String()
	}
	return fmt.Sprintf("corrupt keypoint records for frame %s (%s): %v", e.Frame, where, e.Err)
}

func (e *CorruptStoreError) Unwrap() []error {
	return []error{ErrCorruptStore, e.Err}
}

// PairingError reports a persisted frame whose left and right views hold
// different landmark IDs.
type PairingError struct {
	Frame     string
	LeftOnly  []int
	RightOnly []int
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("frame %s: landmarks only in left view %v, only in right view %v",
		e.Frame, e.LeftOnly, e.RightOnly)
}

func (e *PairingError) Unwrap() error { return ErrPairingViolation }
