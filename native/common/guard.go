package common

import "errors"

var ErrOperationPaused = errors.New("operation paused")

// PauseView reports whether a named operation family is currently disabled.
type PauseView interface {
	IsPaused(operation string) bool
}

// Guard rejects the call when the view marks the operation as paused. A nil
// view or empty operation name disables the check.
func Guard(p PauseView, operation string) error {
	if p == nil || operation == "" {
		return nil
	}
	if p.IsPaused(operation) {
		return ErrOperationPaused
	}
	return nil
}
