package common

import "errors"

// ErrModulePaused is returned when an operation targets a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a protocol module is currently paused by
// governance intervention.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard aborts the enclosing operation when the module is paused. A nil view
// means pausing is not wired and all operations proceed.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
