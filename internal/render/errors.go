package render

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that a rendering library could not be used.
var ErrUnavailable = errors.New("renderer unavailable")

var errNoHandle = errors.New("renderer returned no handle")

// RenderError reports a renderer that failed or panicked for one slot.
type RenderError struct {
	Slot     Slot
	Renderer string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s with %s: %v", e.Slot, e.Renderer, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Guard runs fn and turns a returned error or a panic into a *RenderError.
func Guard[T any](slot Slot, renderer string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &RenderError{Slot: slot, Renderer: renderer, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = fn()
	if err != nil {
		return result, &RenderError{Slot: slot, Renderer: renderer, Err: err}
	}
	if any(result) == nil {
		return result, &RenderError{Slot: slot, Renderer: renderer, Err: errNoHandle}
	}
	return result, nil
}
