// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrameAvailable is returned by a FrameProvider when the renderer
	// has nothing new. PresentNext skips the tick without touching the
	// display.
	ErrNoFrameAvailable = errors.New("scanout: no frame available")

	// ErrPresentationHalted is returned once the CPU path has failed
	// permanently. The session cannot present anymore.
	ErrPresentationHalted = errors.New("scanout: presentation halted")

	// ErrDisplayClosed is returned by PresentFrame after Close.
	ErrDisplayClosed = errors.New("scanout: display closed")

	// ErrUnsupportedFrame is returned for a frame the active path cannot
	// consume, such as a GPU frame without a compute context.
	ErrUnsupportedFrame = errors.New("scanout: frame not supported by active path")

	// ErrInvalidFrame is returned for a CPU frame with a short stride or
	// pixel slice.
	ErrInvalidFrame = errors.New("scanout: invalid frame")
)

// InitError reports that a required display resource is missing.
// It is always fatal.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("scanout: %s: %v", e.Op, e.Err) }

func (e *InitError) Unwrap() error { return e.Err }

// AllocError reports a failed buffer allocation, framebuffer registration
// or GPU import. On the zero-copy path it triggers degradation; on the CPU
// path it is fatal.
type AllocError struct {
	Path  PathKind
	Op    string
	Err   error
	Fatal bool
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("scanout: %s path: %s: %v", e.Path, e.Op, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

// PresentError reports that a single frame was dropped.
type PresentError struct {
	Path  PathKind
	Frame uint64
	Op    string
	Err   error
}

func (e *PresentError) Error() string {
	return fmt.Sprintf("scanout: frame %d: %s path: %s: %v", e.Frame, e.Path, e.Op, e.Err)
}

func (e *PresentError) Unwrap() error { return e.Err }

// IsFatal reports whether err ends the session: an InitError, a fatal
// AllocError, or a halted presentation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ie *InitError
	if errors.As(err, &ie) {
		return true
	}
	var ae *AllocError
	if errors.As(err, &ae) && ae.Fatal {
		return true
	}
	return errors.Is(err, ErrPresentationHalted)
}
