package renderer

import "errors"

var (
	// ErrInteropDisabled is returned by Map/UnmapOutput on displays
	// that present via host readback instead of sharing the output
	// buffer.
	ErrInteropDisabled = errors.New("renderer: buffer interop disabled")

	// ErrNothingPresented is returned when a snapshot is requested
	// before any image reached the display.
	ErrNothingPresented = errors.New("renderer: nothing presented yet")
)
