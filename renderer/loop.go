// Package renderer drives the per-frame accumulation and present loop
// on top of a frame tracer and a display collaborator.
package renderer

import (
	"math"
	"time"

	"github.com/lumenrt/lumen/log"
	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

var logger = log.New("renderer")

// Tracer is the frame-level surface the loop drives.
type Tracer interface {
	SetCameraFrame(pos, u, v, w types.Vec3)
	RestartPending() bool
	Restart() error
	WriteIterationIndex(iteration uint32) error
	SetOutputBuffer(ptr rt.DevicePtr) error
	Launch() error
	ReadOutput() ([]float32, error)
}

// Display receives accumulated images. Interop displays own the
// output buffer and expose it through Map/Unmap around each launch.
type Display interface {
	// Active polls events and reports whether the display is still
	// open.
	Active() bool

	Interop() bool
	MapOutput() (rt.DevicePtr, error)
	UnmapOutput() error

	// Present consumes the accumulated RGBA float32 image.
	Present(pix []float32) error

	Close() error
}

// Loop runs the accumulation state machine: restart on parameter
// changes, one launch per frame while the iteration budget allows, and
// throttled presents.
type Loop struct {
	tracer  Tracer
	camera  *scene.Camera
	display Display

	// Iteration budget; 0 accumulates without bound.
	frames uint32

	// Present every frame instead of once per second.
	continuous bool

	iteration       uint32
	presentNext     bool
	presentAtSecond float64
	started         time.Time
	loggedSecond    int

	// Injectable clock.
	now func() time.Time
}

// NewLoop creates a loop over a tracer, camera and display. A frames
// budget of 0 accumulates without bound.
func NewLoop(tracer Tracer, camera *scene.Camera, display Display, frames uint32, continuous bool) *Loop {
	return &Loop{
		tracer:     tracer,
		camera:     camera,
		display:    display,
		frames:     frames,
		continuous: continuous,
		now:        time.Now,
	}
}

// Iteration returns the next iteration index to be launched.
func (l *Loop) Iteration() uint32 {
	return l.iteration
}

// restart resets accumulation: iteration zero, forced present, present
// throttle and clock back to their initial state, full parameter
// re-upload on the device.
func (l *Loop) restart() error {
	if err := l.tracer.Restart(); err != nil {
		return err
	}
	l.iteration = 0
	l.presentNext = true
	l.presentAtSecond = 1
	l.started = l.now()
	l.loggedSecond = 0
	return nil
}

// RenderFrame runs one pass of the state machine and reports whether
// an image was presented.
func (l *Loop) RenderFrame() (bool, error) {
	if pos, u, v, w, changed := l.camera.Frustum(); changed {
		l.tracer.SetCameraFrame(pos, u, v, w)
	}
	if l.tracer.RestartPending() {
		if err := l.restart(); err != nil {
			return false, err
		}
	}
	if l.started.IsZero() {
		l.started = l.now()
	}

	if l.frames == 0 || l.iteration < l.frames {
		if err := l.tracer.WriteIterationIndex(l.iteration); err != nil {
			return false, err
		}

		interop := l.display.Interop()
		if interop {
			ptr, err := l.display.MapOutput()
			if err != nil {
				return false, err
			}
			if err = l.tracer.SetOutputBuffer(ptr); err != nil {
				return false, err
			}
		}
		if err := l.tracer.Launch(); err != nil {
			return false, err
		}
		if interop {
			if err := l.display.UnmapOutput(); err != nil {
				return false, err
			}
		}

		l.iteration++
		if l.frames != 0 && l.iteration == l.frames {
			// The final accumulated image must reach the display.
			l.presentNext = true
		}
	}

	elapsed := l.now().Sub(l.started).Seconds()
	present := l.presentNext || l.continuous
	if elapsed < 0.5 {
		// Early accumulation converges fast; show every frame.
		present = true
	} else if elapsed > l.presentAtSecond {
		l.presentAtSecond = math.Ceil(elapsed)
		present = true
	}
	if !present {
		return false, nil
	}

	pix, err := l.tracer.ReadOutput()
	if err != nil {
		return false, err
	}
	if err = l.display.Present(pix); err != nil {
		return false, err
	}
	l.presentNext = false

	if second := int(elapsed); second > l.loggedSecond {
		l.loggedSecond = second
		logger.Noticef("%d iterations in %.2f sec (%.2f iterations/sec)", l.iteration, elapsed, float64(l.iteration)/elapsed)
	}
	return true, nil
}

// Run renders frames until the display closes or a finite budget has
// been accumulated and presented.
func (l *Loop) Run() error {
	for l.display.Active() {
		presented, err := l.RenderFrame()
		if err != nil {
			return err
		}
		if l.frames != 0 && l.iteration >= l.frames && presented {
			return nil
		}
	}
	return nil
}
