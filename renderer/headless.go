package renderer

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/lumenrt/lumen/rt"
)

// HeadlessDisplay captures presented images without a window. Used by
// the offline render command to accumulate a fixed frame budget and
// write the result to disk.
type HeadlessDisplay struct {
	width  int
	height int

	// Last presented image and the number of presents so far.
	Image    []float32
	Presents int
}

// NewHeadlessDisplay creates a window-less display of a fixed size.
func NewHeadlessDisplay(width, height int) *HeadlessDisplay {
	return &HeadlessDisplay{width: width, height: height}
}

// Active implements Display.
func (d *HeadlessDisplay) Active() bool { return true }

// Interop implements Display.
func (d *HeadlessDisplay) Interop() bool { return false }

// MapOutput implements Display.
func (d *HeadlessDisplay) MapOutput() (rt.DevicePtr, error) {
	return 0, ErrInteropDisabled
}

// UnmapOutput implements Display.
func (d *HeadlessDisplay) UnmapOutput() error {
	return ErrInteropDisabled
}

// Present implements Display.
func (d *HeadlessDisplay) Present(pix []float32) error {
	if len(pix) < d.width*d.height*4 {
		return fmt.Errorf("headless: short image: %d floats", len(pix))
	}
	if d.Image == nil {
		d.Image = make([]float32, d.width*d.height*4)
	}
	copy(d.Image, pix)
	d.Presents++
	return nil
}

// Close implements Display.
func (d *HeadlessDisplay) Close() error { return nil }

// WritePNG gamma-corrects the last presented image and writes it as a
// PNG file.
func (d *HeadlessDisplay) WritePNG(path string) error {
	if d.Image == nil {
		return ErrNothingPresented
	}

	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			// Accumulation uses a bottom-left origin.
			src := ((d.height-1-y)*d.width + x) * 4
			dst := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := math.Pow(float64(d.Image[src+c]), 1/2.2)
				if v > 1 {
					v = 1
				} else if v < 0 {
					v = 0
				}
				img.Pix[dst+c] = uint8(v*255 + 0.5)
			}
			img.Pix[dst+3] = 255
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("headless: creating %q: %v", path, err)
	}
	defer f.Close()
	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("headless: encoding %q: %v", path, err)
	}
	return nil
}
