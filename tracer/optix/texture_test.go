package optix

import (
	"path/filepath"
	"testing"

	"github.com/lumenrt/lumen/rt/sim"
)

func TestLoadImageFallsBackToPlaceholder(t *testing.T) {
	img := loadImage(filepath.Join(t.TempDir(), "missing.png"))
	if img == nil {
		t.Fatal("expected a placeholder image")
	}
	bounds := img.Bounds()
	if bounds.Dx() != 2 || bounds.Dy() != 2 {
		t.Fatalf("unexpected placeholder size %dx%d", bounds.Dx(), bounds.Dy())
	}

	// Deterministic content: magenta/black checker.
	again := loadImage("also-missing.jpg")
	for i := range img.Pix {
		if img.Pix[i] != again.Pix[i] {
			t.Fatal("expected a deterministic placeholder")
		}
	}
}

func TestBuildCDFs(t *testing.T) {
	// 2x2 image with all the energy in the bottom-right texel.
	luminance := []float64{0, 0, 0, 4}
	cdfU, cdfV, integral := buildCDFs(luminance, 2, 2)

	if len(cdfU) != 3*2 || len(cdfV) != 3 {
		t.Fatalf("unexpected CDF lengths %d/%d", len(cdfU), len(cdfV))
	}
	if cdfU[2] != 1 || cdfU[5] != 1 || cdfV[2] != 1 {
		t.Fatal("expected normalized CDFs ending at 1")
	}
	// Row 0 carries no energy; row 1 carries all of it.
	if cdfV[1] != 0 {
		t.Fatalf("expected zero marginal mass in row 0; got %v", cdfV[1])
	}
	// Within row 1, texel 0 carries nothing.
	if cdfU[3+1] != 0 {
		t.Fatalf("expected zero conditional mass in texel 0; got %v", cdfU[3+1])
	}
	if integral != 1 {
		t.Fatalf("expected integral 1; got %v", integral)
	}
}

func TestEnvironmentMapUpload(t *testing.T) {
	backend := sim.NewBackend()

	// A missing file still yields a complete environment resource via
	// the placeholder.
	env, err := newEnvironmentMap(backend, "missing.png")
	if err != nil {
		t.Fatalf("environment map creation failed: %v", err)
	}
	if env.texture == 0 {
		t.Fatal("expected an uploaded environment texture")
	}
	if env.cdfU == 0 || env.cdfV == 0 {
		t.Fatal("expected uploaded CDF tables")
	}
	if env.width != 2 || env.height != 2 {
		t.Fatalf("unexpected environment size %dx%d", env.width, env.height)
	}

	env.Release(backend)
	if got := backend.LiveAllocations(); got != 0 {
		t.Fatalf("expected no live allocations after release; got %d", got)
	}
}
