package optix

import (
	"testing"

	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

func TestBuildLightsWithoutLights(t *testing.T) {
	lights := buildLights(scene.EnvironmentNone, nil)
	if len(lights) != 0 {
		t.Fatalf("expected no lights; got %d", len(lights))
	}
}

func TestBuildLightsEnvironmentOccupiesSlotZero(t *testing.T) {
	area := NewParallelogramLight(
		types.XYZ(-2, 4, -2),
		types.XYZ(4, 0, 0),
		types.XYZ(0, 0, 4),
		types.Splat3(10),
	)

	lights := buildLights(scene.EnvironmentConstant, &area)
	if len(lights) != 2 {
		t.Fatalf("expected 2 lights; got %d", len(lights))
	}
	if lights[0].Type != LightEnvironmentConstant {
		t.Fatalf("expected the environment light in slot 0; got type %d", lights[0].Type)
	}
	if lights[1].Type != LightParallelogram {
		t.Fatalf("expected the area light in slot 1; got type %d", lights[1].Type)
	}

	lights = buildLights(scene.EnvironmentSphere, nil)
	if len(lights) != 1 || lights[0].Type != LightEnvironmentSphere {
		t.Fatal("expected only the sphere environment light in slot 0")
	}
}

func TestParallelogramLightDerivedFields(t *testing.T) {
	light := NewParallelogramLight(
		types.XYZ(-2, 4, -2),
		types.XYZ(4, 0, 0),
		types.XYZ(0, 0, 4),
		types.Splat3(10),
	)

	if light.Area != 16 {
		t.Fatalf("expected area 16; got %v", light.Area)
	}
	if exp := types.XYZ(0, -1, 0); light.Normal != exp {
		t.Fatalf("expected unit normal %v; got %v", exp, light.Normal)
	}

	// Degenerate edges keep a unit fallback normal.
	degenerate := NewParallelogramLight(types.Splat3(0), types.XYZ(1, 0, 0), types.XYZ(2, 0, 0), types.Splat3(1))
	if degenerate.Area != 0 {
		t.Fatalf("expected zero area; got %v", degenerate.Area)
	}
	if degenerate.Normal.Len() == 0 {
		t.Fatal("expected a non-zero fallback normal")
	}
}

func TestLightEmissionEdit(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, true)
	defer tracer.Close()

	if err := tracer.SetLightEmission(1, types.Splat3(99)); err != nil {
		t.Fatalf("emission edit failed: %v", err)
	}

	data := backend.Peek(tracer.lights.Buffer(), tracer.lights.Len()*lightRecordSize)
	// Emission of light 1 sits after type, position, u, v, normal, area.
	o := lightRecordSize + 56
	bits := uint32(data[o]) | uint32(data[o+1])<<8 | uint32(data[o+2])<<16 | uint32(data[o+3])<<24
	if bits != 0x42c60000 { // float32(99)
		t.Fatalf("expected emission 99 in the device mirror; got bits %#x", bits)
	}
}
