package scene

import (
	"math"
	"testing"

	"github.com/lumenrt/lumen/types"
)

func TestNewPlane(t *testing.T) {
	mesh := NewPlane(1, 1, 1)
	if len(mesh.Attributes) != 4 {
		t.Fatalf("expected 4 vertices; got %d", len(mesh.Attributes))
	}
	if len(mesh.Indices) != 6 {
		t.Fatalf("expected 6 indices; got %d", len(mesh.Indices))
	}
	for i, attr := range mesh.Attributes {
		if attr.Normal != types.XYZ(0, 1, 0) {
			t.Fatalf("vertex %d: unexpected normal %v", i, attr.Normal)
		}
		if attr.Position[1] != 0 {
			t.Fatalf("vertex %d: expected the plane at y=0", i)
		}
	}

	tessellated := NewPlane(4, 3, 1)
	if exp := 5 * 4; len(tessellated.Attributes) != exp {
		t.Fatalf("expected %d vertices; got %d", exp, len(tessellated.Attributes))
	}
	if exp := 4 * 3 * 6; len(tessellated.Indices) != exp {
		t.Fatalf("expected %d indices; got %d", exp, len(tessellated.Indices))
	}
}

func TestNewBox(t *testing.T) {
	mesh := NewBox()
	if len(mesh.Attributes) != 24 {
		t.Fatalf("expected 24 vertices; got %d", len(mesh.Attributes))
	}
	if len(mesh.Indices) != 36 {
		t.Fatalf("expected 36 indices; got %d", len(mesh.Indices))
	}
	for i, attr := range mesh.Attributes {
		for c := 0; c < 3; c++ {
			if v := attr.Position[c]; v < -1.001 || v > 1.001 {
				t.Fatalf("vertex %d: position %v outside the unit cube", i, attr.Position)
			}
		}
		// Every vertex lies on the face its normal points out of.
		if attr.Position.Dot(attr.Normal) != 1 {
			t.Fatalf("vertex %d: normal %v does not match face of %v", i, attr.Normal, attr.Position)
		}
	}
}

func TestNewSphere(t *testing.T) {
	mesh := NewSphere(8, 5, 2, math.Pi)
	if exp := 9 * 5; len(mesh.Attributes) != exp {
		t.Fatalf("expected %d vertices; got %d", exp, len(mesh.Attributes))
	}
	for i, attr := range mesh.Attributes {
		if r := attr.Position.Len(); r < 1.999 || r > 2.001 {
			t.Fatalf("vertex %d: radius %v", i, r)
		}
		if n := attr.Normal.Len(); n < 0.999 || n > 1.001 {
			t.Fatalf("vertex %d: normal length %v", i, n)
		}
	}
	for i, idx := range mesh.Indices {
		if int(idx) >= len(mesh.Attributes) {
			t.Fatalf("index %d out of range: %d", i, idx)
		}
	}
}

func TestNewTorus(t *testing.T) {
	mesh := NewTorus(8, 6, 0.75, 0.25)
	if exp := 9 * 7; len(mesh.Attributes) != exp {
		t.Fatalf("expected %d vertices; got %d", exp, len(mesh.Attributes))
	}
	if exp := 8 * 6 * 6; len(mesh.Indices) != exp {
		t.Fatalf("expected %d indices; got %d", exp, len(mesh.Indices))
	}
	for i, attr := range mesh.Attributes {
		// Distance from the ring centerline equals the tube radius.
		ring := types.XYZ(attr.Position[0], 0, attr.Position[2])
		if l := ring.Len(); l > 0 {
			ring = ring.Normalize().Mul(0.75)
		}
		d := attr.Position.Sub(ring).Len()
		if d < 0.249 || d > 0.251 {
			t.Fatalf("vertex %d: tube distance %v", i, d)
		}
	}
}

func TestNewParallelogram(t *testing.T) {
	mesh := NewParallelogram(
		types.XYZ(-2, 4, -2),
		types.XYZ(4, 0, 0),
		types.XYZ(0, 0, 4),
		types.XYZ(0, -1, 0),
	)
	if len(mesh.Attributes) != 4 || len(mesh.Indices) != 6 {
		t.Fatal("expected a two-triangle quad")
	}
	if mesh.Attributes[2].Position != types.XYZ(2, 4, 2) {
		t.Fatalf("unexpected far corner %v", mesh.Attributes[2].Position)
	}
}
