package scene

import "testing"

func TestCameraChangeFlag(t *testing.T) {
	camera := NewCamera()

	// A fresh camera reports one initial change, then settles.
	if _, _, _, _, changed := camera.Frustum(); !changed {
		t.Fatal("expected the initial frustum to report a change")
	}
	if _, _, _, _, changed := camera.Frustum(); changed {
		t.Fatal("expected no change without manipulation")
	}

	camera.Zoom(5)
	if _, _, _, _, changed := camera.Frustum(); !changed {
		t.Fatal("expected a change after zooming")
	}

	camera.SetBaseCoordinates(10, 10)
	camera.Orbit(20, 15)
	if _, _, _, _, changed := camera.Frustum(); !changed {
		t.Fatal("expected a change after orbiting")
	}

	// A drag that stays on the anchor point is not a change.
	camera.SetBaseCoordinates(10, 10)
	camera.Orbit(10, 10)
	if _, _, _, _, changed := camera.Frustum(); changed {
		t.Fatal("expected no change for a zero-delta drag")
	}
}

func TestCameraFrameIsOrthogonal(t *testing.T) {
	camera := NewCamera()
	camera.SetViewport(640, 480)

	_, u, v, w, _ := camera.Frustum()
	if dot := u.Dot(v); dot < -1e-4 || dot > 1e-4 {
		t.Fatalf("expected orthogonal u/v; dot %v", dot)
	}
	if dot := u.Dot(w); dot < -1e-4 || dot > 1e-4 {
		t.Fatalf("expected orthogonal u/w; dot %v", dot)
	}

	// The horizontal basis carries the aspect ratio.
	aspect := u.Len() / v.Len()
	if exp := float32(640) / 480; aspect < exp-1e-3 || aspect > exp+1e-3 {
		t.Fatalf("expected aspect %v; got %v", exp, aspect)
	}
}

func TestCameraViewportClamping(t *testing.T) {
	camera := NewCamera()
	camera.Frustum()

	camera.SetViewport(0, -5)
	if camera.width != 1 || camera.height != 1 {
		t.Fatalf("expected a clamped 1x1 viewport; got %dx%d", camera.width, camera.height)
	}

	// Setting the same viewport twice does not flag a change.
	camera.Frustum()
	camera.SetViewport(1, 1)
	if _, _, _, _, changed := camera.Frustum(); changed {
		t.Fatal("expected no change for an identical viewport")
	}
}
