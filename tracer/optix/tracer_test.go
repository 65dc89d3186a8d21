package optix

import (
	"bytes"
	"testing"

	"github.com/lumenrt/lumen/rt/sim"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

func newTestTracer(t *testing.T, env scene.EnvironmentType, areaLight bool) (*Tracer, *sim.Backend) {
	t.Helper()
	backend := sim.NewBackend()
	tracer := NewTracer(backend, Options{
		Width:       16,
		Height:      8,
		Environment: env,
		AreaLight:   areaLight,
		Loader:      StaticModuleLoader([]byte{0xca, 0xfe}),
	})
	if !tracer.Setup() {
		t.Fatal("expected setup to succeed")
	}
	return tracer, backend
}

func TestSetupAndTeardown(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, true)

	if !tracer.IsValid() {
		t.Fatal("expected tracer to be valid after setup")
	}
	if err := tracer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := backend.LiveAllocations(); got != 0 {
		t.Fatalf("expected no leaked allocations after close; got %d", got)
	}
}

func TestSetupFailsOnEmptyModule(t *testing.T) {
	backend := sim.NewBackend()
	tracer := NewTracer(backend, Options{
		Width:  4,
		Height: 4,
		Loader: StaticModuleLoader(nil),
	})
	if tracer.Setup() {
		t.Fatal("expected setup to fail with empty module images")
	}
	if tracer.IsValid() {
		t.Fatal("expected tracer to stay invalid")
	}
}

func TestHitRecordCountMatchesInstances(t *testing.T) {
	specs := []struct {
		descr      string
		areaLight  bool
		expRecords int
	}{
		{"without light", false, 5 * numRayTypes},
		{"with light", true, 6 * numRayTypes},
	}

	for _, spec := range specs {
		tracer, _ := newTestTracer(t, scene.EnvironmentConstant, spec.areaLight)

		table := tracer.sbt.Table()
		if table.HitGroupRecordCount != spec.expRecords {
			t.Fatalf("[%s] expected %d hit records; got %d", spec.descr, spec.expRecords, table.HitGroupRecordCount)
		}
		if table.HitGroupRecordCount != tracer.graph.NumInstances()*numRayTypes {
			t.Fatalf("[%s] hit record count does not match instance count", spec.descr)
		}
		if table.CallablesRecordCount != int(numCallables) {
			t.Fatalf("[%s] expected %d callable records; got %d", spec.descr, int(numCallables), table.CallablesRecordCount)
		}
		tracer.Close()
	}
}

func TestInstanceOffsetCorrelation(t *testing.T) {
	tracer, _ := newTestTracer(t, scene.EnvironmentConstant, true)
	defer tracer.Close()

	seen := make(map[uint32]bool)
	for id, inst := range tracer.graph.deviceInstances() {
		if inst.InstanceID != uint32(id) {
			t.Fatalf("instance %d: got ID %d", id, inst.InstanceID)
		}
		if inst.SbtOffset != uint32(id*numRayTypes) {
			t.Fatalf("instance %d: got SBT offset %d; expected %d", id, inst.SbtOffset, id*numRayTypes)
		}
		if inst.SbtOffset%numRayTypes != 0 {
			t.Fatalf("instance %d: SBT offset %d not aligned to ray-type count", id, inst.SbtOffset)
		}
		if seen[inst.SbtOffset] {
			t.Fatalf("instance %d: duplicate SBT offset %d", id, inst.SbtOffset)
		}
		seen[inst.SbtOffset] = true
	}
}

func TestRestartIdempotence(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, true)
	defer tracer.Close()

	if err := tracer.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	first := backend.Peek(tracer.mirror.Buffer(), paramsSize)

	// Advance accumulation, then restart again; the device block must
	// return to the exact post-restart state.
	if err := tracer.WriteIterationIndex(7); err != nil {
		t.Fatalf("iteration update failed: %v", err)
	}
	if err := tracer.Restart(); err != nil {
		t.Fatalf("second restart failed: %v", err)
	}
	second := backend.Peek(tracer.mirror.Buffer(), paramsSize)

	if !bytes.Equal(first, second) {
		t.Fatal("expected identical device parameter blocks after repeated restarts")
	}
	if tracer.RestartPending() {
		t.Fatal("expected no pending restart after Restart")
	}
}

func TestParameterEditsScheduleRestart(t *testing.T) {
	tracer, _ := newTestTracer(t, scene.EnvironmentConstant, true)
	defer tracer.Close()

	if err := tracer.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	specs := []struct {
		descr string
		edit  func() error
	}{
		{"camera frame", func() error {
			tracer.SetCameraFrame(types.XYZ(0, 1, 2), types.XYZ(1, 0, 0), types.XYZ(0, 1, 0), types.XYZ(0, 0, 1))
			return nil
		}},
		{"camera type", func() error { tracer.SetCameraType(scene.ProjectionFisheye); return nil }},
		{"path lengths", func() error { tracer.SetPathLengths(1, 4); return nil }},
		{"scene epsilon", func() error { tracer.SetSceneEpsilonFactor(250); return nil }},
		{"environment rotation", func() error { tracer.SetEnvironmentRotation(0.25); return nil }},
		{"light emission", func() error { return tracer.SetLightEmission(1, types.Splat3(42)) }},
		{"material", func() error { return tracer.SetMaterial(4, *tracer.materials.Material(4)) }},
	}

	for _, spec := range specs {
		if tracer.RestartPending() {
			t.Fatalf("[%s] restart already pending before edit", spec.descr)
		}
		if err := spec.edit(); err != nil {
			t.Fatalf("[%s] edit failed: %v", spec.descr, err)
		}
		if !tracer.RestartPending() {
			t.Fatalf("[%s] expected edit to schedule a restart", spec.descr)
		}
		if err := tracer.Restart(); err != nil {
			t.Fatalf("[%s] restart failed: %v", spec.descr, err)
		}
	}
}

func TestIterationIndexFieldUpdate(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, false)
	defer tracer.Close()

	if err := tracer.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	before := backend.Peek(tracer.mirror.Buffer(), paramsSize)

	if err := tracer.WriteIterationIndex(9); err != nil {
		t.Fatalf("iteration update failed: %v", err)
	}
	after := backend.Peek(tracer.mirror.Buffer(), paramsSize)

	for i := range before {
		inField := i >= offIterationIndex && i < offIterationIndex+4
		if inField {
			continue
		}
		if before[i] != after[i] {
			t.Fatalf("byte %d changed by iteration index update", i)
		}
	}
	if after[offIterationIndex] != 9 {
		t.Fatalf("expected iteration index 9 in device block; got %d", after[offIterationIndex])
	}
}

func TestCutoutToggleUpdatesOnlyOwnRecords(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, true)
	defer tracer.Close()

	// Material 3 (single cutout material) is bound to instance 3.
	const instance = 3
	table := tracer.sbt.Table()
	regionSize := table.HitGroupRecordCount * hitRecordSize

	before := backend.Peek(table.HitGroupRecordBase, regionSize)
	if err := tracer.ToggleCutout(3); err != nil {
		t.Fatalf("cutout toggle failed: %v", err)
	}
	after := backend.Peek(table.HitGroupRecordBase, regionSize)

	lo := instance * numRayTypes * hitRecordSize
	hi := lo + numRayTypes*hitRecordSize
	for i := range before {
		if i >= lo && i < hi {
			continue
		}
		if before[i] != after[i] {
			t.Fatalf("byte %d outside the updated record pair changed", i)
		}
	}

	// Headers must differ, payloads must survive untouched.
	for rayType := 0; rayType < numRayTypes; rayType++ {
		o := lo + rayType*hitRecordSize
		if bytes.Equal(before[o:o+32], after[o:o+32]) {
			t.Fatalf("ray type %d: expected the record header to change", rayType)
		}
		if !bytes.Equal(before[o+32:o+hitRecordSize], after[o+32:o+hitRecordSize]) {
			t.Fatalf("ray type %d: expected the record payload to stay intact", rayType)
		}
	}

	// Toggling back restores the original region exactly.
	if err := tracer.ToggleCutout(3); err != nil {
		t.Fatalf("second cutout toggle failed: %v", err)
	}
	restored := backend.Peek(table.HitGroupRecordBase, regionSize)
	if !bytes.Equal(before, restored) {
		t.Fatal("expected the original record region after toggling back")
	}
}

func TestLaunchDimensions(t *testing.T) {
	tracer, backend := newTestTracer(t, scene.EnvironmentConstant, false)
	defer tracer.Close()

	if err := tracer.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := tracer.Launch(); err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if len(backend.Launches) != 1 {
		t.Fatalf("expected 1 recorded launch; got %d", len(backend.Launches))
	}
	launch := backend.Launches[0]
	if launch.Width != 16 || launch.Height != 8 || launch.Depth != 1 {
		t.Fatalf("unexpected launch dimensions %dx%dx%d", launch.Width, launch.Height, launch.Depth)
	}
	if launch.SBT.HitGroupRecordStride != hitRecordSize {
		t.Fatalf("unexpected hit record stride %d", launch.SBT.HitGroupRecordStride)
	}
}

func TestReadOutputSize(t *testing.T) {
	tracer, _ := newTestTracer(t, scene.EnvironmentConstant, false)
	defer tracer.Close()

	pix, err := tracer.ReadOutput()
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if exp := 16 * 8 * 4; len(pix) != exp {
		t.Fatalf("expected %d floats; got %d", exp, len(pix))
	}
}
