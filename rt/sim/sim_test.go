package sim

import (
	"bytes"
	"testing"

	"github.com/lumenrt/lumen/rt"
)

func TestMemoryRoundTrip(t *testing.T) {
	backend := NewBackend()

	ptr, err := backend.Malloc(64)
	if err != nil {
		t.Fatalf("malloc failed: %v", err)
	}

	src := bytes.Repeat([]byte{0xab}, 64)
	if err = backend.MemcpyHtoD(ptr, src); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	dst := make([]byte, 64)
	if err = backend.MemcpyDtoH(dst, ptr); err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if !bytes.Equal(src, dst) {
		t.Fatal("expected an identical round trip")
	}

	// Interior pointers address into the containing allocation.
	if err = backend.MemcpyHtoD(ptr+16, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("interior upload failed: %v", err)
	}
	if err = backend.MemcpyDtoH(dst, ptr); err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if dst[16] != 1 || dst[19] != 4 || dst[15] != 0xab || dst[20] != 0xab {
		t.Fatal("interior copy touched the wrong bytes")
	}
}

func TestMemoryErrors(t *testing.T) {
	backend := NewBackend()

	ptr, _ := backend.Malloc(16)
	if err := backend.MemcpyHtoD(ptr, make([]byte, 17)); err == nil {
		t.Fatal("expected an out-of-bounds upload to fail")
	}
	if _, err := backend.Malloc(0); err == nil {
		t.Fatal("expected a zero-size malloc to fail")
	}

	if err := backend.Free(ptr); err != nil {
		t.Fatalf("free failed: %v", err)
	}
	if err := backend.Free(ptr); err == nil {
		t.Fatal("expected a double free to fail")
	}
	if err := backend.MemcpyHtoD(ptr, []byte{1}); err == nil {
		t.Fatal("expected a use after free to fail")
	}
	if got := backend.LiveAllocations(); got != 0 {
		t.Fatalf("expected no live allocations; got %d", got)
	}
}

func TestSbtHeadersAreDistinctPerGroup(t *testing.T) {
	backend := NewBackend()

	module, err := backend.CreateModule([]byte{1})
	if err != nil {
		t.Fatalf("module creation failed: %v", err)
	}
	groups, err := backend.CreateProgramGroups([]rt.ProgramGroupDesc{
		{Kind: rt.KindHitGroup, ModuleCH: module, EntryPointCH: "__closesthit__radiance"},
		{Kind: rt.KindHitGroup, ModuleCH: module, EntryPointCH: "__closesthit__radiance", ModuleAH: module, EntryPointAH: "__anyhit__radiance_cutout"},
	})
	if err != nil {
		t.Fatalf("group creation failed: %v", err)
	}

	headers := make([][]byte, len(groups))
	for i, group := range groups {
		headers[i] = make([]byte, rt.SbtRecordHeaderSize)
		if err = backend.PackSbtRecordHeader(group, headers[i]); err != nil {
			t.Fatalf("header packing failed: %v", err)
		}
	}
	if bytes.Equal(headers[0], headers[1]) {
		t.Fatal("expected distinct headers for distinct program groups")
	}

	// Headers stay stable across repeated packing.
	again := make([]byte, rt.SbtRecordHeaderSize)
	if err = backend.PackSbtRecordHeader(groups[0], again); err != nil {
		t.Fatalf("header packing failed: %v", err)
	}
	if !bytes.Equal(headers[0], again) {
		t.Fatal("expected deterministic headers per group")
	}
}

func TestModuleValidation(t *testing.T) {
	backend := NewBackend()

	if _, err := backend.CreateModule(nil); err == nil {
		t.Fatal("expected an empty module image to fail")
	}

	module, _ := backend.CreateModule([]byte{1})
	if err := backend.DestroyModule(module); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}
	if _, err := backend.CreateProgramGroups([]rt.ProgramGroupDesc{
		{Kind: rt.KindRaygen, Module: module, EntryPoint: "__raygen__pathtracer"},
	}); err == nil {
		t.Fatal("expected group creation on a destroyed module to fail")
	}
}

func TestAccelBuildValidatesInputs(t *testing.T) {
	backend := NewBackend()

	attr, _ := backend.Malloc(3 * 48)
	idx, _ := backend.Malloc(12)
	input := rt.TriangleInput{Attributes: attr, AttributeStride: 48, NumAttributes: 3, Indices: idx, NumTriplets: 1}

	sizes, err := backend.ComputeAccelMemoryUsage(input)
	if err != nil {
		t.Fatalf("size query failed: %v", err)
	}
	if sizes.OutputSizeInBytes == 0 || sizes.TempSizeInBytes == 0 {
		t.Fatal("expected non-zero accel buffer sizes")
	}

	output, _ := backend.Malloc(sizes.OutputSizeInBytes)
	temp, _ := backend.Malloc(sizes.TempSizeInBytes)
	handle, err := backend.BuildAccel(input, temp, sizes.TempSizeInBytes, output, sizes.OutputSizeInBytes)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("expected a non-zero traversable handle")
	}

	// A build over freed geometry must fail.
	backend.Free(attr)
	if _, err = backend.BuildAccel(input, temp, sizes.TempSizeInBytes, output, sizes.OutputSizeInBytes); err == nil {
		t.Fatal("expected a build on freed buffers to fail")
	}
}

func TestLaunchRecording(t *testing.T) {
	backend := NewBackend()

	module, _ := backend.CreateModule([]byte{1})
	groups, _ := backend.CreateProgramGroups([]rt.ProgramGroupDesc{
		{Kind: rt.KindRaygen, Module: module, EntryPoint: "__raygen__pathtracer"},
	})
	pipeline, err := backend.CreatePipeline(groups, rt.PipelineOptions{MaxTraceDepth: 2})
	if err != nil {
		t.Fatalf("pipeline creation failed: %v", err)
	}

	params, _ := backend.Malloc(16)
	backend.MemcpyHtoD(params, []byte{9, 0, 0, 0})

	raygen, _ := backend.Malloc(rt.SbtRecordHeaderSize)
	sbt := &rt.ShaderBindingTable{RaygenRecord: raygen}

	if err = backend.Launch(pipeline, params, 16, sbt, 8, 4, 1); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	if len(backend.Launches) != 1 {
		t.Fatalf("expected 1 recorded launch; got %d", len(backend.Launches))
	}

	launch := backend.Launches[0]
	if launch.Width != 8 || launch.Height != 4 {
		t.Fatalf("unexpected launch dimensions %dx%d", launch.Width, launch.Height)
	}
	if launch.Params[0] != 9 {
		t.Fatal("expected a snapshot of the parameter block at launch time")
	}

	// The snapshot must not alias device memory.
	backend.MemcpyHtoD(params, []byte{1})
	if backend.Launches[0].Params[0] != 9 {
		t.Fatal("expected the launch snapshot to stay immutable")
	}

	if err = backend.Launch(pipeline, params, 16, sbt, 0, 4, 1); err == nil {
		t.Fatal("expected zero launch dimensions to fail")
	}
}
