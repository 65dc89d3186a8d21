// Package sim provides an in-memory implementation of the rt.API
// backend contract. It tracks allocations, validates copies and
// acceleration builds, and records launches so that the full resource
// lifecycle of the renderer can be exercised without a GPU.
package sim

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/lumenrt/lumen/rt"
)

type allocation struct {
	data []byte
	free bool
}

type moduleState struct {
	code      []byte
	destroyed bool
}

type groupState struct {
	desc      rt.ProgramGroupDesc
	destroyed bool
}

type pipelineState struct {
	groups    []rt.ProgramGroup
	opts      rt.PipelineOptions
	destroyed bool

	dcStackFromTraversal     uint32
	dcStackFromState         uint32
	continuationStack        uint32
	maxTraversableGraphDepth uint32
}

// Launch captures one pipeline dispatch.
type Launch struct {
	Pipeline      rt.Pipeline
	Params        []byte
	SBT           rt.ShaderBindingTable
	Width, Height int
	Depth         int
}

// Backend is an in-memory rt.API implementation. It is not safe for
// concurrent use; the renderer drives it from a single goroutine.
type Backend struct {
	nextPtr    rt.DevicePtr
	nextHandle uint64

	allocations map[rt.DevicePtr]*allocation
	modules     map[rt.Module]*moduleState
	groups      map[rt.ProgramGroup]*groupState
	pipelines   map[rt.Pipeline]*pipelineState
	accels      map[rt.TraversableHandle]rt.AccelBuildInput
	textures    []rt.TextureDesc

	// SyncCount is incremented by every StreamSynchronize call.
	SyncCount int

	// Launches holds every recorded dispatch in submission order.
	Launches []Launch

	closed bool
}

// NewBackend creates an empty simulation backend.
func NewBackend() *Backend {
	return &Backend{
		nextPtr:     0x1000,
		nextHandle:  1,
		allocations: make(map[rt.DevicePtr]*allocation),
		modules:     make(map[rt.Module]*moduleState),
		groups:      make(map[rt.ProgramGroup]*groupState),
		pipelines:   make(map[rt.Pipeline]*pipelineState),
		accels:      make(map[rt.TraversableHandle]rt.AccelBuildInput),
	}
}

// Name implements rt.API.
func (b *Backend) Name() string { return "sim" }

// Malloc implements rt.API.
func (b *Backend) Malloc(size int) (rt.DevicePtr, error) {
	if size <= 0 {
		return 0, rt.NewError("Malloc", rt.ErrInvalidValue, "size %d", size)
	}
	ptr := b.nextPtr
	// Keep allocations disjoint and 256-byte aligned.
	b.nextPtr += rt.DevicePtr((size + 255) &^ 255)
	b.allocations[ptr] = &allocation{data: make([]byte, size)}
	return ptr, nil
}

// Free implements rt.API.
func (b *Backend) Free(ptr rt.DevicePtr) error {
	if ptr == 0 {
		return nil
	}
	alloc, exists := b.allocations[ptr]
	if !exists || alloc.free {
		return rt.NewError("Free", rt.ErrInvalidDevicePtr, "ptr %#x", uint64(ptr))
	}
	alloc.free = true
	return nil
}

// resolve maps a device pointer, possibly interior to an allocation,
// to the backing bytes starting at that address.
func (b *Backend) resolve(op string, ptr rt.DevicePtr, size int) ([]byte, error) {
	for base, alloc := range b.allocations {
		if alloc.free || ptr < base || uint64(ptr) >= uint64(base)+uint64(len(alloc.data)) {
			continue
		}
		offset := int(ptr - base)
		if offset+size > len(alloc.data) {
			return nil, rt.NewError(op, rt.ErrInvalidValue, "access of %d bytes at offset %d exceeds allocation of %d", size, offset, len(alloc.data))
		}
		return alloc.data[offset:], nil
	}
	return nil, rt.NewError(op, rt.ErrInvalidDevicePtr, "ptr %#x", uint64(ptr))
}

func (b *Backend) lookup(op string, ptr rt.DevicePtr, size int) (*allocation, error) {
	alloc, exists := b.allocations[ptr]
	if !exists || alloc.free {
		return nil, rt.NewError(op, rt.ErrInvalidDevicePtr, "ptr %#x", uint64(ptr))
	}
	if size > len(alloc.data) {
		return nil, rt.NewError(op, rt.ErrInvalidValue, "copy of %d bytes exceeds allocation of %d", size, len(alloc.data))
	}
	return alloc, nil
}

// MemcpyHtoD implements rt.API.
func (b *Backend) MemcpyHtoD(dst rt.DevicePtr, src []byte) error {
	data, err := b.resolve("MemcpyHtoD", dst, len(src))
	if err != nil {
		return err
	}
	copy(data, src)
	return nil
}

// MemcpyDtoH implements rt.API.
func (b *Backend) MemcpyDtoH(dst []byte, src rt.DevicePtr) error {
	data, err := b.resolve("MemcpyDtoH", src, len(dst))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// StreamSynchronize implements rt.API.
func (b *Backend) StreamSynchronize() error {
	b.SyncCount++
	return nil
}

// ComputeAccelMemoryUsage implements rt.API.
func (b *Backend) ComputeAccelMemoryUsage(input rt.AccelBuildInput) (rt.AccelBufferSizes, error) {
	switch in := input.(type) {
	case rt.TriangleInput:
		if in.NumTriplets <= 0 || in.NumAttributes <= 0 {
			return rt.AccelBufferSizes{}, rt.NewError("ComputeAccelMemoryUsage", rt.ErrInvalidValue, "empty triangle input")
		}
		return rt.AccelBufferSizes{
			OutputSizeInBytes: 128 + in.NumTriplets*64,
			TempSizeInBytes:   64 + in.NumTriplets*32,
		}, nil
	case rt.InstanceInput:
		if in.NumInstances <= 0 {
			return rt.AccelBufferSizes{}, rt.NewError("ComputeAccelMemoryUsage", rt.ErrInvalidValue, "empty instance input")
		}
		return rt.AccelBufferSizes{
			OutputSizeInBytes: 128 + in.NumInstances*128,
			TempSizeInBytes:   64 + in.NumInstances*64,
		}, nil
	default:
		return rt.AccelBufferSizes{}, rt.NewError("ComputeAccelMemoryUsage", rt.ErrInvalidValue, "unknown build input")
	}
}

// BuildAccel implements rt.API.
func (b *Backend) BuildAccel(input rt.AccelBuildInput, temp rt.DevicePtr, tempSize int, output rt.DevicePtr, outputSize int) (rt.TraversableHandle, error) {
	if _, err := b.lookup("BuildAccel", temp, tempSize); err != nil {
		return 0, err
	}
	if _, err := b.lookup("BuildAccel", output, outputSize); err != nil {
		return 0, err
	}
	switch in := input.(type) {
	case rt.TriangleInput:
		if _, err := b.lookup("BuildAccel", in.Attributes, in.NumAttributes*in.AttributeStride); err != nil {
			return 0, err
		}
		if _, err := b.lookup("BuildAccel", in.Indices, in.NumTriplets*12); err != nil {
			return 0, err
		}
	case rt.InstanceInput:
		if _, err := b.lookup("BuildAccel", in.Instances, in.NumInstances*rt.InstanceByteSize); err != nil {
			return 0, err
		}
	}
	handle := rt.TraversableHandle(b.nextHandle)
	b.nextHandle++
	b.accels[handle] = input
	return handle, nil
}

// CreateModule implements rt.API.
func (b *Backend) CreateModule(code []byte) (rt.Module, error) {
	if len(code) == 0 {
		return 0, rt.NewError("CreateModule", rt.ErrInvalidModule, "empty module image")
	}
	m := rt.Module(b.nextHandle)
	b.nextHandle++
	b.modules[m] = &moduleState{code: code}
	return m, nil
}

// DestroyModule implements rt.API.
func (b *Backend) DestroyModule(m rt.Module) error {
	state, exists := b.modules[m]
	if !exists || state.destroyed {
		return rt.NewError("DestroyModule", rt.ErrInvalidModule, "module %d", uint64(m))
	}
	state.destroyed = true
	return nil
}

func (b *Backend) checkModule(op string, m rt.Module) error {
	if m == 0 {
		return nil
	}
	state, exists := b.modules[m]
	if !exists || state.destroyed {
		return rt.NewError(op, rt.ErrInvalidModule, "module %d", uint64(m))
	}
	return nil
}

// CreateProgramGroups implements rt.API.
func (b *Backend) CreateProgramGroups(descs []rt.ProgramGroupDesc) ([]rt.ProgramGroup, error) {
	groups := make([]rt.ProgramGroup, len(descs))
	for i, desc := range descs {
		for _, m := range []rt.Module{desc.Module, desc.ModuleCH, desc.ModuleAH} {
			if err := b.checkModule("CreateProgramGroups", m); err != nil {
				return nil, err
			}
		}
		pg := rt.ProgramGroup(b.nextHandle)
		b.nextHandle++
		b.groups[pg] = &groupState{desc: desc}
		groups[i] = pg
	}
	return groups, nil
}

// DestroyProgramGroup implements rt.API.
func (b *Backend) DestroyProgramGroup(pg rt.ProgramGroup) error {
	state, exists := b.groups[pg]
	if !exists || state.destroyed {
		return rt.NewError("DestroyProgramGroup", rt.ErrInvalidProgramGroup, "group %d", uint64(pg))
	}
	state.destroyed = true
	return nil
}

// GetStackSizes implements rt.API.
func (b *Backend) GetStackSizes(pg rt.ProgramGroup) (rt.StackSizes, error) {
	state, exists := b.groups[pg]
	if !exists || state.destroyed {
		return rt.StackSizes{}, rt.NewError("GetStackSizes", rt.ErrInvalidProgramGroup, "group %d", uint64(pg))
	}
	var sizes rt.StackSizes
	switch state.desc.Kind {
	case rt.KindRaygen:
		sizes.CssRG = 512
	case rt.KindException:
		sizes.CssRG = 64
	case rt.KindMiss:
		sizes.CssMS = 128
	case rt.KindHitGroup:
		sizes.CssCH = 256
		if state.desc.EntryPointAH != "" {
			sizes.CssAH = 96
		}
	case rt.KindCallable:
		sizes.DssDC = 160
	}
	return sizes, nil
}

// CreatePipeline implements rt.API.
func (b *Backend) CreatePipeline(groups []rt.ProgramGroup, opts rt.PipelineOptions) (rt.Pipeline, error) {
	if len(groups) == 0 {
		return 0, rt.NewError("CreatePipeline", rt.ErrInvalidValue, "no program groups")
	}
	for _, pg := range groups {
		state, exists := b.groups[pg]
		if !exists || state.destroyed {
			return 0, rt.NewError("CreatePipeline", rt.ErrInvalidProgramGroup, "group %d", uint64(pg))
		}
	}
	p := rt.Pipeline(b.nextHandle)
	b.nextHandle++
	b.pipelines[p] = &pipelineState{groups: append([]rt.ProgramGroup(nil), groups...), opts: opts}
	return p, nil
}

// SetStackSizes implements rt.API.
func (b *Backend) SetStackSizes(p rt.Pipeline, dcStackFromTraversal, dcStackFromState, continuationStack, maxTraversableGraphDepth uint32) error {
	state, exists := b.pipelines[p]
	if !exists || state.destroyed {
		return rt.NewError("SetStackSizes", rt.ErrInvalidPipeline, "pipeline %d", uint64(p))
	}
	state.dcStackFromTraversal = dcStackFromTraversal
	state.dcStackFromState = dcStackFromState
	state.continuationStack = continuationStack
	state.maxTraversableGraphDepth = maxTraversableGraphDepth
	return nil
}

// DestroyPipeline implements rt.API.
func (b *Backend) DestroyPipeline(p rt.Pipeline) error {
	state, exists := b.pipelines[p]
	if !exists || state.destroyed {
		return rt.NewError("DestroyPipeline", rt.ErrInvalidPipeline, "pipeline %d", uint64(p))
	}
	state.destroyed = true
	return nil
}

// PackSbtRecordHeader implements rt.API. The packed header is
// deterministic per program group so that record comparisons in tests
// behave the way real binding blobs do: identical for the same group,
// distinct across groups.
func (b *Backend) PackSbtRecordHeader(pg rt.ProgramGroup, header []byte) error {
	state, exists := b.groups[pg]
	if !exists || state.destroyed {
		return rt.NewError("PackSbtRecordHeader", rt.ErrInvalidProgramGroup, "group %d", uint64(pg))
	}
	if len(header) < rt.SbtRecordHeaderSize {
		return rt.NewError("PackSbtRecordHeader", rt.ErrInvalidValue, "header buffer of %d bytes", len(header))
	}
	h := fnv.New64a()
	h.Write([]byte(state.desc.EntryPoint))
	h.Write([]byte(state.desc.EntryPointCH))
	h.Write([]byte(state.desc.EntryPointAH))
	binary.LittleEndian.PutUint64(header[0:], uint64(pg))
	binary.LittleEndian.PutUint64(header[8:], h.Sum64())
	for i := 16; i < rt.SbtRecordHeaderSize; i++ {
		header[i] = 0
	}
	return nil
}

// Launch implements rt.API.
func (b *Backend) Launch(p rt.Pipeline, params rt.DevicePtr, paramsSize int, sbt *rt.ShaderBindingTable, width, height, depth int) error {
	state, exists := b.pipelines[p]
	if !exists || state.destroyed {
		return rt.NewError("Launch", rt.ErrInvalidPipeline, "pipeline %d", uint64(p))
	}
	alloc, err := b.lookup("Launch", params, paramsSize)
	if err != nil {
		return err
	}
	if sbt == nil || sbt.RaygenRecord == 0 {
		return rt.NewError("Launch", rt.ErrInvalidValue, "missing raygen record")
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return rt.NewError("Launch", rt.ErrInvalidValue, "launch dims %dx%dx%d", width, height, depth)
	}
	snapshot := make([]byte, paramsSize)
	copy(snapshot, alloc.data[:paramsSize])
	b.Launches = append(b.Launches, Launch{
		Pipeline: p,
		Params:   snapshot,
		SBT:      *sbt,
		Width:    width,
		Height:   height,
		Depth:    depth,
	})
	return nil
}

// CreateTexture implements rt.API.
func (b *Backend) CreateTexture(desc rt.TextureDesc) (rt.TextureObject, error) {
	texelSize := 4
	if desc.Format == rt.TextureRGBA32F {
		texelSize = 16
	}
	if desc.Width <= 0 || desc.Height <= 0 || len(desc.Data) < desc.Width*desc.Height*texelSize {
		return 0, rt.NewError("CreateTexture", rt.ErrInvalidValue, "%dx%d texture with %d data bytes", desc.Width, desc.Height, len(desc.Data))
	}
	b.textures = append(b.textures, desc)
	return rt.TextureObject(len(b.textures)), nil
}

// Close implements rt.API.
func (b *Backend) Close() error {
	if b.closed {
		return rt.NewError("Close", rt.ErrInvalidValue, "backend already closed")
	}
	b.closed = true
	return nil
}

// LiveAllocations returns the number of allocations not yet freed.
// Used by lifecycle tests to detect leaks during teardown.
func (b *Backend) LiveAllocations() int {
	live := 0
	for _, alloc := range b.allocations {
		if !alloc.free {
			live++
		}
	}
	return live
}

// Peek copies size bytes from an allocation without error handling;
// the test fails on any invalid access via panic.
func (b *Backend) Peek(ptr rt.DevicePtr, size int) []byte {
	alloc, exists := b.allocations[ptr]
	if !exists {
		panic("sim: peek into unknown allocation")
	}
	out := make([]byte, size)
	copy(out, alloc.data[:size])
	return out
}
