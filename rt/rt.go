// Package rt defines the contract between the renderer core and a GPU
// ray-tracing backend: device memory and stream operations,
// acceleration-structure builds, module/program-group/pipeline
// management, shader-binding-table record packing and launches.
//
// Every call either succeeds or returns an error carrying a named
// result code; the core treats all of them as fatal.
package rt

// DevicePtr is an address in device memory.
type DevicePtr uint64

// TraversableHandle references a built acceleration structure.
type TraversableHandle uint64

// Opaque backend object handles.
type (
	Module        uint64
	ProgramGroup  uint64
	Pipeline      uint64
	TextureObject uint64
)

// Shader binding table layout requirements.
const (
	// Size of the opaque program-group binding blob at the start of
	// every SBT record.
	SbtRecordHeaderSize = 32

	// Records (header plus payload) must be padded to this alignment.
	SbtRecordAlignment = 16
)

// ProgramGroupKind selects which entry-point slots of a
// ProgramGroupDesc are meaningful.
type ProgramGroupKind uint8

const (
	KindRaygen ProgramGroupKind = iota
	KindException
	KindMiss
	KindHitGroup
	KindCallable
)

// ProgramGroupDesc describes one program group to create. For raygen,
// exception, miss and callable kinds only Module/EntryPoint are used;
// hit groups bind closest-hit and any-hit entries independently. A
// miss group may leave both module and entry point empty (no-op miss).
type ProgramGroupDesc struct {
	Kind       ProgramGroupKind
	Module     Module
	EntryPoint string

	// Hit group slots.
	ModuleCH     Module
	EntryPointCH string
	ModuleAH     Module
	EntryPointAH string
}

// StackSizes reports the per-category stack requirements of one
// program group.
type StackSizes struct {
	CssRG uint32 // raygen continuation stack
	CssMS uint32 // miss continuation stack
	CssCH uint32 // closest-hit continuation stack
	CssAH uint32 // any-hit continuation stack
	CssIS uint32 // intersection continuation stack
	CssCC uint32 // continuation-callable stack
	DssDC uint32 // direct-callable stack
}

// Max merges another program group's requirements into the receiver,
// keeping the per-category maximum.
func (s *StackSizes) Max(o StackSizes) {
	if o.CssRG > s.CssRG {
		s.CssRG = o.CssRG
	}
	if o.CssMS > s.CssMS {
		s.CssMS = o.CssMS
	}
	if o.CssCH > s.CssCH {
		s.CssCH = o.CssCH
	}
	if o.CssAH > s.CssAH {
		s.CssAH = o.CssAH
	}
	if o.CssIS > s.CssIS {
		s.CssIS = o.CssIS
	}
	if o.CssCC > s.CssCC {
		s.CssCC = o.CssCC
	}
	if o.DssDC > s.DssDC {
		s.DssDC = o.DssDC
	}
}

// AccelBufferSizes is the memory requirement estimate for one
// acceleration-structure build.
type AccelBufferSizes struct {
	OutputSizeInBytes int
	TempSizeInBytes   int
}

// AccelBuildInput is either a TriangleInput (bottom level) or an
// InstanceInput (top level).
type AccelBuildInput interface {
	accelBuildInput()
}

// TriangleInput describes indexed triangle geometry already resident
// in device memory.
type TriangleInput struct {
	Attributes      DevicePtr
	AttributeStride int
	NumAttributes   int
	Indices         DevicePtr
	NumTriplets     int
}

func (TriangleInput) accelBuildInput() {}

// InstanceInput describes an uploaded array of encoded Instances.
type InstanceInput struct {
	Instances    DevicePtr
	NumInstances int
}

func (InstanceInput) accelBuildInput() {}

// PipelineOptions is the fixed compile/link configuration of the one
// pipeline this application builds.
type PipelineOptions struct {
	NumPayloadValues   int
	NumAttributeValues int
	MaxTraceDepth      int
	LaunchParamsName   string
}

// ShaderBindingTable describes the assembled record regions used by a
// launch. Strides and record counts are in bytes and records
// respectively; all base pointers are device addresses.
type ShaderBindingTable struct {
	RaygenRecord    DevicePtr
	ExceptionRecord DevicePtr

	MissRecordBase   DevicePtr
	MissRecordStride int
	MissRecordCount  int

	HitGroupRecordBase   DevicePtr
	HitGroupRecordStride int
	HitGroupRecordCount  int

	CallablesRecordBase   DevicePtr
	CallablesRecordStride int
	CallablesRecordCount  int
}

// TextureFormat enumerates the texel layouts the backend accepts.
type TextureFormat uint8

const (
	TextureRGBA8 TextureFormat = iota
	TextureRGBA32F
)

// TextureDesc describes a 2D texture upload.
type TextureDesc struct {
	Width  int
	Height int
	Format TextureFormat
	Data   []byte
}

// API is the GPU ray-tracing backend consumed by the core. All
// operations are asynchronous relative to the submitting call but
// ordered within the backend's single stream; StreamSynchronize blocks
// until all queued work has drained.
type API interface {
	// Device memory and stream operations.
	Malloc(size int) (DevicePtr, error)
	Free(ptr DevicePtr) error
	MemcpyHtoD(dst DevicePtr, src []byte) error
	MemcpyDtoH(dst []byte, src DevicePtr) error
	StreamSynchronize() error

	// Acceleration structures.
	ComputeAccelMemoryUsage(input AccelBuildInput) (AccelBufferSizes, error)
	BuildAccel(input AccelBuildInput, temp DevicePtr, tempSize int, output DevicePtr, outputSize int) (TraversableHandle, error)

	// Modules, program groups, pipeline.
	CreateModule(code []byte) (Module, error)
	DestroyModule(m Module) error
	CreateProgramGroups(descs []ProgramGroupDesc) ([]ProgramGroup, error)
	DestroyProgramGroup(pg ProgramGroup) error
	GetStackSizes(pg ProgramGroup) (StackSizes, error)
	CreatePipeline(groups []ProgramGroup, opts PipelineOptions) (Pipeline, error)
	SetStackSizes(p Pipeline, dcStackFromTraversal, dcStackFromState, continuationStack, maxTraversableGraphDepth uint32) error
	DestroyPipeline(p Pipeline) error

	// Shader binding table and launch.
	PackSbtRecordHeader(pg ProgramGroup, header []byte) error
	Launch(p Pipeline, params DevicePtr, paramsSize int, sbt *ShaderBindingTable, width, height, depth int) error

	// Textures.
	CreateTexture(desc TextureDesc) (TextureObject, error)

	// Name identifies the backend implementation.
	Name() string

	// Close releases the context. Must be called after all dependent
	// resources have been freed.
	Close() error
}
