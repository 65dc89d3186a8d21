// Package optix owns the lifecycle of the ray-tracing pipeline: device
// resources, acceleration structures, the program catalog, the shader
// binding table and the launch parameter mirror. It drives a rt.API
// backend and exposes the frame-level operations the render loop
// consumes.
package optix

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumenrt/lumen/log"
	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

var logger = log.New("optix")

const sceneEpsilonScale = 1e-7

// Options configures a Tracer.
type Options struct {
	// Accumulation buffer resolution.
	Width  int
	Height int

	// Environment light type and spherical map path (sphere type only).
	Environment    scene.EnvironmentType
	EnvironmentMap string

	// Include the parallelogram area light in the scene.
	AreaLight bool

	// The display owns the output buffer (GL interop); the tracer
	// allocates its own otherwise.
	Interop bool

	// Loader for the device-code module images.
	Loader ModuleLoader

	// Albedo / cutout texture paths; placeholders on load failure.
	AlbedoTexture string
	CutoutTexture string
}

// Tracer owns every device resource of the fixed demo scene and keeps
// the device mirrors consistent with the host state.
type Tracer struct {
	api  rt.API
	opts Options

	pipeline  *pipeline
	geometry  *geometryStore
	graph     *sceneGraph
	sbt       *shaderBindingTable
	materials *materialRegistry
	lights    *lightRegistry
	env       *environmentMap
	mirror    *paramsMirror

	params systemParameters

	// Accumulation buffer, owned unless running with interop.
	output rt.DevicePtr

	dirty bool
	valid bool
}

// NewTracer creates an unconfigured tracer; Setup builds all device
// state.
func NewTracer(api rt.API, opts Options) *Tracer {
	if opts.Loader == nil {
		opts.Loader = FileModuleLoader(".")
	}
	return &Tracer{api: api, opts: opts}
}

// Setup builds the pipeline, scene and every device mirror. It returns
// false after logging the failure; an invalid tracer must not be used.
func (t *Tracer) Setup() bool {
	if err := t.setup(); err != nil {
		logger.Errorf("setup failed: %v", err)
		return false
	}
	t.valid = true
	return true
}

// IsValid reports whether Setup completed.
func (t *Tracer) IsValid() bool {
	return t.valid
}

func (t *Tracer) setup() error {
	var err error

	if t.pipeline, err = newPipeline(t.api, t.opts.Loader, t.opts.Environment); err != nil {
		return err
	}
	headers, err := t.pipeline.packHeaders()
	if err != nil {
		return err
	}
	// Only the pipeline handle is needed beyond this point.
	t.pipeline.releaseBuildArtifacts()

	texAlbedo, err := createTexture(t.api, loadImage(t.opts.AlbedoTexture))
	if err != nil {
		return fmt.Errorf("albedo texture: %v", err)
	}
	texCutout, err := createTexture(t.api, loadImage(t.opts.CutoutTexture))
	if err != nil {
		return fmt.Errorf("cutout texture: %v", err)
	}

	t.materials = newMaterialRegistry(t.api, scene.DemoMaterials(), texAlbedo, texCutout)
	if err = t.materials.Upload(); err != nil {
		return err
	}

	if t.opts.Environment == scene.EnvironmentSphere {
		if t.env, err = newEnvironmentMap(t.api, t.opts.EnvironmentMap); err != nil {
			return fmt.Errorf("environment map: %v", err)
		}
	}

	t.geometry = newGeometryStore(t.api)
	t.graph = newSceneGraph(t.api, t.geometry)

	var areaLight *LightDefinition
	if t.opts.AreaLight {
		light := NewParallelogramLight(
			types.XYZ(-2, 4, -2),
			types.XYZ(4, 0, 0),
			types.XYZ(0, 0, 4),
			types.Splat3(10),
		)
		areaLight = &light
	}
	t.lights = newLightRegistry(t.api, buildLights(t.opts.Environment, areaLight))
	if err = t.lights.Upload(); err != nil {
		return err
	}

	if err = t.buildScene(areaLight); err != nil {
		return err
	}

	root, err := t.graph.Build()
	if err != nil {
		return err
	}

	t.sbt = newShaderBindingTable(t.api, headers)
	err = t.sbt.Build(t.graph, func(materialIndex int) bool {
		return t.materials.Material(materialIndex).UseCutoutTexture
	})
	if err != nil {
		return err
	}

	if !t.opts.Interop {
		if t.output, err = t.api.Malloc(t.opts.Width * t.opts.Height * 16); err != nil {
			return fmt.Errorf("allocating accumulation buffer: %v", err)
		}
	}

	if t.mirror, err = newParamsMirror(t.api); err != nil {
		return err
	}

	t.params = systemParameters{
		TopObject:        root,
		OutputBuffer:     t.output,
		LightDefinitions: t.lights.Buffer(),
		MaterialParams:   t.materials.Buffer(),
		PathLengthMin:    2,
		PathLengthMax:    10,
		SceneEpsilon:     500 * sceneEpsilonScale,
		NumLights:        int32(t.lights.Len()),
		CameraType:       int32(scene.ProjectionPinhole),
	}
	if t.env != nil {
		t.params.EnvTexture = t.env.texture
		t.params.EnvCDFU = t.env.cdfU
		t.params.EnvCDFV = t.env.cdfV
		t.params.EnvWidth = t.env.width
		t.params.EnvHeight = t.env.height
		t.params.EnvIntegral = t.env.integral
	}

	// First frame starts from a clean full upload.
	t.dirty = true
	return nil
}

// buildScene creates the fixed demo geometry and instances. Instance
// order fixes the SBT offsets and the material correlation.
func (t *Tracer) buildScene(areaLight *LightDefinition) error {
	add := func(mesh *scene.Mesh, transform types.Mat34, materialIndex, lightIndex int) error {
		_, geomIndex, err := t.geometry.CreateGeometry(mesh)
		if err != nil {
			return err
		}
		t.graph.AddInstance(instanceDef{
			transform:     transform,
			geometryIndex: geomIndex,
			materialIndex: materialIndex,
			lightIndex:    lightIndex,
		})
		return nil
	}

	if err := add(scene.NewPlane(1, 1, 1), types.Scale34(8), 0, -1); err != nil {
		return err
	}
	if err := add(scene.NewBox(), types.ScaleTranslate34(1.25, -2.5, 1.25, 0), 1, -1); err != nil {
		return err
	}
	if err := add(scene.NewSphere(180, 90, 1, math.Pi), types.ScaleTranslate34(1.25, 0, 1.25, 0), 2, -1); err != nil {
		return err
	}
	if err := add(scene.NewSphere(180, 90, 1, math.Pi), types.ScaleTranslate34(0.75, 0, 1.25, 0), 3, -1); err != nil {
		return err
	}
	if err := add(scene.NewTorus(180, 180, 0.75, 0.25), types.Translate34(2.5, 1.25, 0), 4, -1); err != nil {
		return err
	}

	if areaLight != nil {
		mesh := scene.NewParallelogram(areaLight.Position, areaLight.VecU, areaLight.VecV, areaLight.Normal)
		// The environment light, when present, occupies light slot 0.
		lightIndex := t.lights.Len() - 1
		if err := add(mesh, types.Ident34(), 5, lightIndex); err != nil {
			return err
		}
	}
	return nil
}

// SetCameraFrame installs a new camera frustum and schedules a
// restart.
func (t *Tracer) SetCameraFrame(pos, u, v, w types.Vec3) {
	t.params.CameraPosition = pos
	t.params.CameraU = u
	t.params.CameraV = v
	t.params.CameraW = w
	t.dirty = true
}

// SetCameraType switches the lens callable used by ray generation.
func (t *Tracer) SetCameraType(projection scene.ProjectionType) {
	t.params.CameraType = int32(projection)
	t.dirty = true
}

// SetPathLengths updates the minimum and maximum path lengths.
func (t *Tracer) SetPathLengths(min, max int32) {
	t.params.PathLengthMin = min
	t.params.PathLengthMax = max
	t.dirty = true
}

// SetSceneEpsilonFactor scales the self-intersection epsilon.
func (t *Tracer) SetSceneEpsilonFactor(factor float32) {
	t.params.SceneEpsilon = factor * sceneEpsilonScale
	t.dirty = true
}

// SetEnvironmentRotation rotates the environment map around the up
// axis; rotation is in normalized turns.
func (t *Tracer) SetEnvironmentRotation(rotation float32) {
	t.params.EnvRotation = rotation
	t.dirty = true
}

// SetLightEmission updates one light's emission and re-uploads the
// light mirror.
func (t *Tracer) SetLightEmission(index int, emission types.Vec3) error {
	t.lights.Light(index).Emission = emission
	if err := t.lights.Update(); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

// SetMaterial replaces the editable fields of one material and
// re-uploads the material mirror. A cutout flag change also swaps the
// instance hit record headers.
func (t *Tracer) SetMaterial(index int, mat scene.Material) error {
	prev := t.materials.Material(index)
	cutoutChanged := prev.UseCutoutTexture != mat.UseCutoutTexture
	mat.Name = prev.Name
	*prev = mat

	if err := t.materials.Update(); err != nil {
		return err
	}
	if cutoutChanged {
		if err := t.updateHitGroups(index); err != nil {
			return err
		}
	}
	t.dirty = true
	return nil
}

// ToggleCutout flips the cutout texture flag of one material, swapping
// the hit header pair of every instance bound to it.
func (t *Tracer) ToggleCutout(index int) error {
	mat := t.materials.Material(index)
	mat.UseCutoutTexture = !mat.UseCutoutTexture
	if err := t.materials.Update(); err != nil {
		return err
	}
	if err := t.updateHitGroups(index); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

func (t *Tracer) updateHitGroups(materialIndex int) error {
	cutout := t.materials.Material(materialIndex).UseCutoutTexture
	for id := 0; id < t.graph.NumInstances(); id++ {
		if t.graph.Instance(id).materialIndex != materialIndex {
			continue
		}
		if err := t.sbt.UpdateHitGroup(id, cutout); err != nil {
			return err
		}
	}
	return nil
}

// RestartPending reports whether an output-affecting parameter changed
// since the last Restart.
func (t *Tracer) RestartPending() bool {
	return t.dirty
}

// Restart synchronizes the stream, resets the iteration index and
// re-uploads the full parameter block. The accumulated image restarts
// from iteration zero.
func (t *Tracer) Restart() error {
	if err := t.api.StreamSynchronize(); err != nil {
		return fmt.Errorf("tracer: synchronizing before restart: %v", err)
	}
	t.params.IterationIndex = 0
	if err := t.mirror.UploadFull(&t.params); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// WriteIterationIndex advances the device iteration counter without
// touching the rest of the parameter block.
func (t *Tracer) WriteIterationIndex(iteration uint32) error {
	t.params.IterationIndex = iteration
	return t.mirror.WriteIterationIndex(iteration)
}

// SetOutputBuffer points the device at a new output buffer (interop
// map/unmap); only the pointer field is updated.
func (t *Tracer) SetOutputBuffer(ptr rt.DevicePtr) error {
	t.params.OutputBuffer = ptr
	return t.mirror.WriteOutputBuffer(ptr)
}

// Launch dispatches one accumulation iteration over the full
// resolution.
func (t *Tracer) Launch() error {
	err := t.api.Launch(t.pipeline.handle, t.mirror.Buffer(), paramsSize, t.sbt.Table(), t.opts.Width, t.opts.Height, 1)
	if err != nil {
		return fmt.Errorf("tracer: launch: %v", err)
	}
	return nil
}

// ReadOutput synchronizes the stream and copies the accumulation
// buffer back as packed RGBA float32 texels.
func (t *Tracer) ReadOutput() ([]float32, error) {
	if t.params.OutputBuffer == 0 {
		return nil, fmt.Errorf("tracer: no output buffer")
	}
	if err := t.api.StreamSynchronize(); err != nil {
		return nil, fmt.Errorf("tracer: synchronizing before readback: %v", err)
	}
	raw := make([]byte, t.opts.Width*t.opts.Height*16)
	if err := t.api.MemcpyDtoH(raw, t.params.OutputBuffer); err != nil {
		return nil, fmt.Errorf("tracer: reading output: %v", err)
	}
	pix := make([]float32, len(raw)/4)
	for i := range pix {
		pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return pix, nil
}

// Width returns the output width in pixels.
func (t *Tracer) Width() int { return t.opts.Width }

// Height returns the output height in pixels.
func (t *Tracer) Height() int { return t.opts.Height }

// Close releases every device resource in reverse build order and
// closes the backend context.
func (t *Tracer) Close() error {
	if err := t.api.StreamSynchronize(); err != nil {
		logger.Warningf("close: synchronizing: %v", err)
	}

	if t.mirror != nil {
		t.mirror.Release()
	}
	if t.output != 0 {
		if err := t.api.Free(t.output); err != nil {
			logger.Warningf("close: freeing accumulation buffer: %v", err)
		}
		t.output = 0
	}
	if t.sbt != nil {
		t.sbt.Release()
	}
	if t.graph != nil {
		t.graph.Release()
	}
	if t.geometry != nil {
		t.geometry.Release()
	}
	if t.env != nil {
		t.env.Release(t.api)
	}
	if t.lights != nil {
		t.lights.Release()
	}
	if t.materials != nil {
		t.materials.Release()
	}
	if t.pipeline != nil {
		t.pipeline.Release()
	}
	t.valid = false
	return t.api.Close()
}
