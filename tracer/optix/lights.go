package optix

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

// LightType enumerates the device light implementations.
type LightType int32

const (
	LightEnvironmentConstant LightType = iota
	LightEnvironmentSphere
	LightParallelogram
)

// LightDefinition is the host description of one light. The device
// block carries the sampling geometry for area lights and the emission
// for all types.
type LightDefinition struct {
	Type LightType

	Position types.Vec3
	VecU     types.Vec3
	VecV     types.Vec3
	Normal   types.Vec3
	Area     float32

	Emission types.Vec3
}

// lightRecordSize is the packed device block per light: type i32,
// position/u/v/normal float3 each, area f32, emission float3, padded
// to 80 bytes.
const lightRecordSize = 80

// NewParallelogramLight derives the sampling fields of an area light
// from its anchor point and edge vectors.
func NewParallelogramLight(position, vecU, vecV, emission types.Vec3) LightDefinition {
	cross := vecU.Cross(vecV)
	area := cross.Len()
	normal := types.XYZ(0, -1, 0)
	if area > 0 {
		normal = cross.Mul(1 / area)
	}
	return LightDefinition{
		Type:     LightParallelogram,
		Position: position,
		VecU:     vecU,
		VecV:     vecV,
		Normal:   normal,
		Area:     area,
		Emission: emission,
	}
}

// lightRegistry mirrors the light list into device memory. The
// environment light, when present, always occupies index 0; area
// lights follow in append order.
type lightRegistry struct {
	api    rt.API
	lights []LightDefinition
	buffer rt.DevicePtr
}

// buildLights assembles the light list for an environment type and an
// optional parallelogram area light.
func buildLights(env scene.EnvironmentType, areaLight *LightDefinition) []LightDefinition {
	var lights []LightDefinition
	switch env {
	case scene.EnvironmentConstant:
		lights = append(lights, LightDefinition{
			Type:     LightEnvironmentConstant,
			Emission: types.Splat3(1),
		})
	case scene.EnvironmentSphere:
		lights = append(lights, LightDefinition{
			Type:     LightEnvironmentSphere,
			Emission: types.Splat3(1),
		})
	}
	if areaLight != nil {
		lights = append(lights, *areaLight)
	}
	return lights
}

func newLightRegistry(api rt.API, lights []LightDefinition) *lightRegistry {
	return &lightRegistry{api: api, lights: lights}
}

func (r *lightRegistry) encode() []byte {
	buf := make([]byte, len(r.lights)*lightRecordSize)
	for i, light := range r.lights {
		o := i * lightRecordSize
		binary.LittleEndian.PutUint32(buf[o:], uint32(light.Type))
		putVec3(buf[o+4:], light.Position)
		putVec3(buf[o+16:], light.VecU)
		putVec3(buf[o+28:], light.VecV)
		putVec3(buf[o+40:], light.Normal)
		binary.LittleEndian.PutUint32(buf[o+52:], math.Float32bits(light.Area))
		putVec3(buf[o+56:], light.Emission)
	}
	return buf
}

// Upload allocates and fills the device mirror. A scene without lights
// keeps a nil buffer and a zero count.
func (r *lightRegistry) Upload() error {
	if len(r.lights) == 0 {
		return nil
	}
	data := r.encode()
	ptr, err := r.api.Malloc(len(data))
	if err != nil {
		return fmt.Errorf("lights: allocating mirror: %v", err)
	}
	if err = r.api.MemcpyHtoD(ptr, data); err != nil {
		return fmt.Errorf("lights: uploading mirror: %v", err)
	}
	r.buffer = ptr
	return nil
}

// Update re-uploads the whole mirror after a stream sync.
func (r *lightRegistry) Update() error {
	if r.buffer == 0 {
		return nil
	}
	if err := r.api.StreamSynchronize(); err != nil {
		return fmt.Errorf("lights: synchronizing before update: %v", err)
	}
	if err := r.api.MemcpyHtoD(r.buffer, r.encode()); err != nil {
		return fmt.Errorf("lights: uploading update: %v", err)
	}
	return nil
}

// Light returns a pointer to the host light at index for edits;
// callers must follow any edit with Update.
func (r *lightRegistry) Light(index int) *LightDefinition {
	return &r.lights[index]
}

// Buffer returns the device address of the mirror, 0 when no lights
// exist.
func (r *lightRegistry) Buffer() rt.DevicePtr {
	return r.buffer
}

// Len returns the number of lights.
func (r *lightRegistry) Len() int {
	return len(r.lights)
}

// Release frees the device mirror.
func (r *lightRegistry) Release() {
	if r.buffer == 0 {
		return
	}
	if err := r.api.Free(r.buffer); err != nil {
		logger.Warningf("lights: freeing mirror: %v", err)
	}
	r.buffer = 0
}
