package optix

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/types"
)

// DefaultMax is the device sentinel for an effectively infinite
// absorption coefficient.
const DefaultMax float32 = 1e27

// Flag bits of the device material parameter block.
const materialFlagThinWalled uint32 = 1 << 0

// materialRecordSize is the packed per-material device block:
// indexBSDF i32, albedo float3, albedo/cutout texture handles u64,
// flags u32, absorption float3, ior f32, padded to 64 bytes.
const materialRecordSize = 64

// materialRegistry mirrors the host material array into device memory.
// The host array is the source of truth; any edit re-uploads the whole
// mirror after a stream sync.
type materialRegistry struct {
	api       rt.API
	materials []scene.Material

	texAlbedo rt.TextureObject
	texCutout rt.TextureObject

	buffer rt.DevicePtr
}

func newMaterialRegistry(api rt.API, materials []scene.Material, texAlbedo, texCutout rt.TextureObject) *materialRegistry {
	return &materialRegistry{
		api:       api,
		materials: materials,
		texAlbedo: texAlbedo,
		texCutout: texCutout,
	}
}

// deriveAbsorption converts a transmission color at one scaled
// distance unit into a per-channel absorption coefficient. Channels at
// or below zero absorb completely and clamp to the device sentinel.
func deriveAbsorption(color types.Vec3, distanceScale float32) types.Vec3 {
	var sigma types.Vec3
	for i, c := range color {
		if c <= 0 {
			sigma[i] = DefaultMax
			continue
		}
		sigma[i] = float32(-math.Log(float64(c))) * distanceScale
	}
	return sigma
}

func (r *materialRegistry) encode() []byte {
	buf := make([]byte, len(r.materials)*materialRecordSize)
	for i, mat := range r.materials {
		o := i * materialRecordSize
		binary.LittleEndian.PutUint32(buf[o:], uint32(mat.IndexBSDF))
		putVec3(buf[o+4:], mat.Albedo)

		if mat.UseAlbedoTexture {
			binary.LittleEndian.PutUint64(buf[o+16:], uint64(r.texAlbedo))
		}
		if mat.UseCutoutTexture {
			binary.LittleEndian.PutUint64(buf[o+24:], uint64(r.texCutout))
		}

		var flags uint32
		if mat.ThinWalled {
			flags |= materialFlagThinWalled
		}
		binary.LittleEndian.PutUint32(buf[o+32:], flags)

		putVec3(buf[o+36:], deriveAbsorption(mat.AbsorptionColor, mat.VolumeDistanceScale))
		binary.LittleEndian.PutUint32(buf[o+48:], math.Float32bits(mat.IOR))
	}
	return buf
}

// Upload allocates the device mirror and uploads the initial state.
func (r *materialRegistry) Upload() error {
	if len(r.materials) == 0 {
		return fmt.Errorf("materials: empty registry")
	}
	data := r.encode()
	ptr, err := r.api.Malloc(len(data))
	if err != nil {
		return fmt.Errorf("materials: allocating mirror: %v", err)
	}
	if err = r.api.MemcpyHtoD(ptr, data); err != nil {
		return fmt.Errorf("materials: uploading mirror: %v", err)
	}
	r.buffer = ptr
	return nil
}

// Update re-uploads the whole mirror after a stream sync. Derived
// absorption and texture handle resolution happen on every upload.
func (r *materialRegistry) Update() error {
	if err := r.api.StreamSynchronize(); err != nil {
		return fmt.Errorf("materials: synchronizing before update: %v", err)
	}
	if err := r.api.MemcpyHtoD(r.buffer, r.encode()); err != nil {
		return fmt.Errorf("materials: uploading update: %v", err)
	}
	return nil
}

// Buffer returns the device address of the mirror.
func (r *materialRegistry) Buffer() rt.DevicePtr {
	return r.buffer
}

// Material returns a pointer to the host material at index for edits;
// callers must follow any edit with Update.
func (r *materialRegistry) Material(index int) *scene.Material {
	return &r.materials[index]
}

// Len returns the number of registered materials.
func (r *materialRegistry) Len() int {
	return len(r.materials)
}

// Release frees the device mirror.
func (r *materialRegistry) Release() {
	if r.buffer == 0 {
		return
	}
	if err := r.api.Free(r.buffer); err != nil {
		logger.Warningf("materials: freeing mirror: %v", err)
	}
	r.buffer = 0
}

func putVec3(buf []byte, v types.Vec3) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}
