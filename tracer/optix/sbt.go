package optix

import (
	"encoding/binary"
	"fmt"

	"github.com/lumenrt/lumen/rt"
)

// Hit record layout: the 32-byte packed header followed by the
// geometry/material payload, padded to the 16-byte record alignment.
const (
	hitPayloadSize  = 24 // attributes u64, indices u64, materialIndex i32, lightIndex i32
	hitRecordSize   = (rt.SbtRecordHeaderSize + hitPayloadSize + rt.SbtRecordAlignment - 1) &^ (rt.SbtRecordAlignment - 1)
	plainRecordSize = rt.SbtRecordHeaderSize
)

// shaderBindingTable owns every SBT record region: single raygen,
// exception and miss records, one hit record pair per instance and the
// flat callable array. The hit record array supports in-place header
// swaps at runtime; it never grows or shrinks after Build.
type shaderBindingTable struct {
	api rt.API

	// Packed headers indexed by programID, captured before the program
	// groups are destroyed.
	headers [][]byte

	raygen    rt.DevicePtr
	exception rt.DevicePtr
	miss      rt.DevicePtr
	callables rt.DevicePtr

	// Host copy of the hit record array; mirrors hitRecords on device.
	hostHit    []byte
	hitRecords rt.DevicePtr

	table rt.ShaderBindingTable
}

func newShaderBindingTable(api rt.API, headers [][]byte) *shaderBindingTable {
	return &shaderBindingTable{api: api, headers: headers}
}

// hitHeaderPair returns the {radiance, shadow} header programs for an
// instance, depending on whether its material uses a cutout texture.
func hitHeaderPair(cutout bool) [numRayTypes]programID {
	if cutout {
		return [numRayTypes]programID{programHitRadianceCutout, programHitShadowCutout}
	}
	return [numRayTypes]programID{programHitRadiance, programHitShadow}
}

// writeHitRecord fills record slot i of the host array with the header
// of prog and the payload of the instance's geometry and bindings.
func (t *shaderBindingTable) writeHitRecord(slot int, prog programID, rec geometryRecord, materialIndex, lightIndex int) {
	o := slot * hitRecordSize
	copy(t.hostHit[o:], t.headers[prog])
	p := o + rt.SbtRecordHeaderSize
	binary.LittleEndian.PutUint64(t.hostHit[p:], uint64(rec.attributes))
	binary.LittleEndian.PutUint64(t.hostHit[p+8:], uint64(rec.indices))
	binary.LittleEndian.PutUint32(t.hostHit[p+16:], uint32(int32(materialIndex)))
	binary.LittleEndian.PutUint32(t.hostHit[p+20:], uint32(int32(lightIndex)))
}

// Build assembles and uploads every record region for the scene graph.
// cutout reports whether the material bound to an instance carries a
// cutout opacity texture.
func (t *shaderBindingTable) Build(graph *sceneGraph, cutout func(materialIndex int) bool) error {
	var err error

	uploadSingle := func(name string, prog programID) (rt.DevicePtr, error) {
		ptr, err := t.api.Malloc(plainRecordSize)
		if err != nil {
			return 0, fmt.Errorf("sbt: allocating %s record: %v", name, err)
		}
		if err = t.api.MemcpyHtoD(ptr, t.headers[prog]); err != nil {
			return 0, fmt.Errorf("sbt: uploading %s record: %v", name, err)
		}
		return ptr, nil
	}

	if t.raygen, err = uploadSingle("raygen", programRaygen); err != nil {
		return err
	}
	if t.exception, err = uploadSingle("exception", programException); err != nil {
		return err
	}

	// Miss records: radiance then shadow, header-only.
	missData := make([]byte, numRayTypes*plainRecordSize)
	copy(missData[0:], t.headers[programMissRadiance])
	copy(missData[plainRecordSize:], t.headers[programMissShadow])
	if t.miss, err = t.uploadRegion("miss", missData); err != nil {
		return err
	}

	// Hit records: one {radiance, shadow} pair per instance at offset
	// instanceID * numRayTypes.
	numInstances := graph.NumInstances()
	t.hostHit = make([]byte, numInstances*numRayTypes*hitRecordSize)
	for id := 0; id < numInstances; id++ {
		def := graph.Instance(id)
		rec := graph.geometry.Record(def.geometryIndex)
		pair := hitHeaderPair(cutout(def.materialIndex))
		for rayType, prog := range pair {
			t.writeHitRecord(id*numRayTypes+rayType, prog, rec, def.materialIndex, def.lightIndex)
		}
	}
	if t.hitRecords, err = t.uploadRegion("hit group", t.hostHit); err != nil {
		return err
	}

	// Callable records: flat array indexed by programID minus the
	// first callable ID, header-only, populated once.
	callableData := make([]byte, int(numCallables)*plainRecordSize)
	for i := 0; i < int(numCallables); i++ {
		copy(callableData[i*plainRecordSize:], t.headers[firstCallableID+programID(i)])
	}
	if t.callables, err = t.uploadRegion("callables", callableData); err != nil {
		return err
	}

	t.table = rt.ShaderBindingTable{
		RaygenRecord:    t.raygen,
		ExceptionRecord: t.exception,

		MissRecordBase:   t.miss,
		MissRecordStride: plainRecordSize,
		MissRecordCount:  numRayTypes,

		HitGroupRecordBase:   t.hitRecords,
		HitGroupRecordStride: hitRecordSize,
		HitGroupRecordCount:  numInstances * numRayTypes,

		CallablesRecordBase:   t.callables,
		CallablesRecordStride: plainRecordSize,
		CallablesRecordCount:  int(numCallables),
	}
	return nil
}

// Table returns the assembled record regions for launches.
func (t *shaderBindingTable) Table() *rt.ShaderBindingTable {
	return &t.table
}

// UpdateHitGroup re-selects the header pair of instance id in place
// after a stream sync; only the id's own record pair is re-uploaded
// and payloads are left untouched.
func (t *shaderBindingTable) UpdateHitGroup(id int, cutout bool) error {
	base := id * numRayTypes * hitRecordSize
	if base < 0 || base+numRayTypes*hitRecordSize > len(t.hostHit) {
		return fmt.Errorf("sbt: hit group update for invalid instance %d", id)
	}

	pair := hitHeaderPair(cutout)
	for rayType, prog := range pair {
		copy(t.hostHit[base+rayType*hitRecordSize:], t.headers[prog])
	}

	// Outstanding launches may still read the records.
	if err := t.api.StreamSynchronize(); err != nil {
		return fmt.Errorf("sbt: synchronizing before hit group update: %v", err)
	}
	err := t.api.MemcpyHtoD(t.hitRecords+rt.DevicePtr(base), t.hostHit[base:base+numRayTypes*hitRecordSize])
	if err != nil {
		return fmt.Errorf("sbt: uploading hit group update: %v", err)
	}
	return nil
}

// Release frees every record region.
func (t *shaderBindingTable) Release() {
	for _, ptr := range []rt.DevicePtr{t.callables, t.hitRecords, t.miss, t.exception, t.raygen} {
		if ptr == 0 {
			continue
		}
		if err := t.api.Free(ptr); err != nil {
			logger.Warningf("sbt: freeing record region: %v", err)
		}
	}
	t.callables, t.hitRecords, t.miss, t.exception, t.raygen = 0, 0, 0, 0, 0
}

func (t *shaderBindingTable) uploadRegion(name string, data []byte) (rt.DevicePtr, error) {
	ptr, err := t.api.Malloc(len(data))
	if err != nil {
		return 0, fmt.Errorf("sbt: allocating %s records: %v", name, err)
	}
	if err = t.api.MemcpyHtoD(ptr, data); err != nil {
		return 0, fmt.Errorf("sbt: uploading %s records: %v", name, err)
	}
	return ptr, nil
}
