package optix

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

// geometryRecord retains everything the SBT payload and the
// instance list need from one built BLAS: the traversable handle, the
// accel output buffer and the attribute/index buffers the device
// shaders read back through the hit records.
type geometryRecord struct {
	attributes    rt.DevicePtr
	indices       rt.DevicePtr
	numAttributes int
	numIndices    int

	gas    rt.DevicePtr
	handle rt.TraversableHandle
}

// geometryStore uploads meshes and builds one bottom-level
// acceleration structure per mesh. Records live until Release; hit
// records reference their buffers by device address.
type geometryStore struct {
	api     rt.API
	records []geometryRecord
}

func newGeometryStore(api rt.API) *geometryStore {
	return &geometryStore{api: api}
}

// CreateGeometry uploads a mesh, builds its acceleration structure and
// returns the traversable handle plus the store index of the retained
// record. Scratch memory is freed after a stream sync; the attribute,
// index and accel buffers are retained.
func (s *geometryStore) CreateGeometry(mesh *scene.Mesh) (rt.TraversableHandle, int, error) {
	if len(mesh.Attributes) == 0 || len(mesh.Indices) == 0 {
		return 0, 0, fmt.Errorf("geometry: empty mesh")
	}

	rec := geometryRecord{
		numAttributes: len(mesh.Attributes),
		numIndices:    len(mesh.Indices),
	}

	attrData := encodeAttributes(mesh.Attributes)
	attrPtr, err := s.uploadBuffer(attrData)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: uploading attributes: %v", err)
	}
	rec.attributes = attrPtr

	idxData := make([]byte, len(mesh.Indices)*4)
	for i, idx := range mesh.Indices {
		binary.LittleEndian.PutUint32(idxData[i*4:], idx)
	}
	idxPtr, err := s.uploadBuffer(idxData)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: uploading indices: %v", err)
	}
	rec.indices = idxPtr

	input := rt.TriangleInput{
		Attributes:      attrPtr,
		AttributeStride: scene.VertexAttributeSize,
		NumAttributes:   rec.numAttributes,
		Indices:         idxPtr,
		NumTriplets:     rec.numIndices / 3,
	}

	sizes, err := s.api.ComputeAccelMemoryUsage(input)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: computing accel memory usage: %v", err)
	}

	gasPtr, err := s.api.Malloc(sizes.OutputSizeInBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: allocating accel output: %v", err)
	}
	rec.gas = gasPtr

	scratch, err := s.api.Malloc(sizes.TempSizeInBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: allocating accel scratch: %v", err)
	}

	handle, err := s.api.BuildAccel(input, scratch, sizes.TempSizeInBytes, gasPtr, sizes.OutputSizeInBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry: building accel: %v", err)
	}
	rec.handle = handle

	// The build is async; the scratch buffer must outlive it.
	if err = s.api.StreamSynchronize(); err != nil {
		return 0, 0, fmt.Errorf("geometry: synchronizing after build: %v", err)
	}
	if err = s.api.Free(scratch); err != nil {
		return 0, 0, fmt.Errorf("geometry: freeing accel scratch: %v", err)
	}

	index := len(s.records)
	s.records = append(s.records, rec)

	logger.Debugf("geometry: built accel %d: %d attributes, %d triangles", index, rec.numAttributes, rec.numIndices/3)
	return handle, index, nil
}

// Record returns the retained record at index.
func (s *geometryStore) Record(index int) geometryRecord {
	return s.records[index]
}

// Release frees every retained device buffer.
func (s *geometryStore) Release() {
	for i, rec := range s.records {
		for _, ptr := range []rt.DevicePtr{rec.gas, rec.indices, rec.attributes} {
			if err := s.api.Free(ptr); err != nil {
				logger.Warningf("geometry: freeing buffers of record %d: %v", i, err)
			}
		}
	}
	s.records = nil
}

func (s *geometryStore) uploadBuffer(data []byte) (rt.DevicePtr, error) {
	ptr, err := s.api.Malloc(len(data))
	if err != nil {
		return 0, err
	}
	if err = s.api.MemcpyHtoD(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// encodeAttributes packs vertex attributes into the interleaved device
// layout of four float3 fields.
func encodeAttributes(attributes []scene.VertexAttribute) []byte {
	buf := make([]byte, len(attributes)*scene.VertexAttributeSize)
	o := 0
	putVec3 := func(v [3]float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[o:], math.Float32bits(f))
			o += 4
		}
	}
	for _, attr := range attributes {
		putVec3(attr.Position)
		putVec3(attr.Tangent)
		putVec3(attr.Normal)
		putVec3(attr.TexCoord)
	}
	return buf
}
