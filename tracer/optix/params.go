package optix

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/types"
)

// systemParameters is the host copy of the device launch parameter
// block. Restart re-uploads the whole block; steady-state accumulation
// touches only the iteration index and the output pointer fields.
type systemParameters struct {
	TopObject rt.TraversableHandle

	OutputBuffer     rt.DevicePtr
	LightDefinitions rt.DevicePtr
	MaterialParams   rt.DevicePtr

	EnvTexture  rt.TextureObject
	EnvCDFU     rt.DevicePtr
	EnvCDFV     rt.DevicePtr
	EnvWidth    uint32
	EnvHeight   uint32
	EnvIntegral float32
	EnvRotation float32

	PathLengthMin int32
	PathLengthMax int32

	IterationIndex uint32
	SceneEpsilon   float32
	NumLights      int32
	CameraType     int32

	CameraPosition types.Vec3
	CameraU        types.Vec3
	CameraV        types.Vec3
	CameraW        types.Vec3
}

// Packed field offsets of the device block. The iteration index and
// output buffer offsets support field-granular updates mid-
// accumulation.
const (
	offTopObject      = 0
	offOutputBuffer   = 8
	offLightDefs      = 16
	offMaterialParams = 24
	offEnvTexture     = 32
	offEnvCDFU        = 40
	offEnvCDFV        = 48
	offPathLengths    = 56
	offEnvWidth       = 64
	offEnvHeight      = 68
	offEnvIntegral    = 72
	offEnvRotation    = 76
	offIterationIndex = 80
	offSceneEpsilon   = 84
	offNumLights      = 88
	offCameraType     = 92
	offCameraPosition = 96
	offCameraU        = 108
	offCameraV        = 120
	offCameraW        = 132

	paramsSize = 144
)

func (p *systemParameters) encode() []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint64(buf[offTopObject:], uint64(p.TopObject))
	binary.LittleEndian.PutUint64(buf[offOutputBuffer:], uint64(p.OutputBuffer))
	binary.LittleEndian.PutUint64(buf[offLightDefs:], uint64(p.LightDefinitions))
	binary.LittleEndian.PutUint64(buf[offMaterialParams:], uint64(p.MaterialParams))
	binary.LittleEndian.PutUint64(buf[offEnvTexture:], uint64(p.EnvTexture))
	binary.LittleEndian.PutUint64(buf[offEnvCDFU:], uint64(p.EnvCDFU))
	binary.LittleEndian.PutUint64(buf[offEnvCDFV:], uint64(p.EnvCDFV))
	binary.LittleEndian.PutUint32(buf[offPathLengths:], uint32(p.PathLengthMin))
	binary.LittleEndian.PutUint32(buf[offPathLengths+4:], uint32(p.PathLengthMax))
	binary.LittleEndian.PutUint32(buf[offEnvWidth:], p.EnvWidth)
	binary.LittleEndian.PutUint32(buf[offEnvHeight:], p.EnvHeight)
	binary.LittleEndian.PutUint32(buf[offEnvIntegral:], math.Float32bits(p.EnvIntegral))
	binary.LittleEndian.PutUint32(buf[offEnvRotation:], math.Float32bits(p.EnvRotation))
	binary.LittleEndian.PutUint32(buf[offIterationIndex:], p.IterationIndex)
	binary.LittleEndian.PutUint32(buf[offSceneEpsilon:], math.Float32bits(p.SceneEpsilon))
	binary.LittleEndian.PutUint32(buf[offNumLights:], uint32(p.NumLights))
	binary.LittleEndian.PutUint32(buf[offCameraType:], uint32(p.CameraType))
	putVec3(buf[offCameraPosition:], p.CameraPosition)
	putVec3(buf[offCameraU:], p.CameraU)
	putVec3(buf[offCameraV:], p.CameraV)
	putVec3(buf[offCameraW:], p.CameraW)
	return buf
}

// paramsMirror owns the device-resident launch parameter block.
type paramsMirror struct {
	api    rt.API
	buffer rt.DevicePtr
}

func newParamsMirror(api rt.API) (*paramsMirror, error) {
	ptr, err := api.Malloc(paramsSize)
	if err != nil {
		return nil, fmt.Errorf("params: allocating mirror: %v", err)
	}
	return &paramsMirror{api: api, buffer: ptr}, nil
}

// UploadFull mirrors the whole host block to the device.
func (m *paramsMirror) UploadFull(p *systemParameters) error {
	if err := m.api.MemcpyHtoD(m.buffer, p.encode()); err != nil {
		return fmt.Errorf("params: uploading block: %v", err)
	}
	return nil
}

// WriteIterationIndex updates only the iteration index field.
func (m *paramsMirror) WriteIterationIndex(iteration uint32) error {
	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], iteration)
	if err := m.api.MemcpyHtoD(m.buffer+offIterationIndex, field[:]); err != nil {
		return fmt.Errorf("params: writing iteration index: %v", err)
	}
	return nil
}

// WriteOutputBuffer updates only the output buffer pointer field.
func (m *paramsMirror) WriteOutputBuffer(ptr rt.DevicePtr) error {
	var field [8]byte
	binary.LittleEndian.PutUint64(field[:], uint64(ptr))
	if err := m.api.MemcpyHtoD(m.buffer+offOutputBuffer, field[:]); err != nil {
		return fmt.Errorf("params: writing output buffer: %v", err)
	}
	return nil
}

// Buffer returns the device address of the block.
func (m *paramsMirror) Buffer() rt.DevicePtr {
	return m.buffer
}

// Release frees the device block.
func (m *paramsMirror) Release() {
	if m.buffer == 0 {
		return
	}
	if err := m.api.Free(m.buffer); err != nil {
		logger.Warningf("params: freeing mirror: %v", err)
	}
	m.buffer = 0
}
