package rt

import (
	"encoding/binary"
	"math"

	"github.com/lumenrt/lumen/types"
)

// Instance flag bits.
const (
	InstanceFlagNone           uint32 = 0
	InstanceFlagDisableAnyhit  uint32 = 1 << 0
	InstanceFlagFlipTriFacing  uint32 = 1 << 1
	InstanceFlagDisableFaceCul uint32 = 1 << 2
)

// InstanceByteSize is the encoded size of one Instance.
const InstanceByteSize = 80

// Instance places one bottom-level acceleration structure into the
// top-level structure.
type Instance struct {
	Transform      types.Mat34
	InstanceID     uint32
	SbtOffset      uint32
	VisibilityMask uint32
	Flags          uint32
	Traversable    TraversableHandle
}

// EncodeInstances packs instances into the device layout expected by
// the top-level build: a 48-byte row-major 3x4 transform, four 24-bit
// restricted uint32 fields and the 8-byte traversable handle.
func EncodeInstances(instances []Instance) []byte {
	buf := make([]byte, len(instances)*InstanceByteSize)
	for i, inst := range instances {
		o := i * InstanceByteSize
		for j, v := range inst.Transform {
			binary.LittleEndian.PutUint32(buf[o+j*4:], math.Float32bits(v))
		}
		binary.LittleEndian.PutUint32(buf[o+48:], inst.InstanceID)
		binary.LittleEndian.PutUint32(buf[o+52:], inst.SbtOffset)
		binary.LittleEndian.PutUint32(buf[o+56:], inst.VisibilityMask)
		binary.LittleEndian.PutUint32(buf[o+60:], inst.Flags)
		binary.LittleEndian.PutUint64(buf[o+64:], uint64(inst.Traversable))
		// bytes 72..79 pad to a 16-byte multiple
	}
	return buf
}
