package rt

import (
	"encoding/binary"
	"testing"

	"github.com/lumenrt/lumen/types"
)

func TestEncodeInstancesLayout(t *testing.T) {
	instances := []Instance{
		{
			Transform:      types.Ident34(),
			InstanceID:     0,
			SbtOffset:      0,
			VisibilityMask: 0xff,
			Traversable:    TraversableHandle(0xdead),
		},
		{
			Transform:      types.Translate34(1, 2, 3),
			InstanceID:     1,
			SbtOffset:      2,
			VisibilityMask: 0xff,
			Flags:          InstanceFlagDisableAnyhit,
			Traversable:    TraversableHandle(0xbeef),
		},
	}

	buf := EncodeInstances(instances)
	if len(buf) != 2*InstanceByteSize {
		t.Fatalf("expected %d bytes; got %d", 2*InstanceByteSize, len(buf))
	}

	// Second instance: translation in the transform's fourth column.
	o := InstanceByteSize
	if bits := binary.LittleEndian.Uint32(buf[o+3*4:]); bits != 0x3f800000 { // float32(1)
		t.Fatalf("unexpected tx bits %#x", bits)
	}
	if got := binary.LittleEndian.Uint32(buf[o+48:]); got != 1 {
		t.Fatalf("unexpected instance ID %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[o+52:]); got != 2 {
		t.Fatalf("unexpected SBT offset %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[o+60:]); got != InstanceFlagDisableAnyhit {
		t.Fatalf("unexpected flags %d", got)
	}
	if got := binary.LittleEndian.Uint64(buf[o+64:]); got != 0xbeef {
		t.Fatalf("unexpected traversable handle %#x", got)
	}
}

func TestStackSizesMax(t *testing.T) {
	var agg StackSizes
	agg.Max(StackSizes{CssRG: 10, CssMS: 5, DssDC: 7})
	agg.Max(StackSizes{CssRG: 3, CssCH: 9, DssDC: 12})

	exp := StackSizes{CssRG: 10, CssMS: 5, CssCH: 9, DssDC: 12}
	if agg != exp {
		t.Fatalf("got %+v; expected %+v", agg, exp)
	}
}
