package optix

import (
	"fmt"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/types"
)

// instanceDef places one geometry record into the scene with a
// transform and its material binding. LightIndex tags instances that
// act as area lights (-1 otherwise); the tag replaces any positional
// convention for locating light geometry.
type instanceDef struct {
	transform     types.Mat34
	geometryIndex int
	materialIndex int
	lightIndex    int
}

// sceneGraph assembles the flat instance list into the single
// top-level acceleration structure. Instance order is binding: the
// instance ID and therefore the SBT offset (id * numRayTypes) follow
// insertion order.
type sceneGraph struct {
	api       rt.API
	geometry  *geometryStore
	instances []instanceDef

	ias  rt.DevicePtr
	root rt.TraversableHandle
}

func newSceneGraph(api rt.API, geometry *geometryStore) *sceneGraph {
	return &sceneGraph{api: api, geometry: geometry}
}

// AddInstance appends an instance and returns its instance ID.
func (g *sceneGraph) AddInstance(def instanceDef) int {
	g.instances = append(g.instances, def)
	return len(g.instances) - 1
}

// NumInstances returns the instance count.
func (g *sceneGraph) NumInstances() int {
	return len(g.instances)
}

// Instance returns the definition of instance id.
func (g *sceneGraph) Instance(id int) instanceDef {
	return g.instances[id]
}

// deviceInstances derives the device instance array: the SBT offset of
// instance id is id * numRayTypes, so offsets are unique and aligned
// to the ray-type count by construction.
func (g *sceneGraph) deviceInstances() []rt.Instance {
	encoded := make([]rt.Instance, len(g.instances))
	for id, def := range g.instances {
		encoded[id] = rt.Instance{
			Transform:      def.transform,
			InstanceID:     uint32(id),
			SbtOffset:      uint32(id * numRayTypes),
			VisibilityMask: 0xff,
			Flags:          rt.InstanceFlagNone,
			Traversable:    g.geometry.Record(def.geometryIndex).handle,
		}
	}
	return encoded
}

// Build uploads the encoded instance array and builds the top-level
// acceleration structure in one batch. The staging and scratch buffers
// are freed after a stream sync; the output buffer is retained.
func (g *sceneGraph) Build() (rt.TraversableHandle, error) {
	if len(g.instances) == 0 {
		return 0, fmt.Errorf("scene graph: no instances")
	}

	encoded := g.deviceInstances()

	staging, err := g.api.Malloc(len(encoded) * rt.InstanceByteSize)
	if err != nil {
		return 0, fmt.Errorf("scene graph: allocating instance staging: %v", err)
	}
	if err = g.api.MemcpyHtoD(staging, rt.EncodeInstances(encoded)); err != nil {
		return 0, fmt.Errorf("scene graph: uploading instances: %v", err)
	}

	input := rt.InstanceInput{Instances: staging, NumInstances: len(encoded)}
	sizes, err := g.api.ComputeAccelMemoryUsage(input)
	if err != nil {
		return 0, fmt.Errorf("scene graph: computing accel memory usage: %v", err)
	}

	g.ias, err = g.api.Malloc(sizes.OutputSizeInBytes)
	if err != nil {
		return 0, fmt.Errorf("scene graph: allocating accel output: %v", err)
	}
	scratch, err := g.api.Malloc(sizes.TempSizeInBytes)
	if err != nil {
		return 0, fmt.Errorf("scene graph: allocating accel scratch: %v", err)
	}

	g.root, err = g.api.BuildAccel(input, scratch, sizes.TempSizeInBytes, g.ias, sizes.OutputSizeInBytes)
	if err != nil {
		return 0, fmt.Errorf("scene graph: building accel: %v", err)
	}

	// Both the staging and scratch buffers feed the queued build.
	if err = g.api.StreamSynchronize(); err != nil {
		return 0, fmt.Errorf("scene graph: synchronizing after build: %v", err)
	}
	for _, ptr := range []rt.DevicePtr{scratch, staging} {
		if err = g.api.Free(ptr); err != nil {
			return 0, fmt.Errorf("scene graph: freeing build buffers: %v", err)
		}
	}

	logger.Debugf("scene graph: built root accel over %d instances", len(encoded))
	return g.root, nil
}

// Release frees the top-level accel output buffer.
func (g *sceneGraph) Release() {
	if g.ias == 0 {
		return
	}
	if err := g.api.Free(g.ias); err != nil {
		logger.Warningf("scene graph: freeing accel output: %v", err)
	}
	g.ias = 0
}
