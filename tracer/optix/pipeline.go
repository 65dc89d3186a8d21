package optix

import (
	"fmt"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

const (
	maxTraceDepth = 2

	// Root IAS over single-level GASes.
	maxTraversableGraphDepth = 2
)

// pipeline owns the compiled modules, program groups and the linked
// pipeline handle for the fixed program catalog.
type pipeline struct {
	api      rt.API
	handle   rt.Pipeline
	groups   []rt.ProgramGroup
	modules  [numModules]rt.Module
	released bool
}

// newPipeline compiles every module through the loader, creates the
// full program-group catalog in one batch, links the pipeline and
// applies the aggregated stack sizes.
func newPipeline(api rt.API, loader ModuleLoader, env scene.EnvironmentType) (*pipeline, error) {
	p := &pipeline{api: api}

	for id := moduleID(0); id < numModules; id++ {
		image := loader(id.Filename())
		module, err := api.CreateModule(image)
		if err != nil {
			return nil, fmt.Errorf("pipeline: compiling module %q: %v", id.Filename(), err)
		}
		p.modules[id] = module
	}

	groups, err := api.CreateProgramGroups(programGroupDescs(p.modules, env))
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating program groups: %v", err)
	}
	p.groups = groups

	handle, err := api.CreatePipeline(groups, rt.PipelineOptions{
		NumPayloadValues:   2,
		NumAttributeValues: 2,
		MaxTraceDepth:      maxTraceDepth,
		LaunchParamsName:   "sysParameter",
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: linking: %v", err)
	}
	p.handle = handle

	if err = p.applyStackSizes(); err != nil {
		return nil, err
	}
	return p, nil
}

// applyStackSizes aggregates the per-group stack requirements into the
// pipeline-wide continuation and direct-callable stack sizes.
func (p *pipeline) applyStackSizes() error {
	var agg rt.StackSizes
	for i, group := range p.groups {
		sizes, err := p.api.GetStackSizes(group)
		if err != nil {
			return fmt.Errorf("pipeline: stack sizes of group %d: %v", i, err)
		}
		agg.Max(sizes)
	}

	// Direct callables invoked from both traversal and state programs;
	// no nested continuation callables.
	cssCCTree := agg.CssCC
	cssCHOrMSPlusCCTree := max32(agg.CssCH, agg.CssMS) + cssCCTree

	continuationStack := agg.CssRG + cssCCTree +
		(maxTraceDepth-1)*cssCHOrMSPlusCCTree +
		min32(1, maxTraceDepth)*max32(cssCHOrMSPlusCCTree, agg.CssAH+agg.CssIS)

	err := p.api.SetStackSizes(p.handle, agg.DssDC, agg.DssDC, continuationStack, maxTraversableGraphDepth)
	if err != nil {
		return fmt.Errorf("pipeline: applying stack sizes: %v", err)
	}
	return nil
}

// packHeaders packs one SBT record header per catalog program. The
// returned slice is indexed by programID.
func (p *pipeline) packHeaders() ([][]byte, error) {
	headers := make([][]byte, len(p.groups))
	for i, group := range p.groups {
		header := make([]byte, rt.SbtRecordHeaderSize)
		if err := p.api.PackSbtRecordHeader(group, header); err != nil {
			return nil, fmt.Errorf("pipeline: packing header %d: %v", i, err)
		}
		headers[i] = header
	}
	return headers, nil
}

// releaseBuildArtifacts destroys the program groups and modules once
// the headers are packed and the pipeline is linked; the pipeline
// handle stays live for launches.
func (p *pipeline) releaseBuildArtifacts() {
	for _, group := range p.groups {
		if err := p.api.DestroyProgramGroup(group); err != nil {
			logger.Warningf("pipeline: destroying program group: %v", err)
		}
	}
	p.groups = nil
	for id := moduleID(0); id < numModules; id++ {
		if err := p.api.DestroyModule(p.modules[id]); err != nil {
			logger.Warningf("pipeline: destroying module %q: %v", id.Filename(), err)
		}
	}
}

// Release destroys the pipeline handle.
func (p *pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	if err := p.api.DestroyPipeline(p.handle); err != nil {
		logger.Warningf("pipeline: destroying pipeline: %v", err)
	}
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
