package optix

import (
	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

func (p programID) String() string {
	switch p {
	case programRaygen:
		return "raygen"
	case programException:
		return "exception"
	case programMissRadiance:
		return "miss radiance"
	case programMissShadow:
		return "miss shadow"
	case programHitRadiance:
		return "hit radiance"
	case programHitShadow:
		return "hit shadow"
	case programHitRadianceCutout:
		return "hit radiance cutout"
	case programHitShadowCutout:
		return "hit shadow cutout"
	case programLensPinhole:
		return "lens pinhole"
	case programLensFisheye:
		return "lens fisheye"
	case programLensSphere:
		return "lens sphere"
	case programLightEnv:
		return "light environment"
	case programLightParallelogram:
		return "light parallelogram"
	case programBSDFDiffuseSample:
		return "bsdf diffuse sample"
	case programBSDFDiffuseEval:
		return "bsdf diffuse eval"
	case programBSDFSpecularSample:
		return "bsdf specular sample"
	case programBSDFSpecularEval:
		return "bsdf specular eval"
	case programBSDFSpecularTransmissionSample:
		return "bsdf transmission sample"
	case programBSDFSpecularTransmissionEval:
		return "bsdf transmission eval"
	default:
		return "unknown"
	}
}

func (k moduleID) String() string {
	return k.Filename()
}

// ProgramInfo describes one program catalog entry for diagnostics.
type ProgramInfo struct {
	Name       string
	Kind       string
	Module     string
	EntryPoint string
}

// ProgramCatalog lists the full program catalog for an environment
// type, in SBT record order.
func ProgramCatalog(env scene.EnvironmentType) []ProgramInfo {
	var modules [numModules]rt.Module
	kinds := map[rt.ProgramGroupKind]string{
		rt.KindRaygen:    "raygen",
		rt.KindException: "exception",
		rt.KindMiss:      "miss",
		rt.KindHitGroup:  "hitgroup",
		rt.KindCallable:  "callable",
	}

	moduleNames := map[rt.Module]string{}
	for id := moduleID(0); id < numModules; id++ {
		modules[id] = rt.Module(id + 1)
		moduleNames[modules[id]] = id.Filename()
	}

	descs := programGroupDescs(modules, env)
	infos := make([]ProgramInfo, len(descs))
	for i, desc := range descs {
		info := ProgramInfo{
			Name:       programID(i).String(),
			Kind:       kinds[desc.Kind],
			Module:     moduleNames[desc.Module],
			EntryPoint: desc.EntryPoint,
		}
		if desc.Kind == rt.KindHitGroup {
			info.Module = moduleNames[desc.ModuleCH]
			info.EntryPoint = desc.EntryPointCH
			if desc.EntryPointAH != "" {
				if info.EntryPoint != "" {
					info.EntryPoint += " + "
				}
				info.EntryPoint += desc.EntryPointAH
				if info.Module == "" {
					info.Module = moduleNames[desc.ModuleAH]
				}
			}
		}
		infos[i] = info
	}
	return infos
}
