package optix

import (
	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

// numRayTypes is the number of rays traced per path vertex: radiance
// and shadow.
const numRayTypes = 2

// moduleID enumerates the device-code modules the pipeline compiles.
type moduleID int

const (
	moduleRaygen moduleID = iota
	moduleException
	moduleMiss
	moduleClosestHit
	moduleAnyHit
	moduleLens
	moduleLightSample
	moduleBSDFDiffuse
	moduleBSDFSpecular
	moduleBSDFSpecularTransmission

	numModules
)

// Filename returns the on-disk image name for a module.
func (m moduleID) Filename() string {
	switch m {
	case moduleRaygen:
		return "raygeneration.bin"
	case moduleException:
		return "exception.bin"
	case moduleMiss:
		return "miss.bin"
	case moduleClosestHit:
		return "closesthit.bin"
	case moduleAnyHit:
		return "anyhit.bin"
	case moduleLens:
		return "lens_shader.bin"
	case moduleLightSample:
		return "light_sample.bin"
	case moduleBSDFDiffuse:
		return "bsdf_diffuse_reflection.bin"
	case moduleBSDFSpecular:
		return "bsdf_specular_reflection.bin"
	case moduleBSDFSpecularTransmission:
		return "bsdf_specular_reflection_transmission.bin"
	default:
		return "unknown"
	}
}

// programID enumerates the closed catalog of shader entry points. The
// order is the SBT record order: non-callables first, then the direct
// callables starting at firstCallableID.
type programID int

const (
	programRaygen programID = iota
	programException
	programMissRadiance
	programMissShadow
	programHitRadiance
	programHitShadow
	programHitRadianceCutout
	programHitShadowCutout

	programLensPinhole
	programLensFisheye
	programLensSphere
	programLightEnv
	programLightParallelogram
	programBSDFDiffuseSample
	programBSDFDiffuseEval
	programBSDFSpecularSample
	programBSDFSpecularEval
	programBSDFSpecularTransmissionSample
	programBSDFSpecularTransmissionEval

	numPrograms

	firstCallableID = programLensPinhole
	numCallables    = numPrograms - firstCallableID
)

// missEntryPoint selects the radiance miss program for an environment
// type. The shadow miss program has no module at all.
func missEntryPoint(env scene.EnvironmentType) string {
	switch env {
	case scene.EnvironmentConstant:
		return "__miss__env_constant"
	case scene.EnvironmentSphere:
		return "__miss__env_sphere"
	default:
		return "__miss__env_null"
	}
}

// lightEnvEntryPoint selects the environment light sampling callable
// for an environment type. With no environment the constant sampler
// keeps the callable slot populated; it is never invoked because the
// light list is empty.
func lightEnvEntryPoint(env scene.EnvironmentType) string {
	if env == scene.EnvironmentSphere {
		return "__direct_callable__light_env_sphere"
	}
	return "__direct_callable__light_env_constant"
}

// programGroupDescs builds the descriptor for every program in the
// catalog. Entry-point selection depends only on the environment type.
func programGroupDescs(modules [numModules]rt.Module, env scene.EnvironmentType) []rt.ProgramGroupDesc {
	descs := make([]rt.ProgramGroupDesc, numPrograms)

	descs[programRaygen] = rt.ProgramGroupDesc{
		Kind:       rt.KindRaygen,
		Module:     modules[moduleRaygen],
		EntryPoint: "__raygen__pathtracer",
	}
	descs[programException] = rt.ProgramGroupDesc{
		Kind:       rt.KindException,
		Module:     modules[moduleException],
		EntryPoint: "__exception__all",
	}
	descs[programMissRadiance] = rt.ProgramGroupDesc{
		Kind:       rt.KindMiss,
		Module:     modules[moduleMiss],
		EntryPoint: missEntryPoint(env),
	}
	// Shadow rays rely on the payload default; no program needed.
	descs[programMissShadow] = rt.ProgramGroupDesc{Kind: rt.KindMiss}

	descs[programHitRadiance] = rt.ProgramGroupDesc{
		Kind:         rt.KindHitGroup,
		ModuleCH:     modules[moduleClosestHit],
		EntryPointCH: "__closesthit__radiance",
	}
	descs[programHitShadow] = rt.ProgramGroupDesc{
		Kind:         rt.KindHitGroup,
		ModuleAH:     modules[moduleAnyHit],
		EntryPointAH: "__anyhit__shadow",
	}
	descs[programHitRadianceCutout] = rt.ProgramGroupDesc{
		Kind:         rt.KindHitGroup,
		ModuleCH:     modules[moduleClosestHit],
		EntryPointCH: "__closesthit__radiance",
		ModuleAH:     modules[moduleAnyHit],
		EntryPointAH: "__anyhit__radiance_cutout",
	}
	descs[programHitShadowCutout] = rt.ProgramGroupDesc{
		Kind:         rt.KindHitGroup,
		ModuleAH:     modules[moduleAnyHit],
		EntryPointAH: "__anyhit__shadow_cutout",
	}

	callable := func(id programID, mod moduleID, entryPoint string) {
		descs[id] = rt.ProgramGroupDesc{
			Kind:       rt.KindCallable,
			Module:     modules[mod],
			EntryPoint: entryPoint,
		}
	}
	callable(programLensPinhole, moduleLens, "__direct_callable__pinhole")
	callable(programLensFisheye, moduleLens, "__direct_callable__fisheye")
	callable(programLensSphere, moduleLens, "__direct_callable__sphere")
	callable(programLightEnv, moduleLightSample, lightEnvEntryPoint(env))
	callable(programLightParallelogram, moduleLightSample, "__direct_callable__light_parallelogram")
	callable(programBSDFDiffuseSample, moduleBSDFDiffuse, "__direct_callable__sample_bsdf_diffuse_reflection")
	callable(programBSDFDiffuseEval, moduleBSDFDiffuse, "__direct_callable__eval_bsdf_diffuse_reflection")
	callable(programBSDFSpecularSample, moduleBSDFSpecular, "__direct_callable__sample_bsdf_specular_reflection")
	callable(programBSDFSpecularEval, moduleBSDFSpecular, "__direct_callable__eval_bsdf_specular_reflection")
	callable(programBSDFSpecularTransmissionSample, moduleBSDFSpecularTransmission, "__direct_callable__sample_bsdf_specular_reflection_transmission")
	// Specular transmission has no meaningful eval; it binds the same
	// black eval entry point as the pure specular reflection.
	callable(programBSDFSpecularTransmissionEval, moduleBSDFSpecular, "__direct_callable__eval_bsdf_specular_reflection")

	return descs
}
