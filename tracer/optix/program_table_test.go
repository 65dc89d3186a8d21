package optix

import (
	"testing"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

func TestMissEntryPointSelection(t *testing.T) {
	specs := []struct {
		env scene.EnvironmentType
		exp string
	}{
		{scene.EnvironmentNone, "__miss__env_null"},
		{scene.EnvironmentConstant, "__miss__env_constant"},
		{scene.EnvironmentSphere, "__miss__env_sphere"},
	}

	for _, spec := range specs {
		if got := missEntryPoint(spec.env); got != spec.exp {
			t.Fatalf("environment %d: got %q; expected %q", spec.env, got, spec.exp)
		}
	}
}

func TestLightEnvEntryPointSelection(t *testing.T) {
	if got := lightEnvEntryPoint(scene.EnvironmentSphere); got != "__direct_callable__light_env_sphere" {
		t.Fatalf("got %q for the sphere environment", got)
	}
	for _, env := range []scene.EnvironmentType{scene.EnvironmentNone, scene.EnvironmentConstant} {
		if got := lightEnvEntryPoint(env); got != "__direct_callable__light_env_constant" {
			t.Fatalf("environment %d: got %q", env, got)
		}
	}
}

func TestProgramCatalogShape(t *testing.T) {
	var modules [numModules]rt.Module
	for i := range modules {
		modules[i] = rt.Module(i + 1)
	}
	descs := programGroupDescs(modules, scene.EnvironmentConstant)

	if len(descs) != int(numPrograms) {
		t.Fatalf("expected %d descriptors; got %d", int(numPrograms), len(descs))
	}
	if int(numCallables) != 11 {
		t.Fatalf("expected 11 callables; got %d", int(numCallables))
	}

	// The shadow miss program binds no module: the device payload
	// default stands in for it.
	shadow := descs[programMissShadow]
	if shadow.Module != 0 || shadow.EntryPoint != "" {
		t.Fatal("expected an empty shadow miss descriptor")
	}

	// Cutout hit groups add an any-hit entry on top of the closest hit.
	cutout := descs[programHitRadianceCutout]
	if cutout.EntryPointCH != "__closesthit__radiance" || cutout.EntryPointAH != "__anyhit__radiance_cutout" {
		t.Fatalf("unexpected cutout hit group %+v", cutout)
	}

	// Every callable is contiguous from the first callable ID.
	for id := firstCallableID; id < numPrograms; id++ {
		if descs[id].Kind != rt.KindCallable {
			t.Fatalf("program %v: expected a callable descriptor", id)
		}
	}

	// The transmission eval shares the black specular eval entry point.
	if descs[programBSDFSpecularTransmissionEval].EntryPoint != descs[programBSDFSpecularEval].EntryPoint {
		t.Fatal("expected the transmission eval to reuse the specular eval entry point")
	}
	if descs[programBSDFSpecularTransmissionSample].EntryPoint == descs[programBSDFSpecularSample].EntryPoint {
		t.Fatal("expected a dedicated transmission sample entry point")
	}
}

func TestModuleFilenamesAreUnique(t *testing.T) {
	seen := make(map[string]moduleID)
	for id := moduleID(0); id < numModules; id++ {
		name := id.Filename()
		if name == "unknown" || name == "" {
			t.Fatalf("module %d has no filename", id)
		}
		if prev, exists := seen[name]; exists {
			t.Fatalf("modules %d and %d share filename %q", prev, id, name)
		}
		seen[name] = id
	}
}
