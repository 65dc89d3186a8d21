package scene

import "github.com/lumenrt/lumen/types"

// BSDF function indices; the order matches the sample/eval callable
// pairs in the program catalog.
type BSDFIndex int32

const (
	BSDFDiffuseReflection BSDFIndex = iota
	BSDFSpecularReflection
	BSDFSpecularReflectionTransmission
)

// EnvironmentType selects the radiance miss program and the
// environment light implementation.
type EnvironmentType int

const (
	EnvironmentNone EnvironmentType = iota
	EnvironmentConstant
	EnvironmentSphere
)

// Material holds the user-editable surface description. The device
// mirror derives absorption coefficients and texture handles from
// these fields on every upload.
type Material struct {
	Name string

	IndexBSDF        BSDFIndex
	Albedo           types.Vec3
	UseAlbedoTexture bool
	UseCutoutTexture bool
	ThinWalled       bool

	// Volume absorption is specified as a transmission color at one
	// scaled distance unit, not as a raw coefficient.
	AbsorptionColor     types.Vec3
	VolumeDistanceScale float32
	IOR                 float32
}

// DemoMaterials returns the material set of the built-in scene, in
// instance order.
func DemoMaterials() []Material {
	return []Material{
		{
			Name:                "Floor",
			IndexBSDF:           BSDFDiffuseReflection,
			Albedo:              types.Splat3(0.5),
			UseAlbedoTexture:    true,
			AbsorptionColor:     types.Splat3(1),
			VolumeDistanceScale: 1,
			IOR:                 1.5,
		},
		{
			Name:                "Water",
			IndexBSDF:           BSDFSpecularReflectionTransmission,
			Albedo:              types.Splat3(1),
			AbsorptionColor:     types.XYZ(0.75, 0.75, 0.95),
			VolumeDistanceScale: 1,
			IOR:                 1.33,
		},
		{
			Name:                "Glass",
			IndexBSDF:           BSDFSpecularReflectionTransmission,
			Albedo:              types.Splat3(1),
			AbsorptionColor:     types.XYZ(0.5, 0.75, 0.5),
			VolumeDistanceScale: 1,
			IOR:                 1.52,
		},
		{
			Name:                "Leaf",
			IndexBSDF:           BSDFDiffuseReflection,
			Albedo:              types.XYZ(0.05, 0.7, 0.05),
			UseCutoutTexture:    true,
			ThinWalled:          true,
			AbsorptionColor:     types.Splat3(1),
			VolumeDistanceScale: 1,
			IOR:                 1.5,
		},
		{
			Name:                "Mirror",
			IndexBSDF:           BSDFSpecularReflection,
			Albedo:              types.XYZ(0.8, 0.9, 1),
			AbsorptionColor:     types.Splat3(1),
			VolumeDistanceScale: 1,
			IOR:                 1.5,
		},
		{
			Name:                "Light",
			IndexBSDF:           BSDFDiffuseReflection,
			Albedo:              types.Splat3(0),
			AbsorptionColor:     types.Splat3(1),
			VolumeDistanceScale: 1,
			IOR:                 1.5,
		},
	}
}
