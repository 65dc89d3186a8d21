package scene

import (
	"math"

	"github.com/lumenrt/lumen/types"
)

// VertexAttribute is the per-vertex layout shared by all generated
// geometry. The device side reads it as four packed float3 fields.
type VertexAttribute struct {
	Position types.Vec3
	Tangent  types.Vec3
	Normal   types.Vec3
	TexCoord types.Vec3
}

// VertexAttributeSize is the packed byte size of one VertexAttribute.
const VertexAttributeSize = 48

// Mesh holds indexed triangle geometry in host memory.
type Mesh struct {
	Attributes []VertexAttribute
	Indices    []uint32
}

// NewPlane builds a tessellated unit plane spanning [-1,1] on the two
// axes perpendicular to upAxis (0 = x-up, 1 = y-up, 2 = z-up).
func NewPlane(tessU, tessV, upAxis int) *Mesh {
	if tessU < 1 {
		tessU = 1
	}
	if tessV < 1 {
		tessV = 1
	}

	uTiles := float32(tessU)
	vTiles := float32(tessV)

	var corner, du, dv, tangent, normal types.Vec3
	switch upAxis {
	case 0: // x-up, plane in yz
		corner = types.XYZ(0, -1, 1)
		du = types.XYZ(0, 0, -2/uTiles)
		dv = types.XYZ(0, 2/vTiles, 0)
		tangent = types.XYZ(0, 0, -1)
		normal = types.XYZ(1, 0, 0)
	case 2: // z-up, plane in xy
		corner = types.XYZ(-1, -1, 0)
		du = types.XYZ(2/uTiles, 0, 0)
		dv = types.XYZ(0, 2/vTiles, 0)
		tangent = types.XYZ(1, 0, 0)
		normal = types.XYZ(0, 0, 1)
	default: // y-up, plane in xz
		corner = types.XYZ(-1, 0, 1)
		du = types.XYZ(2/uTiles, 0, 0)
		dv = types.XYZ(0, 0, -2/vTiles)
		tangent = types.XYZ(1, 0, 0)
		normal = types.XYZ(0, 1, 0)
	}

	mesh := &Mesh{}
	for j := 0; j <= tessV; j++ {
		for i := 0; i <= tessU; i++ {
			fi, fj := float32(i), float32(j)
			mesh.Attributes = append(mesh.Attributes, VertexAttribute{
				Position: corner.Add(du.Mul(fi)).Add(dv.Mul(fj)),
				Tangent:  tangent,
				Normal:   normal,
				TexCoord: types.XYZ(fi/uTiles, fj/vTiles, 0),
			})
		}
	}

	stride := uint32(tessU + 1)
	for j := 0; j < tessV; j++ {
		for i := 0; i < tessU; i++ {
			ll := uint32(j)*stride + uint32(i)
			lr := ll + 1
			ul := ll + stride
			ur := ul + 1
			mesh.Indices = append(mesh.Indices, ll, lr, ur, ur, ul, ll)
		}
	}
	return mesh
}

// NewBox builds a unit cube spanning [-1,1] with per-face attributes.
func NewBox() *Mesh {
	type face struct {
		normal  types.Vec3
		tangent types.Vec3
	}
	faces := []face{
		{types.XYZ(-1, 0, 0), types.XYZ(0, 0, -1)},
		{types.XYZ(1, 0, 0), types.XYZ(0, 0, 1)},
		{types.XYZ(0, -1, 0), types.XYZ(-1, 0, 0)},
		{types.XYZ(0, 1, 0), types.XYZ(1, 0, 0)},
		{types.XYZ(0, 0, -1), types.XYZ(-1, 0, 0)},
		{types.XYZ(0, 0, 1), types.XYZ(1, 0, 0)},
	}

	mesh := &Mesh{}
	for _, f := range faces {
		bitangent := f.normal.Cross(f.tangent)
		base := uint32(len(mesh.Attributes))
		for _, uv := range [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			u, v := uv[0], uv[1]
			pos := f.normal.
				Add(f.tangent.Mul(2*u - 1)).
				Add(bitangent.Mul(2*v - 1))
			mesh.Attributes = append(mesh.Attributes, VertexAttribute{
				Position: pos,
				Tangent:  f.tangent,
				Normal:   f.normal,
				TexCoord: types.XYZ(u, v, 0),
			})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return mesh
}

// NewSphere builds a longitude/latitude tessellated sphere. maxTheta
// limits the polar angle so partial spheres (domes) can be generated;
// pass math.Pi for a full sphere.
func NewSphere(tessU, tessV int, radius, maxTheta float32) *Mesh {
	if tessU < 3 {
		tessU = 3
	}
	if tessV < 3 {
		tessV = 3
	}

	mesh := &Mesh{}
	phiStep := 2 * math.Pi / float64(tessU)
	thetaStep := float64(maxTheta) / float64(tessV-1)

	for latitude := 0; latitude < tessV; latitude++ {
		theta := float64(latitude) * thetaStep
		sinTheta := float32(math.Sin(theta))
		cosTheta := float32(math.Cos(theta))
		texV := float32(latitude) / float32(tessV-1)

		for longitude := 0; longitude <= tessU; longitude++ {
			phi := float64(longitude) * phiStep
			sinPhi := float32(math.Sin(phi))
			cosPhi := float32(math.Cos(phi))
			texU := float32(longitude) / float32(tessU)

			// unit sphere: poles on the y axis
			normal := types.XYZ(cosPhi*sinTheta, -cosTheta, -sinPhi*sinTheta)
			mesh.Attributes = append(mesh.Attributes, VertexAttribute{
				Position: normal.Mul(radius),
				Tangent:  types.XYZ(-sinPhi, 0, -cosPhi),
				Normal:   normal,
				TexCoord: types.XYZ(texU, texV, 0),
			})
		}
	}

	stride := uint32(tessU + 1)
	for latitude := 0; latitude < tessV-1; latitude++ {
		for longitude := 0; longitude < tessU; longitude++ {
			ll := uint32(latitude)*stride + uint32(longitude)
			lr := ll + 1
			ul := ll + stride
			ur := ul + 1
			mesh.Indices = append(mesh.Indices, ll, lr, ur, ur, ul, ll)
		}
	}
	return mesh
}

// NewTorus builds a torus around the y axis with the given ring
// (inner) and tube (outer) radii.
func NewTorus(tessU, tessV int, innerRadius, outerRadius float32) *Mesh {
	if tessU < 3 {
		tessU = 3
	}
	if tessV < 3 {
		tessV = 3
	}

	mesh := &Mesh{}
	for j := 0; j <= tessV; j++ {
		v := 2 * math.Pi * float64(j) / float64(tessV)
		sinV := float32(math.Sin(v))
		cosV := float32(math.Cos(v))
		for i := 0; i <= tessU; i++ {
			u := 2 * math.Pi * float64(i) / float64(tessU)
			sinU := float32(math.Sin(u))
			cosU := float32(math.Cos(u))

			ring := types.XYZ(cosU, 0, -sinU)
			normal := ring.Mul(cosV).Add(types.XYZ(0, sinV, 0))
			mesh.Attributes = append(mesh.Attributes, VertexAttribute{
				Position: ring.Mul(innerRadius).Add(normal.Mul(outerRadius)),
				Tangent:  types.XYZ(-sinU, 0, -cosU),
				Normal:   normal,
				TexCoord: types.XYZ(float32(i)/float32(tessU), float32(j)/float32(tessV), 0),
			})
		}
	}

	stride := uint32(tessU + 1)
	for j := 0; j < tessV; j++ {
		for i := 0; i < tessU; i++ {
			ll := uint32(j)*stride + uint32(i)
			lr := ll + 1
			ul := ll + stride
			ur := ul + 1
			mesh.Indices = append(mesh.Indices, ll, lr, ur, ur, ul, ll)
		}
	}
	return mesh
}

// NewParallelogram builds a single two-triangle quad from an anchor
// point and two edge vectors. Used for area lights.
func NewParallelogram(position, vecU, vecV, normal types.Vec3) *Mesh {
	tangent := vecU.Normalize()
	return &Mesh{
		Attributes: []VertexAttribute{
			{Position: position, Tangent: tangent, Normal: normal, TexCoord: types.XYZ(0, 0, 0)},
			{Position: position.Add(vecU), Tangent: tangent, Normal: normal, TexCoord: types.XYZ(1, 0, 0)},
			{Position: position.Add(vecU).Add(vecV), Tangent: tangent, Normal: normal, TexCoord: types.XYZ(1, 1, 0)},
			{Position: position.Add(vecV), Tangent: tangent, Normal: normal, TexCoord: types.XYZ(0, 1, 0)},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}
