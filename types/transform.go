package types

// Mat34 is a row-major 3x4 affine transform, the instance transform
// layout expected by the ray-tracing backend.
type Mat34 [12]float32

// Identity transform.
func Ident34() Mat34 {
	return Mat34{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
}

// Uniform scale transform.
func Scale34(s float32) Mat34 {
	return Mat34{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
	}
}

// Scale plus translation transform.
func ScaleTranslate34(s, tx, ty, tz float32) Mat34 {
	return Mat34{
		s, 0, 0, tx,
		0, s, 0, ty,
		0, 0, s, tz,
	}
}

// Translation transform.
func Translate34(tx, ty, tz float32) Mat34 {
	return Mat34{
		1, 0, 0, tx,
		0, 1, 0, ty,
		0, 0, 1, tz,
	}
}

// Transform a point by the affine matrix.
func (m Mat34) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3],
		m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7],
		m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11],
	}
}
