package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/lumenrt/lumen/types"
)

// ProjectionType selects the lens callable used by the ray generation
// program.
type ProjectionType int

const (
	ProjectionPinhole ProjectionType = iota
	ProjectionFisheye
	ProjectionSphere
)

// Camera is an orbit camera around a fixed center of interest. Phi and
// theta are normalized spherical coordinates in [0,1]; fov is the full
// vertical field of view in degrees.
type Camera struct {
	center   types.Vec3
	phi      float32
	theta    float32
	fov      float32
	distance float32

	width  int
	height int
	aspect float32

	baseX int
	baseY int

	changed bool
}

// NewCamera creates a camera with the default framing of the demo
// scene.
func NewCamera() *Camera {
	return &Camera{
		center:   types.XYZ(0, 0, 0),
		phi:      0.75,
		theta:    0.6,
		fov:      60,
		distance: 10,
		width:    1,
		height:   1,
		aspect:   1,
		changed:  true,
	}
}

// SetViewport updates the viewport resolution used for the aspect
// ratio of the generated frustum.
func (c *Camera) SetViewport(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == c.width && height == c.height {
		return
	}
	c.width = width
	c.height = height
	c.aspect = float32(width) / float32(height)
	c.changed = true
}

// SetBaseCoordinates anchors the reference point for subsequent
// relative Orbit/Pan/Dolly deltas.
func (c *Camera) SetBaseCoordinates(x, y int) {
	c.baseX = x
	c.baseY = y
}

// Orbit rotates the camera around the center of interest.
func (c *Camera) Orbit(x, y int) {
	if dx, dy, moved := c.drag(x, y); moved {
		c.phi -= dx
		// wrap phi
		if c.phi < 0 {
			c.phi++
		} else if c.phi > 1 {
			c.phi--
		}

		c.theta += dy
		// clamp theta to the poles
		if c.theta < 0 {
			c.theta = 0
		} else if c.theta > 1 {
			c.theta = 1
		}
	}
}

// Pan moves the center of interest inside the current view plane.
func (c *Camera) Pan(x, y int) {
	if dx, dy, moved := c.drag(x, y); moved {
		_, u, v, _ := c.frame()
		c.center = c.center.Sub(u.Mul(dx)).Add(v.Mul(dy))
	}
}

// Dolly scales the orbit distance.
func (c *Camera) Dolly(x, y int) {
	if _, dy, moved := c.drag(x, y); moved {
		c.distance -= 4 * dy
		if c.distance < 0.1 {
			c.distance = 0.1
		}
	}
}

// Zoom adjusts the vertical field of view by a wheel delta.
func (c *Camera) Zoom(delta float32) {
	c.fov += delta
	if c.fov < 1 {
		c.fov = 1
	} else if c.fov > 179 {
		c.fov = 179
	}
	c.changed = true
}

// drag converts a cursor position into a viewport-relative delta from
// the current anchor point and advances the anchor.
func (c *Camera) drag(x, y int) (dx, dy float32, moved bool) {
	if x == c.baseX && y == c.baseY {
		return 0, 0, false
	}
	dx = float32(x-c.baseX) / float32(c.width)
	dy = float32(y-c.baseY) / float32(c.height)
	c.baseX = x
	c.baseY = y
	c.changed = true
	return dx, dy, true
}

// frame derives the camera position and the UVW onb from the current
// spherical coordinates.
func (c *Camera) frame() (pos, u, v, w types.Vec3) {
	cosPhi := float32(math.Cos(2 * math.Pi * float64(c.phi)))
	sinPhi := float32(math.Sin(2 * math.Pi * float64(c.phi)))
	// theta in (0, pi) measured from the south pole
	cosTheta := float32(math.Cos(math.Pi * float64(c.theta)))
	sinTheta := float32(math.Sin(math.Pi * float64(c.theta)))

	normal := mgl32.Vec3{cosPhi * sinTheta, -cosTheta, -sinPhi * sinTheta}

	tanFov := float32(math.Tan(0.5 * float64(c.fov) * math.Pi / 180))

	center := mgl32.Vec3{c.center[0], c.center[1], c.center[2]}
	position := center.Add(normal.Mul(c.distance))
	back := normal.Mul(-1)

	right := mgl32.Vec3{0, 1, 0}.Cross(back)
	if right.Len() < 1e-6 {
		right = mgl32.Vec3{1, 0, 0}
	}
	right = right.Normalize().Mul(c.aspect * tanFov)
	up := back.Cross(right).Normalize().Mul(tanFov)

	pos = types.XYZ(position.Elem())
	u = types.XYZ(right.Elem())
	v = types.XYZ(up.Elem())
	w = types.XYZ(back.Elem())
	return pos, u, v, w
}

// Frustum returns the camera position and UVW basis vectors scaled for
// ray generation, plus whether the camera moved since the previous
// call. The changed flag resets on read.
func (c *Camera) Frustum() (pos, u, v, w types.Vec3, changed bool) {
	pos, u, v, w = c.frame()
	changed = c.changed
	c.changed = false
	return pos, u, v, w, changed
}
