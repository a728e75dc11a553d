package scene

import (
	"github.com/achilleasa/accel/types"
	"github.com/chewxy/math32"
)

// SubdivMesh is a quad control mesh whose faces are tessellated on demand.
// Each face is evaluated as a bilinear patch, optionally offset along the
// patch normal by a displacement function.
type SubdivMesh struct {
	geometryBase

	Name     string
	Vertices []types.Vec3
	Faces    [][4]uint32

	// The number of grid samples along each patch edge (>= 2).
	TessellationRate int

	// Optional displacement applied to evaluated samples.
	Displace func(p types.Vec3, uv types.Vec2) float32
}

// Create a new subdivision mesh.
func NewSubdivMesh(name string, vertices []types.Vec3, faces [][4]uint32, tessellationRate int) *SubdivMesh {
	if tessellationRate < 2 {
		tessellationRate = 2
	}
	m := &SubdivMesh{
		Name:             name,
		Vertices:         vertices,
		Faces:            faces,
		TessellationRate: tessellationRate,
	}
	m.init()
	return m
}

func (m *SubdivMesh) Type() GeometryType { return SubdivMeshGeometry }
func (m *SubdivMesh) NumPrimitives() int { return len(m.Faces) }

// PrimBounds returns the bounds of the i-th face. Displaced faces are
// bounded conservatively: along each axis the control point extent is
// offset by the product of the normal and displacement ranges of the face
// samples.
func (m *SubdivMesh) PrimBounds(i int) types.BBox {
	face := m.Faces[i]
	bounds := types.BBoxFromPoints(m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]], m.Vertices[face[3]])
	if m.Displace == nil {
		return bounds
	}

	var normals [3]types.Interval
	for axis := range normals {
		normals[axis] = types.EmptyInterval()
	}
	disp := types.EmptyInterval()

	patch := m.Patch(i)
	res := m.TessellationRate
	for v := 0; v < res; v++ {
		for u := 0; u < res; u++ {
			uv := types.XY(float32(u)/float32(res-1), float32(v)/float32(res-1))
			pos, normal := patch.frame(uv[0], uv[1])
			disp = disp.Extend(m.Displace(pos, uv))
			for axis := range normals {
				normals[axis] = normals[axis].Extend(normal[axis])
			}
		}
	}

	return types.BBoxFromAxes(
		bounds.Axis(0).Add(normals[0].Mul(disp)),
		bounds.Axis(1).Add(normals[1].Mul(disp)),
		bounds.Axis(2).Add(normals[2].Mul(disp)),
	)
}

// Patch returns the parametric patch for the i-th face.
func (m *SubdivMesh) Patch(i int) Patch {
	face := m.Faces[i]
	return Patch{
		ID: uint32(i),
		Corners: [4]types.Vec3{
			m.Vertices[face[0]],
			m.Vertices[face[1]],
			m.Vertices[face[2]],
			m.Vertices[face[3]],
		},
		URes:     m.TessellationRate,
		VRes:     m.TessellationRate,
		displace: m.Displace,
	}
}

// Patch is a bilinear quad patch with corners in counter-clockwise order
// starting at (u, v) = (0, 0).
type Patch struct {
	ID      uint32
	Corners [4]types.Vec3

	// Grid resolution used when tessellating the patch.
	URes, VRes int

	displace func(p types.Vec3, uv types.Vec2) float32
}

// Resolution returns the tessellation grid size.
func (p Patch) Resolution() (int, int) {
	return p.URes, p.VRes
}

// Eval returns the surface position at (u, v).
func (p Patch) Eval(u, v float32) types.Vec3 {
	pos, normal := p.frame(u, v)
	if p.displace == nil {
		return pos
	}
	return pos.Add(normal.Mul(p.displace(pos, types.XY(u, v))))
}

// frame returns the undisplaced position and unit normal at (u, v).
func (p Patch) frame(u, v float32) (types.Vec3, types.Vec3) {
	bottom := lerp(p.Corners[0], p.Corners[1], u)
	top := lerp(p.Corners[3], p.Corners[2], u)
	pos := lerp(bottom, top, v)

	du := lerp(p.Corners[1].Sub(p.Corners[0]), p.Corners[2].Sub(p.Corners[3]), v)
	dv := lerp(p.Corners[3].Sub(p.Corners[0]), p.Corners[2].Sub(p.Corners[1]), u)
	normal := du.Cross(dv)
	if l := normal.Len(); l > 0 {
		normal = normal.Mul(1 / l)
	}
	return pos, normal
}

func lerp(a, b types.Vec3, t float32) types.Vec3 {
	return types.XYZ(
		a[0]+(b[0]-a[0])*t,
		a[1]+(b[1]-a[1])*t,
		a[2]+(b[2]-a[2])*t,
	)
}

// Clamp a tessellation rate into the supported range.
func ClampTessellationRate(rate float32) int {
	return int(math32.Max(2, math32.Min(256, math32.Ceil(rate))))
}
