package scene

import "github.com/achilleasa/accel/types"

// TriangleMesh is an indexed triangle mesh.
type TriangleMesh struct {
	geometryBase

	Name      string
	Vertices  []types.Vec3
	Triangles [][3]uint32
}

// Create a new triangle mesh.
func NewTriangleMesh(name string, vertices []types.Vec3, triangles [][3]uint32) *TriangleMesh {
	m := &TriangleMesh{
		Name:      name,
		Vertices:  vertices,
		Triangles: triangles,
	}
	m.init()
	return m
}

func (m *TriangleMesh) Type() GeometryType { return TriangleMeshGeometry }
func (m *TriangleMesh) NumPrimitives() int { return len(m.Triangles) }

// PrimBounds returns the bounds of the i-th triangle.
func (m *TriangleMesh) PrimBounds(i int) types.BBox {
	tri := m.Triangles[i]
	return types.BBoxFromPoints(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
}
