package scene

import (
	"sync/atomic"

	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

type GeometryType uint8

const (
	TriangleMeshGeometry GeometryType = iota
	SubdivMeshGeometry
)

func (t GeometryType) String() string {
	switch t {
	case TriangleMeshGeometry:
		return "triangles"
	case SubdivMeshGeometry:
		return "subdiv"
	}
	return "unknown"
}

// Quality selects the build settings used for a geometry's hierarchy.
type Quality uint8

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	}
	return "unknown"
}

// ParseQuality converts the name of a quality level back to its value.
func ParseQuality(name string) (Quality, error) {
	for q := QualityLow; q <= QualityHigh; q++ {
		if q.String() == name {
			return q, nil
		}
	}
	return QualityMedium, errors.Wrapf(ErrUnknownQuality, "%q", name)
}

// The Geometry interface is implemented by all scene objects that can be
// indexed by the acceleration structure builders.
type Geometry interface {
	Type() GeometryType

	// The number of primitives and the bounds of the i-th primitive.
	NumPrimitives() int
	PrimBounds(i int) types.BBox

	// Geometries with more than one time step or that are disabled are
	// excluded from scene builds.
	NumTimeSteps() int
	Enabled() bool

	// A counter that is bumped whenever the geometry data changes.
	Modified() uint64

	// The requested build quality.
	Quality() Quality
}

// Shared state for all geometry implementations.
type geometryBase struct {
	disabled  atomic.Bool
	timeSteps atomic.Int32
	modified  atomic.Uint64
	quality   atomic.Uint32
}

func (g *geometryBase) init() {
	g.timeSteps.Store(1)
	g.modified.Store(1)
	g.quality.Store(uint32(QualityMedium))
}

func (g *geometryBase) Enabled() bool     { return !g.disabled.Load() }
func (g *geometryBase) NumTimeSteps() int { return int(g.timeSteps.Load()) }
func (g *geometryBase) Modified() uint64  { return g.modified.Load() }
func (g *geometryBase) Quality() Quality  { return Quality(g.quality.Load()) }

// Enable or disable the geometry.
func (g *geometryBase) SetEnabled(enabled bool) {
	g.disabled.Store(!enabled)
}

// Set the number of motion blur time steps.
func (g *geometryBase) SetTimeSteps(steps int) {
	g.timeSteps.Store(int32(steps))
	g.Update()
}

// Set the build quality for the geometry hierarchy.
func (g *geometryBase) SetQuality(q Quality) {
	g.quality.Store(uint32(q))
}

// Update flags the geometry data as modified.
func (g *geometryBase) Update() {
	g.modified.Add(1)
}
