package tesscache

import (
	"github.com/achilleasa/accel/scene"
	"github.com/achilleasa/accel/subdiv"
	"github.com/pkg/errors"
)

// Key identifies a patch of a subdivision mesh.
type Key struct {
	GeomID uint32
	PrimID uint32
}

func (k Key) tag() uint64 {
	return uint64(k.GeomID)<<32 | uint64(k.PrimID)
}

// A Tessellator evaluates the sample grid of a patch.
type Tessellator interface {
	Tessellate(key Key, g *subdiv.Grid) error
}

// TessellatorFunc adapts a function to the Tessellator interface.
type TessellatorFunc func(key Key, g *subdiv.Grid) error

// Tessellate implements Tessellator.
func (f TessellatorFunc) Tessellate(key Key, g *subdiv.Grid) error {
	return f(key, g)
}

// SceneTessellator evaluates the patches of the subdivision meshes in sc.
func SceneTessellator(sc *scene.Scene) Tessellator {
	return TessellatorFunc(func(key Key, g *subdiv.Grid) error {
		mesh, ok := sc.Geometry(key.GeomID).(*scene.SubdivMesh)
		if !ok {
			return errors.Wrapf(ErrNotSubdivPatch, "geometry %d", key.GeomID)
		}
		if int(key.PrimID) >= mesh.NumPrimitives() {
			return errors.Wrapf(ErrUnknownPatch, "geometry %d patch %d", key.GeomID, key.PrimID)
		}
		return subdiv.Evaluate(mesh.Patch(int(key.PrimID)), g)
	})
}
