package scene

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/accel/asset"
	"github.com/achilleasa/accel/log"
	"github.com/achilleasa/accel/types"
	"github.com/pkg/errors"
)

// Default tessellation rate for quad faces.
const defaultTessellationRate = 8

type objectData struct {
	name      string
	triangles [][3]uint32
	quads     [][4]uint32
	tessRate  int
}

type wavefrontReader struct {
	logger log.Logger

	objects  []*objectData
	tessRate int

	// Vertex list shared by all objects.
	vertexList []types.Vec3

	// An error stack that provides additional error information when
	// files include other files.
	errStack []string
}

func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		logger:   log.New("scene reader"),
		tessRate: defaultTessellationRate,
	}
}

// ReadWavefront parses a wavefront object file and returns a scene with one
// triangle mesh per object containing triangular faces and one subdivision
// mesh per object containing quad faces.
//
// Besides the standard v, f, o and g statements the reader supports:
//   - call file      : include another object file
//   - tess_rate N    : set the tessellation rate for subsequent objects
//
// The location may be a local path or an http(s) URL; included files are
// resolved relative to the file that includes them.
func ReadWavefront(location string) (*Scene, error) {
	res, err := asset.NewResource(location, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "scene: could not open %s", location)
	}
	defer res.Close()

	return readWavefront(res)
}

func readWavefront(res *asset.Resource) (*Scene, error) {
	r := newWavefrontReader()
	start := time.Now()
	if err := r.parse(res); err != nil {
		return nil, err
	}
	sc := r.scene()
	r.logger.Infof("parsed %d geometries from %s in %d ms", sc.Size(), res.Path(), time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

// Generate the scene from the parsed object data.
func (r *wavefrontReader) scene() *Scene {
	sc := New()
	for _, obj := range r.objects {
		if len(obj.triangles) != 0 {
			vertices, tris := compactTriangles(r.vertexList, obj.triangles)
			sc.Add(NewTriangleMesh(obj.name, vertices, tris))
		}
		if len(obj.quads) != 0 {
			vertices, quads := compactQuads(r.vertexList, obj.quads)
			sc.Add(NewSubdivMesh(obj.name, vertices, quads, obj.tessRate))
		}
	}
	return sc
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	return errors.New(strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	))
}

// Push a frame to the error stack.
func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

func (r *wavefrontReader) currentObject() *objectData {
	if len(r.objects) == 0 {
		r.objects = append(r.objects, &objectData{name: "default", tessRate: r.tessRate})
	}
	return r.objects[len(r.objects)-1]
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	path := res.Path()
	lineNum := 0
	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(path, lineNum, "unsupported syntax for 'call'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			inc, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(path, lineNum, err.Error())
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [call]", path, lineNum))
			err = r.parse(inc)
			inc.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "tess_rate":
			rate, err := parseFloat32(lineTokens)
			if err != nil {
				return r.emitError(path, lineNum, err.Error())
			}
			r.tessRate = ClampTessellationRate(rate)
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(path, lineNum, err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(path, lineNum, "unsupported syntax for '%s'; expected 1 argument for object name; got %d", lineTokens[0], len(lineTokens)-1)
			}
			r.objects = append(r.objects, &objectData{name: lineTokens[1], tessRate: r.tessRate})
		case "f":
			indices, err := r.parseFace(lineTokens)
			if err != nil {
				return r.emitError(path, lineNum, err.Error())
			}

			obj := r.currentObject()
			if len(indices) == 3 {
				obj.triangles = append(obj.triangles, [3]uint32{indices[0], indices[1], indices[2]})
			} else {
				obj.quads = append(obj.quads, [4]uint32{indices[0], indices[1], indices[2], indices[3]})
			}
		}
	}

	return scanner.Err()
}

// Parse face definition. Faces must define 3 or 4 vertices. Each vertex
// argument is comprised of 1, 2 or 3 indices separated by a slash character;
// only the vertex index is used. Indices start from 1 and may be negative to
// indicate an offset off the end of the vertex list.
func (r *wavefrontReader) parseFace(lineTokens []string) ([]uint32, error) {
	if len(lineTokens) != 4 && len(lineTokens) != 5 {
		return nil, fmt.Errorf("unsupported syntax for 'f'; expected 3 or 4 arguments; got %d", len(lineTokens)-1)
	}

	indices := make([]uint32, len(lineTokens)-1)
	for arg := range indices {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return nil, fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		vOffset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList))
		if err != nil {
			return nil, fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		indices[arg] = uint32(vOffset)
	}
	return indices, nil
}

// Given an index for a face coord calculate the proper offset into the
// coord list. Wavefront format can also use negative indices to reference
// elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = int(index - 1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf("unsupported syntax for '%s'; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}
	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf("unsupported syntax for '%s'; expected 3 arguments; got %d", lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

// Remap the global vertex indices of an object to a compact vertex list.
func compactTriangles(vertexList []types.Vec3, faces [][3]uint32) ([]types.Vec3, [][3]uint32) {
	remap := make(map[uint32]uint32)
	var vertices []types.Vec3
	out := make([][3]uint32, len(faces))
	for i, face := range faces {
		for j, index := range face {
			out[i][j] = remapIndex(remap, &vertices, vertexList, index)
		}
	}
	return vertices, out
}

func compactQuads(vertexList []types.Vec3, faces [][4]uint32) ([]types.Vec3, [][4]uint32) {
	remap := make(map[uint32]uint32)
	var vertices []types.Vec3
	out := make([][4]uint32, len(faces))
	for i, face := range faces {
		for j, index := range face {
			out[i][j] = remapIndex(remap, &vertices, vertexList, index)
		}
	}
	return vertices, out
}

func remapIndex(remap map[uint32]uint32, vertices *[]types.Vec3, vertexList []types.Vec3, index uint32) uint32 {
	if mapped, exists := remap[index]; exists {
		return mapped
	}
	mapped := uint32(len(*vertices))
	*vertices = append(*vertices, vertexList[index])
	remap[index] = mapped
	return mapped
}
