// Package localgen is the offline fallback provider: it fabricates a small
// placeholder mesh synchronously, with no external calls, so the pipeline
// stays exercisable without live upstream dependencies.
package localgen

import (
	"fmt"
	"strings"
)

// vertex is one corner of the placeholder mesh.
type vertex struct {
	x, y, z float64
}

// The placeholder artifact is a regular tetrahedron: the smallest closed
// polyhedron, valid in every format the service emits.
var (
	tetraVertices = []vertex{
		{0, 0, 0},
		{1, 0, 0},
		{0.5, 0.866025, 0},
		{0.5, 0.288675, 0.816497},
	}

	// Faces as zero-based vertex indices, outward-facing winding.
	tetraFaces = [][3]int{
		{0, 2, 1},
		{0, 1, 3},
		{1, 2, 3},
		{0, 3, 2},
	}
)

// encodeOBJ renders the placeholder mesh as Wavefront OBJ text.
func encodeOBJ() []byte {
	var b strings.Builder
	b.WriteString("o placeholder\n")
	for _, v := range tetraVertices {
		fmt.Fprintf(&b, "v %g %g %g\n", v.x, v.y, v.z)
	}
	for _, f := range tetraFaces {
		// OBJ indices are one-based.
		fmt.Fprintf(&b, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
	}
	return []byte(b.String())
}

// encodePLY renders the placeholder mesh as ASCII PLY.
func encodePLY() []byte {
	var b strings.Builder
	b.WriteString("ply\n")
	b.WriteString("format ascii 1.0\n")
	fmt.Fprintf(&b, "element vertex %d\n", len(tetraVertices))
	b.WriteString("property float x\n")
	b.WriteString("property float y\n")
	b.WriteString("property float z\n")
	fmt.Fprintf(&b, "element face %d\n", len(tetraFaces))
	b.WriteString("property list uchar int vertex_indices\n")
	b.WriteString("end_header\n")
	for _, v := range tetraVertices {
		fmt.Fprintf(&b, "%g %g %g\n", v.x, v.y, v.z)
	}
	for _, f := range tetraFaces {
		fmt.Fprintf(&b, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return []byte(b.String())
}

// encodeSTL renders the placeholder mesh as ASCII STL.
func encodeSTL() []byte {
	var b strings.Builder
	b.WriteString("solid placeholder\n")
	for _, f := range tetraFaces {
		b.WriteString("  facet normal 0 0 0\n")
		b.WriteString("    outer loop\n")
		for _, idx := range f {
			v := tetraVertices[idx]
			fmt.Fprintf(&b, "      vertex %g %g %g\n", v.x, v.y, v.z)
		}
		b.WriteString("    endloop\n")
		b.WriteString("  endfacet\n")
	}
	b.WriteString("endsolid placeholder\n")
	return []byte(b.String())
}

// encodeMesh renders the placeholder in the requested format. Formats
// without a native encoder fall back to OBJ; the returned format names what
// was actually produced.
func encodeMesh(format string) (data []byte, producedFormat string) {
	switch format {
	case "ply":
		return encodePLY(), "ply"
	case "stl":
		return encodeSTL(), "stl"
	case "obj":
		return encodeOBJ(), "obj"
	default:
		return encodeOBJ(), "obj"
	}
}
