// Package gltfexport writes ExtractSurfacePoints/ExtractSurfaceMesh output
// as glTF 2.0 documents, grounded on VoxelsPlace-VOPL's vopl2glb/voplpack2glb
// converters (same modeler.Write* + gltf.SaveBinary pipeline).
package gltfexport

import (
	"errors"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/soypat/geometry/ms3"
)

// MeshOptions holds WriteMesh's optional settings: the glTF mesh name
// (default "TSDFSurface"). Which attributes are emitted is decided by
// whether the normals/colors slices passed to WriteMesh are nil.
type MeshOptions struct {
	Name string
}

// WriteMesh saves a triangle mesh (vertices/normals/colors/triangles, as
// produced by kernel.ExtractSurfaceMeshMono/Color) to path as a binary glTF
// (.glb). Normals and colors are omitted from the document when nil.
func WriteMesh(path string, vertices, normals, colors []ms3.Vec, triangles [][3]int32, opt MeshOptions) error {
	if len(vertices) == 0 {
		return errors.New("gltfexport: WriteMesh called with zero vertices")
	}
	if normals != nil && len(normals) != len(vertices) {
		return errors.New("gltfexport: normals length must match vertices length")
	}
	if colors != nil && len(colors) != len(vertices) {
		return errors.New("gltfexport: colors length must match vertices length")
	}

	positions := make([][3]float32, len(vertices))
	for i, v := range vertices {
		positions[i] = [3]float32{v.X, v.Y, v.Z}
	}

	indices := make([]uint32, 0, 3*len(triangles))
	for _, tri := range triangles {
		indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "tsdfusion/io/gltfexport"

	attrs := gltf.PrimitiveAttributes{
		gltf.POSITION: modeler.WritePosition(doc, positions),
	}
	if normals != nil {
		norms := make([][3]float32, len(normals))
		for i, n := range normals {
			norms[i] = [3]float32{n.X, n.Y, n.Z}
		}
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, norms)
	}
	if colors != nil {
		cols := make([][4]float32, len(colors))
		for i, c := range colors {
			cols[i] = [4]float32{c.X, c.Y, c.Z, 1}
		}
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, cols)
	}

	prim := &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
	}

	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float64{1, 1, 1, 1},
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}
	prim.Material = gltf.Index(0)

	name := opt.Name
	if name == "" {
		name = "TSDFSurface"
	}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return gltf.SaveBinary(doc, path)
}

// WritePoints saves a point cloud (vertices/normals/colors, as produced by
// kernel.ExtractSurfacePointsMono/Color) to path as a binary glTF (.glb),
// using the POINTS primitive mode instead of indexed triangles.
func WritePoints(path string, points, normals, colors []ms3.Vec) error {
	if len(points) == 0 {
		return errors.New("gltfexport: WritePoints called with zero points")
	}
	if normals != nil && len(normals) != len(points) {
		return errors.New("gltfexport: normals length must match points length")
	}
	if colors != nil && len(colors) != len(points) {
		return errors.New("gltfexport: colors length must match points length")
	}

	positions := make([][3]float32, len(points))
	for i, v := range points {
		positions[i] = [3]float32{v.X, v.Y, v.Z}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "tsdfusion/io/gltfexport"

	attrs := gltf.PrimitiveAttributes{
		gltf.POSITION: modeler.WritePosition(doc, positions),
	}
	if normals != nil {
		norms := make([][3]float32, len(normals))
		for i, n := range normals {
			norms[i] = [3]float32{n.X, n.Y, n.Z}
		}
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, norms)
	}
	if colors != nil {
		cols := make([][4]float32, len(colors))
		for i, c := range colors {
			cols[i] = [4]float32{c.X, c.Y, c.Z, 1}
		}
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, cols)
	}

	prim := &gltf.Primitive{Attributes: attrs, Mode: gltf.PrimitivePoints}
	doc.Meshes = []*gltf.Mesh{{Name: "TSDFPointCloud", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return gltf.SaveBinary(doc, path)
}
