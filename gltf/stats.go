package gltf

// Stats summarizes an asset's geometry load.
type Stats struct {
	Meshes     int
	Primitives int
	Vertices   int
	Triangles  int
	Animations int
	Skins      int
	Images     int

	// TrianglesPerMesh is indexed by mesh index.
	TrianglesPerMesh []int
}

// Stats counts meshes, primitives, vertices and triangles. Vertex counts
// come from POSITION accessors; triangle counts assume triangle-list mode
// (other modes contribute zero triangles).
func (a *Asset) Stats() Stats {
	s := Stats{
		Meshes:           len(a.Doc.Meshes),
		Animations:       len(a.Doc.Animations),
		Skins:            len(a.Doc.Skins),
		Images:           len(a.Doc.Images),
		TrianglesPerMesh: make([]int, len(a.Doc.Meshes)),
	}
	for mi := range a.Doc.Meshes {
		for pi := range a.Doc.Meshes[mi].Primitives {
			p := &a.Doc.Meshes[mi].Primitives[pi]
			s.Primitives++
			vertexCount := 0
			if pos, ok := p.Attributes[AttrPosition]; ok && pos >= 0 && pos < len(a.Doc.Accessors) {
				vertexCount = a.Doc.Accessors[pos].Count
			}
			s.Vertices += vertexCount
			if p.ModeOrDefault() != ModeTriangles {
				continue
			}
			indexCount := vertexCount
			if p.Indices != nil && *p.Indices >= 0 && *p.Indices < len(a.Doc.Accessors) {
				indexCount = a.Doc.Accessors[*p.Indices].Count
			}
			tris := indexCount / 3
			s.Triangles += tris
			s.TrianglesPerMesh[mi] += tris
		}
	}
	return s
}
