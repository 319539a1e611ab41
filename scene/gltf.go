package scene

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"render-core/core"
	"render-core/math"
	"render-core/resource"
	"render-core/shader"
)

// Instance places one imported mesh in the world.
type Instance struct {
	Mesh  string
	World math.Mat4
}

// Import lists what ImportGLTF registered, by resource name.
type Import struct {
	Textures  []string
	Materials []string
	Meshes    []string
	Instances []Instance
}

type importer struct {
	doc    *gltf.Document
	dir    string
	res    *resource.Managers
	prefix string
	out    *Import

	images    map[int]string
	materials []string
	fallback  string
	meshes    [][]string
}

// ImportGLTF loads a .gltf or .glb file into res. Every resource name starts
// with prefix. Images that fail to decode and primitives that fail to read
// are logged and skipped; a name collision aborts the import, leaving what
// was already registered in place.
//
// PBR metallic-roughness is approximated: roughness maps to gloss and
// metallic to specular intensity. Blended materials draw in the
// transparent forward path.
func ImportGLTF(path string, res *resource.Managers, prefix string) (*Import, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf %s: %w", path, err)
	}
	im := &importer{
		doc:    doc,
		dir:    filepath.Dir(path),
		res:    res,
		prefix: prefix,
		out:    &Import{},
		images: make(map[int]string),
	}
	if err := im.run(); err != nil {
		return im.out, fmt.Errorf("gltf %s: %w", path, err)
	}
	core.Logger().Info("gltf imported", "path", path, "meshes", len(im.out.Meshes),
		"materials", len(im.out.Materials), "textures", len(im.out.Textures),
		"instances", len(im.out.Instances))
	return im.out, nil
}

func (im *importer) name(kind string, idx ...int) string {
	n := im.prefix + kind
	for _, i := range idx {
		n += fmt.Sprintf(".%d", i)
	}
	return n
}

func (im *importer) run() error {
	if err := im.loadMaterials(); err != nil {
		return err
	}
	if err := im.loadMeshes(); err != nil {
		return err
	}
	im.loadNodes()
	return nil
}

// texture registers the image behind glTF texture index idx once and
// returns its name, or "" when it could not be loaded.
func (im *importer) texture(idx int) string {
	if idx < 0 || idx >= len(im.doc.Textures) || im.doc.Textures[idx].Source == nil {
		return ""
	}
	src := *im.doc.Textures[idx].Source
	if name, ok := im.images[src]; ok {
		return name
	}
	name := ""
	defer func() { im.images[src] = name }()

	data, err := im.image(src)
	if err != nil {
		core.Logger().Warn("gltf image skipped", "image", src, "err", err)
		return ""
	}
	n := im.name("image", src)
	if _, err := im.res.Textures.Make(n, data); err != nil {
		core.Logger().Warn("gltf image skipped", "image", src, "err", err)
		return ""
	}
	im.out.Textures = append(im.out.Textures, n)
	name = n
	return name
}

func (im *importer) image(src int) (resource.TextureData, error) {
	if src >= len(im.doc.Images) {
		return resource.TextureData{}, fmt.Errorf("image %d out of range", src)
	}
	img := im.doc.Images[src]
	switch {
	case img.BufferView != nil:
		raw, err := modeler.ReadBufferView(im.doc, im.doc.BufferViews[*img.BufferView])
		if err != nil {
			return resource.TextureData{}, err
		}
		return DecodeImage(bytes.NewReader(raw))
	case img.IsEmbeddedResource():
		raw, err := img.MarshalData()
		if err != nil {
			return resource.TextureData{}, err
		}
		return DecodeImage(bytes.NewReader(raw))
	case img.URI != "":
		return LoadImage(filepath.Join(im.dir, filepath.FromSlash(img.URI)))
	}
	return resource.TextureData{}, errors.New("image has no data")
}

func (im *importer) loadMaterials() error {
	im.materials = make([]string, len(im.doc.Materials))
	for i, gm := range im.doc.Materials {
		mat := resource.DefaultMaterial()
		mat.Textures = make(map[shader.TextureUnit]string)

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.Diffuse = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			if pbr.BaseColorTexture != nil {
				if tex := im.texture(pbr.BaseColorTexture.Index); tex != "" {
					mat.Textures[shader.UnitDiffuse] = tex
				}
			}
			rough := float32(pbr.RoughnessFactorOrDefault())
			metal := float32(pbr.MetallicFactorOrDefault())
			mat.Gloss = (1-rough)*(1-rough)*128 + 1
			s := 0.04 + metal*0.66
			mat.Specular = core.Color{R: s, G: s, B: s, A: 1}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			if tex := im.texture(*gm.NormalTexture.Index); tex != "" {
				mat.Textures[shader.UnitNormal] = tex
			}
		}
		if gm.AlphaMode == gltf.AlphaBlend {
			mat.Path = resource.PathForwardTransparent
			mat.Shader = shader.NameForward
			mat.CastShadows = false
		}

		name := im.name("material", i)
		if _, err := im.res.Materials.Make(name, mat); err != nil {
			return err
		}
		im.materials[i] = name
		im.out.Materials = append(im.out.Materials, name)
	}
	return nil
}

// defaultMaterial is registered the first time a primitive has no material.
func (im *importer) defaultMaterial() (string, error) {
	if im.fallback != "" {
		return im.fallback, nil
	}
	name := im.name("material.default")
	if _, err := im.res.Materials.Make(name, resource.DefaultMaterial()); err != nil {
		return "", err
	}
	im.fallback = name
	im.out.Materials = append(im.out.Materials, name)
	return name, nil
}

func (im *importer) loadMeshes() error {
	im.meshes = make([][]string, len(im.doc.Meshes))
	for mi, gm := range im.doc.Meshes {
		for pi, prim := range gm.Primitives {
			data, err := im.primitive(prim)
			if err != nil {
				core.Logger().Warn("gltf primitive skipped", "mesh", mi, "primitive", pi, "err", err)
				continue
			}
			var material string
			if prim.Material != nil && *prim.Material < len(im.materials) {
				material = im.materials[*prim.Material]
			} else if material, err = im.defaultMaterial(); err != nil {
				return err
			}
			name := im.name("mesh", mi, pi)
			if _, err := im.res.Meshes.Make(name, data, material); err != nil {
				return err
			}
			im.meshes[mi] = append(im.meshes[mi], name)
			im.out.Meshes = append(im.out.Meshes, name)
		}
	}
	return nil
}

func (im *importer) primitive(prim *gltf.Primitive) (*core.MeshData, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("unsupported mode %v", prim.Mode)
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(im.doc, im.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(im.doc, im.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(im.doc, im.doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("texcoords: %w", err)
		}
	}

	data := &core.MeshData{Vertices: make([]core.Vertex, len(positions))}
	for i, p := range positions {
		v := core.Vertex{
			Position: math.NewVec3(p[0], p[1], p[2]),
			Normal:   math.Vec3Up,
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			v.Normal = math.NewVec3(normals[i][0], normals[i][1], normals[i][2])
		}
		if i < len(uvs) {
			v.UV = math.NewVec2(uvs[i][0], uvs[i][1])
		}
		data.Vertices[i] = v
	}
	if prim.Indices != nil {
		if data.Indices, err = modeler.ReadIndices(im.doc, im.doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}
	ComputeTangents(data)
	return data, nil
}

func localMatrix(n *gltf.Node) math.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out math.Mat4
		// glTF is column-major for column vectors, which is row-major here.
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				out[r][c] = float32(m[r*4+c])
			}
		}
		return out
	}
	t, r, s := n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault()
	return math.Mat4TRS(
		math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2])),
		math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])},
		math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2])),
	)
}

func (im *importer) roots() []int {
	doc := im.doc
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func (im *importer) loadNodes() {
	seen := make([]bool, len(im.doc.Nodes))
	var walk func(idx int, parent math.Mat4)
	walk = func(idx int, parent math.Mat4) {
		if idx < 0 || idx >= len(im.doc.Nodes) || seen[idx] {
			return
		}
		seen[idx] = true
		n := im.doc.Nodes[idx]
		world := localMatrix(n).Mul(parent)
		if n.Mesh != nil && *n.Mesh < len(im.meshes) {
			for _, mesh := range im.meshes[*n.Mesh] {
				im.out.Instances = append(im.out.Instances, Instance{Mesh: mesh, World: world})
			}
		}
		for _, c := range n.Children {
			walk(c, world)
		}
	}
	for _, r := range im.roots() {
		walk(r, math.Mat4Identity())
	}
}
