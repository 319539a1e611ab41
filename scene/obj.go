package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"render-core/core"
	"render-core/math"
	"render-core/resource"
	"render-core/shader"
)

type objGroup struct {
	material string
	data     core.MeshData
	index    map[[3]int]uint32
}

type objParser struct {
	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2

	groups   []*objGroup
	material string
	mtllibs  []string
}

func (p *objParser) group() *objGroup {
	if len(p.groups) == 0 || p.groups[len(p.groups)-1].material != p.material {
		p.split()
	}
	return p.groups[len(p.groups)-1]
}

// split starts a new group unless the current one is still empty.
func (p *objParser) split() {
	if n := len(p.groups); n > 0 && len(p.groups[n-1].data.Indices) == 0 {
		p.groups[n-1].material = p.material
		return
	}
	p.groups = append(p.groups, &objGroup{material: p.material, index: make(map[[3]int]uint32)})
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range out {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// objIndex resolves a 1-based or negative relative index into a list of n.
func objIndex(s string, n int) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	if i < 0 {
		i += n + 1
	}
	if i < 1 || i > n {
		return 0, false, fmt.Errorf("index %s out of range", s)
	}
	return i - 1, true, nil
}

func (p *objParser) vertex(g *objGroup, ref string) (uint32, error) {
	refs := strings.Split(ref, "/")
	// Relative indices are resolved before the lookup, so the key names
	// the same vertex wherever the face appears.
	key := [3]int{-1, -1, -1}
	lists := [3]int{len(p.positions), len(p.uvs), len(p.normals)}
	for i := 0; i < len(refs) && i < 3; i++ {
		idx, ok, err := objIndex(refs[i], lists[i])
		if err != nil {
			return 0, err
		}
		if ok {
			key[i] = idx
		}
	}
	if key[0] < 0 {
		return 0, fmt.Errorf("face vertex %q has no position", ref)
	}
	if idx, ok := g.index[key]; ok {
		return idx, nil
	}

	v := core.Vertex{Position: p.positions[key[0]], Color: core.ColorWhite}
	if key[1] >= 0 {
		v.UV = p.uvs[key[1]]
	}
	if key[2] >= 0 {
		v.Normal = p.normals[key[2]]
	}
	idx := uint32(len(g.data.Vertices))
	g.data.Vertices = append(g.data.Vertices, v)
	g.index[key] = idx
	return idx, nil
}

func (p *objParser) line(fields []string) error {
	switch fields[0] {
	case "v", "vn":
		f, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		if fields[0] == "v" {
			p.positions = append(p.positions, math.NewVec3(f[0], f[1], f[2]))
		} else {
			p.normals = append(p.normals, math.NewVec3(f[0], f[1], f[2]))
		}
	case "vt":
		f, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.uvs = append(p.uvs, math.NewVec2(f[0], f[1]))
	case "f":
		if len(fields) < 4 {
			return fmt.Errorf("face with %d vertices", len(fields)-1)
		}
		g := p.group()
		face := make([]uint32, len(fields)-1)
		for i, ref := range fields[1:] {
			idx, err := p.vertex(g, ref)
			if err != nil {
				return err
			}
			face[i] = idx
		}
		// Fan triangulation.
		for i := 2; i < len(face); i++ {
			g.data.Indices = append(g.data.Indices, face[0], face[i-1], face[i])
		}
	case "o", "g":
		p.split()
	case "usemtl":
		if len(fields) > 1 {
			p.material = fields[1]
		}
	case "mtllib":
		p.mtllibs = append(p.mtllibs, fields[1:]...)
	}
	return nil
}

func parseOBJ(r io.Reader) (*objParser, error) {
	p := &objParser{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := p.line(fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	return p, sc.Err()
}

// smoothNormals fills vertices that came without a normal from the faces
// around them.
func smoothNormals(data *core.MeshData) {
	missing := make([]bool, len(data.Vertices))
	found := false
	for i, v := range data.Vertices {
		if v.Normal.LengthSqr() == 0 {
			missing[i], found = true, true
		}
	}
	if !found {
		return
	}
	for i := 0; i+2 < len(data.Indices); i += 3 {
		tri := data.Indices[i : i+3]
		p0 := data.Vertices[tri[0]].Position
		face := data.Vertices[tri[1]].Position.Sub(p0).Cross(data.Vertices[tri[2]].Position.Sub(p0))
		for _, idx := range tri {
			if missing[idx] {
				data.Vertices[idx].Normal = data.Vertices[idx].Normal.Add(face)
			}
		}
	}
	for i := range data.Vertices {
		if !missing[i] {
			continue
		}
		n := data.Vertices[i].Normal
		if n.LengthSqr() == 0 {
			n = math.Vec3Up
		}
		data.Vertices[i].Normal = n.Normalize()
	}
}

type mtlParser struct {
	dir       string
	materials map[string]*resource.Material
	textures  map[string]string
	current   *resource.Material
}

func (m *mtlParser) line(fields []string) error {
	if fields[0] == "newmtl" {
		if len(fields) < 2 {
			return errors.New("newmtl without a name")
		}
		mat := resource.DefaultMaterial()
		mat.Textures = make(map[shader.TextureUnit]string)
		m.materials[fields[1]] = &mat
		m.current = &mat
		return nil
	}
	mat := m.current
	if mat == nil {
		return nil
	}
	switch fields[0] {
	case "Kd", "Ks":
		f, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		c := core.Color{R: f[0], G: f[1], B: f[2], A: 1}
		if fields[0] == "Kd" {
			c.A = mat.Diffuse.A
			mat.Diffuse = c
		} else {
			mat.Specular = c
		}
	case "Ns":
		f, err := parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		mat.Gloss = max(f[0], 1)
	case "d", "Tr":
		f, err := parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		alpha := f[0]
		if fields[0] == "Tr" {
			alpha = 1 - alpha
		}
		mat.Diffuse.A = alpha
		if alpha < 1 {
			mat.Path = resource.PathForwardTransparent
			mat.Shader = shader.NameForward
			mat.CastShadows = false
		}
	case "map_Kd", "map_Bump", "bump", "map_Ks":
		if len(fields) < 2 {
			return nil
		}
		units := map[string]shader.TextureUnit{
			"map_Kd": shader.UnitDiffuse, "map_Bump": shader.UnitNormal,
			"bump": shader.UnitNormal, "map_Ks": shader.UnitSpecular,
		}
		// The file name is the last field; options before it are ignored.
		m.textures[fields[len(fields)-1]] = ""
		mat.Textures[units[fields[0]]] = fields[len(fields)-1]
	}
	return nil
}

func parseMTL(path string) (*mtlParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &mtlParser{
		dir:       filepath.Dir(path),
		materials: make(map[string]*resource.Material),
		textures:  make(map[string]string),
	}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := m.line(fields); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, n, err)
		}
	}
	return m, sc.Err()
}

// ImportOBJ loads a Wavefront .obj file and the .mtl libraries it names
// into res, one mesh per group and material. Names start with prefix.
// Missing material libraries and textures are logged and skipped.
func ImportOBJ(path string, res *resource.Managers, prefix string) (*Import, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	p, err := parseOBJ(bufio.NewReader(f))
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("obj %s: %w", path, err)
	}

	out := &Import{}
	log := core.Logger()
	dir := filepath.Dir(path)
	materials := make(map[string]string)
	for _, lib := range p.mtllibs {
		m, err := parseMTL(filepath.Join(dir, lib))
		if err != nil {
			log.Warn("obj material library skipped", "path", path, "mtllib", lib, "err", err)
			continue
		}
		for file := range m.textures {
			data, err := LoadImage(filepath.Join(m.dir, filepath.FromSlash(file)))
			if err == nil {
				name := prefix + "texture." + file
				if _, err = res.Textures.Make(name, data); err == nil {
					m.textures[file] = name
					out.Textures = append(out.Textures, name)
					continue
				}
			}
			log.Warn("obj texture skipped", "path", path, "texture", file, "err", err)
		}
		for key, mat := range m.materials {
			for unit, file := range mat.Textures {
				if m.textures[file] == "" {
					delete(mat.Textures, unit)
				} else {
					mat.Textures[unit] = m.textures[file]
				}
			}
			name := prefix + "material." + key
			if _, err := res.Materials.Make(name, *mat); err != nil {
				return out, fmt.Errorf("obj %s: %w", path, err)
			}
			materials[key] = name
			out.Materials = append(out.Materials, name)
		}
	}

	for i, g := range p.groups {
		if len(g.data.Indices) == 0 {
			continue
		}
		material, ok := materials[g.material]
		if !ok {
			material = prefix + "material.default"
			if !res.Materials.Has(material) {
				if _, err := res.Materials.Make(material, resource.DefaultMaterial()); err != nil {
					return out, fmt.Errorf("obj %s: %w", path, err)
				}
				out.Materials = append(out.Materials, material)
			}
		}
		smoothNormals(&g.data)
		ComputeTangents(&g.data)
		name := fmt.Sprintf("%smesh.%d", prefix, i)
		if _, err := res.Meshes.Make(name, &g.data, material); err != nil {
			return out, fmt.Errorf("obj %s: %w", path, err)
		}
		out.Meshes = append(out.Meshes, name)
		out.Instances = append(out.Instances, Instance{Mesh: name, World: math.Mat4Identity()})
	}
	if len(out.Meshes) == 0 {
		return out, fmt.Errorf("obj %s: no faces", path)
	}
	core.Logger().Info("obj imported", "path", path, "meshes", len(out.Meshes), "materials", len(out.Materials))
	return out, nil
}
