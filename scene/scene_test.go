package scene_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"render-core/core"
	"render-core/internal/gpu/gputest"
	"render-core/math"
	"render-core/resource"
	"render-core/scene"
	"render-core/shader"
)

func TestPrimitivesAreWoundOutward(t *testing.T) {
	cases := map[string]*core.MeshData{
		"cube":     scene.Cube(2),
		"quad":     scene.Quad(2, 1),
		"plane":    scene.Plane(4, 4, 3),
		"sphere":   scene.Sphere(1, 12, 8),
		"cylinder": scene.Cylinder(1, 2, 10),
		"cone":     scene.Cone(1, 2, 10),
		"torus":    scene.Torus(2, 0.5, 12, 8),
		"pyramid":  scene.Pyramid(2, 1),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, data.Vertices)
			require.Zero(t, len(data.Indices)%3)
			for _, i := range data.Indices {
				require.Less(t, int(i), len(data.Vertices))
			}
			for i := 0; i < len(data.Indices); i += 3 {
				v0 := data.Vertices[data.Indices[i]]
				v1 := data.Vertices[data.Indices[i+1]]
				v2 := data.Vertices[data.Indices[i+2]]
				face := v1.Position.Sub(v0.Position).Cross(v2.Position.Sub(v0.Position))
				if face.LengthSqr() < 1e-10 {
					continue
				}
				normals := v0.Normal.Add(v1.Normal).Add(v2.Normal)
				assert.Greater(t, face.Dot(normals), float32(0), "triangle %d", i/3)
			}
			for i, v := range data.Vertices {
				assert.InDelta(t, 1, v.Normal.Length(), 1e-4, "normal %d", i)
				assert.InDelta(t, 1, v.Tangent.Length(), 1e-4, "tangent %d", i)
				assert.InDelta(t, 0, v.Tangent.Dot(v.Normal), 1e-4, "tangent %d", i)
			}
		})
	}
}

func TestPrimitiveBounds(t *testing.T) {
	min, max := scene.Cube(2).Bounds()
	assert.Equal(t, math.NewVec3(-1, -1, -1), min)
	assert.Equal(t, math.NewVec3(1, 1, 1), max)

	min, max = scene.Plane(4, 6, 1).Bounds()
	assert.Equal(t, math.NewVec3(-2, 0, -3), min)
	assert.Equal(t, math.NewVec3(2, 0, 3), max)

	min, max = scene.Pyramid(2, 3).Bounds()
	assert.Equal(t, float32(0), min.Y)
	assert.Equal(t, float32(3), max.Y)

	min, max = scene.Sphere(2, 16, 8).Bounds()
	assert.InDelta(t, -2, min.Y, 1e-5)
	assert.InDelta(t, 2, max.Y, 1e-5)
}

func TestComputeTangentsFollowUV(t *testing.T) {
	data := scene.Quad(2, 2)
	for _, v := range data.Vertices {
		assert.InDelta(t, 1, v.Tangent.X, 1e-5)
		assert.InDelta(t, 1, v.Bitangent.Y, 1e-5)
	}

	// No UV area: the tangent is still perpendicular to the normal.
	flat := &core.MeshData{Vertices: []core.Vertex{
		{Position: math.NewVec3(0, 0, 0), Normal: math.Vec3Right},
		{Position: math.NewVec3(0, 1, 0), Normal: math.Vec3Right},
		{Position: math.NewVec3(0, 0, 1), Normal: math.Vec3Right},
	}}
	scene.ComputeTangents(flat)
	for _, v := range flat.Vertices {
		assert.InDelta(t, 1, v.Tangent.Length(), 1e-5)
		assert.InDelta(t, 0, v.Tangent.Dot(v.Normal), 1e-5)
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:], []byte{128, 128, 128, 255})
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(2, 1, color.NRGBA{B: 255, A: 255})
	return img
}

func TestDecodeImage(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))
	require.NoError(t, bmp.Encode(&bmpBuf, testImage()))

	for name, buf := range map[string]*bytes.Buffer{"png": &pngBuf, "bmp": &bmpBuf} {
		t.Run(name, func(t *testing.T) {
			data, err := scene.DecodeImage(buf)
			require.NoError(t, err)
			assert.Equal(t, 3, data.Width)
			assert.Equal(t, 2, data.Height)
			require.Len(t, data.Pixels, 3*2*4)
			assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[0:4])
			assert.Equal(t, []byte{0, 0, 255, 255}, data.Pixels[20:24])
		})
	}

	_, err := scene.DecodeImage(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testImage()))
	require.NoError(t, f.Close())

	data, err := scene.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, data.Width)

	_, err = scene.LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFlyCamera(t *testing.T) {
	cam := scene.FlyCamera{Position: math.NewVec3(1, 2, 3)}
	fwd := cam.Forward()
	assert.InDelta(t, -1, fwd.Z, 1e-6)

	world := cam.World()
	assert.Equal(t, math.NewVec3(1, 2, 3), world.Row(3))
	assert.InDelta(t, 0, world.Row(2).Negate().Distance(fwd), 1e-6)

	cam.Turn(math32.Pi/2, 0)
	fwd = cam.Forward()
	assert.InDelta(t, -1, fwd.X, 1e-5)
	assert.InDelta(t, 0, fwd.Z, 1e-5)

	cam.Turn(0, 10)
	assert.Equal(t, float32(1.5), cam.Pitch)
	cam.Turn(0, -20)
	assert.Equal(t, float32(-1.5), cam.Pitch)

	cam = scene.FlyCamera{}
	cam.Move(2, 0, 1)
	assert.InDelta(t, 0, cam.Position.Distance(math.NewVec3(0, 1, -2)), 1e-6)
}

// writeGLTF writes a two-node glTF with an embedded triangle buffer.
func writeGLTF(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []uint16{0, 1, 2, 0}))
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"translation": [1, 2, 3], "mesh": 0, "children": [1]},
    {"scale": [2, 2, 2], "mesh": 1}
  ],
  "meshes": [
    {"primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]},
    {"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}
  ],
  "materials": [
    {"pbrMetallicRoughness": {"baseColorFactor": [1, 0, 0, 1], "baseColorTexture": {"index": 0}, "metallicFactor": 0, "roughnessFactor": 1}},
    {"alphaMode": "BLEND"}
  ],
  "textures": [{"source": 0}],
  "images": [{"uri": "missing.png"}],
  "buffers": [{"byteLength": %d, "uri": %q}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36, "target": 34962},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6, "target": 34963}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ]
}`, buf.Len(), uri)

	path := filepath.Join(t.TempDir(), "scene.gltf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestImportGLTF(t *testing.T) {
	res := resource.NewManagers(gputest.New(), shader.Options{}, "")
	t.Cleanup(res.Release)
	path := writeGLTF(t)

	imp, err := scene.ImportGLTF(path, res, "m/")
	require.NoError(t, err)
	assert.Equal(t, []string{"m/mesh.0.0", "m/mesh.1.0"}, imp.Meshes)
	assert.Equal(t, []string{"m/material.0", "m/material.1", "m/material.default"}, imp.Materials)
	assert.Empty(t, imp.Textures, "the missing image is skipped")

	red, err := res.Materials.Lookup("m/material.0")
	require.NoError(t, err)
	assert.Equal(t, core.ColorRed, red.Diffuse)
	assert.Equal(t, resource.PathDeferred, red.Path)
	assert.NotContains(t, red.Textures, shader.UnitDiffuse)
	assert.InDelta(t, 1, red.Gloss, 1e-6)

	blend, err := res.Materials.Lookup("m/material.1")
	require.NoError(t, err)
	assert.Equal(t, resource.PathForwardTransparent, blend.Path)
	assert.Equal(t, shader.NameForward, blend.Shader)

	mesh, err := res.Meshes.Lookup("m/mesh.1.0")
	require.NoError(t, err)
	assert.Equal(t, "m/material.default", mesh.Material)
	assert.Equal(t, math.NewVec3(1, 1, 0), mesh.Max)

	require.Len(t, imp.Instances, 2)
	assert.Equal(t, "m/mesh.0.0", imp.Instances[0].Mesh)
	assert.Equal(t, math.NewVec3(1, 2, 3), imp.Instances[0].World.Row(3))
	child := imp.Instances[1]
	assert.Equal(t, "m/mesh.1.0", child.Mesh)
	assert.Equal(t, math.NewVec3(1, 2, 3), child.World.Row(3))
	assert.Equal(t, math.NewVec3(2, 0, 0), child.World.Row(0))

	_, err = scene.ImportGLTF(path, res, "m/")
	assert.ErrorIs(t, err, resource.ErrAlreadyExists)

	_, err = scene.ImportGLTF(filepath.Join(t.TempDir(), "none.gltf"), res, "x/")
	assert.Error(t, err)
}

func TestImportOBJ(t *testing.T) {
	dir := t.TempDir()
	tex, err := os.Create(filepath.Join(dir, "red.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(tex, testImage()))
	require.NoError(t, tex.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "box.mtl"), []byte(`
newmtl red
Kd 1 0 0
Ns 50
map_Kd red.png
newmtl ghost
Kd 1 1 1
d 0.5
map_Kd missing.png
`), 0o644))
	path := filepath.Join(dir, "box.obj")
	require.NoError(t, os.WriteFile(path, []byte(`# two groups
mtllib box.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
g front
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
g back
usemtl ghost
f -1 -2 -3
g plain
usemtl none
f 1 2 3
`), 0o644))

	res := resource.NewManagers(gputest.New(), shader.Options{}, "")
	t.Cleanup(res.Release)
	imp, err := scene.ImportOBJ(path, res, "box/")
	require.NoError(t, err)
	require.Len(t, imp.Meshes, 3)
	assert.Equal(t, []string{"box/texture.red.png"}, imp.Textures)
	assert.ElementsMatch(t, []string{"box/material.red", "box/material.ghost", "box/material.default"}, imp.Materials)
	require.Len(t, imp.Instances, 3)
	assert.Equal(t, math.Mat4Identity(), imp.Instances[0].World)

	red, err := res.Materials.Lookup("box/material.red")
	require.NoError(t, err)
	assert.Equal(t, core.ColorRed, red.Diffuse)
	assert.Equal(t, float32(50), red.Gloss)
	assert.Equal(t, "box/texture.red.png", red.Textures[shader.UnitDiffuse])

	ghost, err := res.Materials.Lookup("box/material.ghost")
	require.NoError(t, err)
	assert.Equal(t, resource.PathForwardTransparent, ghost.Path)
	assert.InDelta(t, 0.5, ghost.Diffuse.A, 1e-6)
	assert.Empty(t, ghost.Textures, "the missing texture is dropped")

	quad, err := res.Meshes.Lookup(imp.Meshes[0])
	require.NoError(t, err)
	assert.Equal(t, "box/material.red", quad.Material)
	assert.Equal(t, math.NewVec3(1, 1, 0), quad.Max)

	plain, err := res.Meshes.Lookup(imp.Meshes[2])
	require.NoError(t, err)
	assert.Equal(t, "box/material.default", plain.Material)

	bad := filepath.Join(dir, "bad.obj")
	require.NoError(t, os.WriteFile(bad, []byte("v 0 0 0\nf 1 2 3\n"), 0o644))
	_, err = scene.ImportOBJ(bad, res, "bad/")
	assert.ErrorContains(t, err, "line 2")
}

func TestImportOBJRelativeIndices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.obj")
	require.NoError(t, os.WriteFile(path, []byte(`v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
v 10 0 0
v 11 0 0
v 10 1 0
f -3 -2 -1
`), 0o644))

	res := resource.NewManagers(gputest.New(), shader.Options{}, "")
	t.Cleanup(res.Release)
	imp, err := scene.ImportOBJ(path, res, "two/")
	require.NoError(t, err)
	require.Len(t, imp.Meshes, 1)

	mesh, err := res.Meshes.Lookup(imp.Meshes[0])
	require.NoError(t, err)
	assert.Equal(t, math.NewVec3(0, 0, 0), mesh.Min)
	assert.Equal(t, math.NewVec3(11, 1, 0), mesh.Max)
}
