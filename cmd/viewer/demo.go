package main

import (
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"

	"render-core/config"
	"render-core/core"
	"render-core/math"
	"render-core/renderer"
	"render-core/resource"
	"render-core/scene"
	"render-core/shader"
)

// demo is the scene the viewer draws: a floor, a ring of cubes, spheres,
// a sun, an orbiting point light and a spot light.
type demo struct {
	camera renderer.Camera
	fly    scene.FlyCamera
	day    *DayNight

	sun   renderer.Light
	point renderer.Light
	spot  renderer.Light

	cubes   []math.Mat4
	spheres []math.Mat4
	model   []scene.Instance
	elapsed float32
}

func floorTexture(res *resource.Managers, assets config.Assets) error {
	if assets.TexturesDir != "" {
		data, err := scene.LoadImage(filepath.Join(assets.TexturesDir, "floor.png"))
		if err == nil {
			_, err = res.Textures.Make("floor", data)
			return err
		}
		core.Logger().Warn("floor texture not loaded, using a checker", "err", err)
	}
	_, err := res.Textures.Make("floor", resource.CheckerTexture(256,
		core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}, core.Color{R: 0.3, G: 0.3, B: 0.35, A: 1}))
	return err
}

func makeMaterials(res *resource.Managers) error {
	floor := resource.DefaultMaterial()
	floor.Textures = map[shader.TextureUnit]string{shader.UnitDiffuse: "floor"}
	floor.TextureScale = math.NewVec2(8, 8)

	chrome := resource.NewMaterial(core.Color{R: 0.7, G: 0.7, B: 0.75, A: 1})
	chrome.Specular = core.ColorWhite
	chrome.Gloss = 96

	glass := resource.NewMaterial(core.Color{R: 0.4, G: 0.7, B: 1, A: 0.35})
	glass.Shader = shader.NameForward
	glass.Path = resource.PathForwardTransparent
	glass.CastShadows = false

	ring := resource.NewMaterial(core.Color{R: 0.9, G: 0.75, B: 0.2, A: 1})
	ring.Shader = shader.NameForward
	ring.Path = resource.PathForwardOpaque

	for name, m := range map[string]resource.Material{
		"floor":  floor,
		"crate":  resource.NewMaterial(core.Color{R: 0.85, G: 0.45, B: 0.2, A: 1}),
		"chrome": chrome,
		"glass":  glass,
		"ring":   ring,
		"stone":  resource.NewMaterial(core.Color{R: 0.55, G: 0.5, B: 0.45, A: 1}),
	} {
		if _, err := res.Materials.Make(name, m); err != nil {
			return err
		}
	}
	return nil
}

func makeMeshes(res *resource.Managers) error {
	for _, m := range []struct {
		name, material string
		data           *core.MeshData
	}{
		{"floor", "floor", scene.Plane(40, 40, 8)},
		{"cube", "crate", scene.Cube(1)},
		{"sphere", "chrome", scene.Sphere(0.6, 32, 16)},
		{"bubble", "glass", scene.Sphere(0.8, 32, 16)},
		{"torus", "ring", scene.Torus(0.8, 0.25, 32, 16)},
		{"pyramid", "stone", scene.Pyramid(1.5, 1.5)},
		{"cone", "stone", scene.Cone(0.5, 1.2, 24)},
		{"cylinder", "stone", scene.Cylinder(0.4, 2, 24)},
	} {
		if _, err := res.Meshes.Make(m.name, m.data, m.material); err != nil {
			return err
		}
	}
	return nil
}

func newDemo(res *resource.Managers, assets config.Assets) (*demo, error) {
	if err := floorTexture(res, assets); err != nil {
		return nil, err
	}
	if err := makeMaterials(res); err != nil {
		return nil, err
	}
	if err := makeMeshes(res); err != nil {
		return nil, err
	}

	d := &demo{
		camera: renderer.NewCamera(),
		fly:    scene.FlyCamera{Position: math.NewVec3(0, 3, 12), Pitch: -0.2},
		day:    NewDayNight(),
		sun:    renderer.NewLight(renderer.LightDirectional),
		point:  renderer.NewLight(renderer.LightPoint),
		spot:   renderer.NewLight(renderer.LightSpot),
	}
	d.camera.Aspect = 0
	d.camera.Skybox.Enabled = true

	d.sun.CastShadows = true
	d.point.CastShadows = true
	d.point.Colour = core.Color{R: 1, G: 0.5, B: 0.3, A: 1}
	d.point.Power = 8
	d.point.ShadowDistance = 20
	d.spot.Colour = core.Color{R: 0.6, G: 0.8, B: 1, A: 1}
	d.spot.Power = 15
	d.spot.SetSpotAngles(15*math32.Pi/180, 25*math32.Pi/180)

	const n = 8
	for i := 0; i < n; i++ {
		a := float32(i) * 2 * math32.Pi / n
		p := math.NewVec3(math32.Cos(a)*6, 0.5, math32.Sin(a)*6)
		d.cubes = append(d.cubes, math.Mat4Translation(p))
		d.spheres = append(d.spheres, math.Mat4Translation(p.Add(math.NewVec3(0, 1.6, 0))))
	}

	if assets.Model != "" {
		importer := scene.ImportGLTF
		if strings.EqualFold(filepath.Ext(assets.Model), ".obj") {
			importer = scene.ImportOBJ
		}
		imp, err := importer(assets.Model, res, "model/")
		if err != nil {
			return nil, err
		}
		d.model = imp.Instances
	}
	return d, nil
}

func (d *demo) update(dt float32) {
	d.elapsed += dt
	d.day.Update(dt)
}

func lookAt(eye, target math.Vec3) math.Mat4 {
	world, _ := math.Mat4LookAt(eye, target, math.Vec3Up).Inverse()
	return world
}

func (d *demo) submit(r *renderer.Renderer) {
	r.SubmitCamera(d.camera, d.fly.World())

	sunWorld := d.day.Apply(r, &d.camera, &d.sun)
	r.SubmitLight(d.sun, sunWorld)

	t := d.elapsed * 0.6
	r.SubmitLight(d.point, math.Mat4Translation(math.NewVec3(math32.Cos(t)*3, 2.5, math32.Sin(t)*3)))
	r.SubmitLight(d.spot, lookAt(math.NewVec3(-8, 7, 8), math.NewVec3(-2, 0, 2)))

	spin := math.Mat4RotationY(d.elapsed * 0.5)
	r.SubmitMesh("floor", math.Mat4Identity(), nil)
	r.SubmitMesh("cube", math.Mat4Identity(), d.cubes)
	r.SubmitMesh("sphere", math.Mat4Identity(), d.spheres)
	r.SubmitMesh("torus", math.Mat4RotationX(math32.Pi/2).Mul(spin).Mul(math.Mat4Translation(math.NewVec3(0, 2.5, 0))), nil)
	r.SubmitMesh("pyramid", math.Mat4Translation(math.NewVec3(-3, 0, -2)), nil)
	r.SubmitMesh("cone", math.Mat4Translation(math.NewVec3(3, 0.6, -2)), nil)
	r.SubmitMesh("cylinder", math.Mat4Translation(math.NewVec3(0, 1, -4)), nil)
	r.SubmitMeshMaterial("cube", "stone", math.Mat4Scale(math.NewVec3(2, 0.2, 2)).Mul(math.Mat4Translation(math.NewVec3(-2, 0.1, 2))), nil)
	r.SubmitMesh("bubble", math.Mat4Translation(math.NewVec3(2, 1.2, 3)), nil)

	for _, inst := range d.model {
		r.SubmitMesh(inst.Mesh, inst.World, nil)
	}
}
