package main

import (
	"github.com/chewxy/math32"

	"render-core/core"
	"render-core/math"
	"render-core/renderer"
)

// dayPalette is the sky and light state at one key time of day.
type dayPalette struct {
	t          float32
	sky        core.Color
	fog        core.Color
	fogDensity float32
	sun        core.Color
	sunPower   float32
	ambient    core.Color
}

// palettes are ordered by t and wrap from the last back to the first.
var palettes = []dayPalette{
	{ // noon
		t:          0.00,
		sky:        core.Color{R: 0.58, G: 0.75, B: 0.95, A: 1},
		fog:        core.Color{R: 0.62, G: 0.78, B: 0.95, A: 1},
		fogDensity: 0.011,
		sun:        core.Color{R: 1.00, G: 0.98, B: 0.92, A: 1},
		sunPower:   1.20,
		ambient:    core.Color{R: 0.16, G: 0.18, B: 0.26, A: 1},
	},
	{ // golden hour
		t:          0.22,
		sky:        core.Color{R: 0.90, G: 0.52, B: 0.18, A: 1},
		fog:        core.Color{R: 0.85, G: 0.55, B: 0.25, A: 1},
		fogDensity: 0.018,
		sun:        core.Color{R: 1.00, G: 0.65, B: 0.25, A: 1},
		sunPower:   0.90,
		ambient:    core.Color{R: 0.10, G: 0.12, B: 0.20, A: 1},
	},
	{ // dusk
		t:          0.30,
		sky:        core.Color{R: 0.50, G: 0.22, B: 0.28, A: 1},
		fog:        core.Color{R: 0.35, G: 0.18, B: 0.22, A: 1},
		fogDensity: 0.020,
		sun:        core.Color{R: 0.70, G: 0.40, B: 0.55, A: 1},
		sunPower:   0.25,
		ambient:    core.Color{R: 0.06, G: 0.07, B: 0.14, A: 1},
	},
	{ // midnight, lit by the moon
		t:          0.50,
		sky:        core.Color{R: 0.04, G: 0.04, B: 0.08, A: 1},
		fog:        core.Color{R: 0.03, G: 0.03, B: 0.06, A: 1},
		fogDensity: 0.010,
		sun:        core.Color{R: 0.40, G: 0.45, B: 0.65, A: 1},
		sunPower:   0.12,
		ambient:    core.Color{R: 0.03, G: 0.04, B: 0.09, A: 1},
	},
	{ // pre-dawn
		t:          0.70,
		sky:        core.Color{R: 0.40, G: 0.18, B: 0.24, A: 1},
		fog:        core.Color{R: 0.30, G: 0.15, B: 0.20, A: 1},
		fogDensity: 0.020,
		sun:        core.Color{R: 0.75, G: 0.42, B: 0.60, A: 1},
		sunPower:   0.20,
		ambient:    core.Color{R: 0.06, G: 0.07, B: 0.14, A: 1},
	},
	{ // sunrise
		t:          0.78,
		sky:        core.Color{R: 0.88, G: 0.45, B: 0.22, A: 1},
		fog:        core.Color{R: 0.75, G: 0.40, B: 0.20, A: 1},
		fogDensity: 0.015,
		sun:        core.Color{R: 1.00, G: 0.60, B: 0.28, A: 1},
		sunPower:   0.70,
		ambient:    core.Color{R: 0.09, G: 0.10, B: 0.17, A: 1},
	},
}

// DayNight animates the sun. Time runs 0..1 from noon through midnight
// (0.5) and back.
type DayNight struct {
	Time   float32
	Period float32 // seconds per full day
	Active bool
}

func NewDayNight() *DayNight {
	return &DayNight{Period: 120, Active: true}
}

func (dn *DayNight) Update(dt float32) {
	if !dn.Active || dn.Period <= 0 {
		return
	}
	dn.Time += dt / dn.Period
	dn.Time -= math32.Floor(dn.Time)
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: 1,
	}
}

func samplePalette(t float32) dayPalette {
	i := len(palettes) - 1
	for j, p := range palettes {
		if p.t > t {
			break
		}
		i = j
	}
	a, b := palettes[i], palettes[(i+1)%len(palettes)]
	span := b.t - a.t
	if span <= 0 {
		span += 1
	}
	local := t - a.t
	if local < 0 {
		local += 1
	}
	f := local / span
	return dayPalette{
		t:          t,
		sky:        lerpColor(a.sky, b.sky, f),
		fog:        lerpColor(a.fog, b.fog, f),
		fogDensity: a.fogDensity + (b.fogDensity-a.fogDensity)*f,
		sun:        lerpColor(a.sun, b.sun, f),
		sunPower:   a.sunPower + (b.sunPower-a.sunPower)*f,
		ambient:    lerpColor(a.ambient, b.ambient, f),
	}
}

// sunDirection turns a full circle in the XY plane, tilted along Z. It
// points straight down at noon.
func (dn *DayNight) sunDirection() math.Vec3 {
	angle := dn.Time * 2 * math32.Pi
	return math.NewVec3(math32.Sin(angle), -math32.Cos(angle), 0.35).Normalize()
}

// Apply sets the sun, sky and atmosphere for the current time and returns
// the sun's world matrix.
func (dn *DayNight) Apply(r *renderer.Renderer, cam *renderer.Camera, sun *renderer.Light) math.Mat4 {
	p := samplePalette(dn.Time)
	sun.Colour = p.sun
	sun.Power = p.sunPower
	cam.Skybox.Colour = p.sky
	r.SetAtmosphere(p.ambient, p.fogDensity, p.fog)

	dir := dn.sunDirection()
	eye := dir.Mul(-50)
	world, _ := math.Mat4LookAt(eye, eye.Add(dir), math.Vec3Up).Inverse()
	return world
}
