// Package config loads engine settings from TOML or YAML.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"render-core/core"
	"render-core/shader"
)

type Config struct {
	Window   Window   `toml:"window" yaml:"window"`
	Renderer Renderer `toml:"renderer" yaml:"renderer"`
	Assets   Assets   `toml:"assets" yaml:"assets"`
	Log      Log      `toml:"log" yaml:"log"`
}

type Window struct {
	Width      int    `toml:"width" yaml:"width"`
	Height     int    `toml:"height" yaml:"height"`
	Title      string `toml:"title" yaml:"title"`
	Resizable  bool   `toml:"resizable" yaml:"resizable"`
	VSync      bool   `toml:"vsync" yaml:"vsync"`
	Fullscreen bool   `toml:"fullscreen" yaml:"fullscreen"`
}

// Colour is an RGBA quadruple as written in config files.
type Colour [4]float32

func (c Colour) Color() core.Color {
	return core.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}

type Renderer struct {
	ClearColour       Colour   `toml:"clear_colour" yaml:"clear_colour"`
	Ambient           Colour   `toml:"ambient" yaml:"ambient"`
	ShadowMapSize     int      `toml:"shadow_map_size" yaml:"shadow_map_size"`
	CubeShadowMapSize int      `toml:"cube_shadow_map_size" yaml:"cube_shadow_map_size"`
	MaxShadow2D       int      `toml:"max_shadow_2d" yaml:"max_shadow_2d"`
	MaxShadowCube     int      `toml:"max_shadow_cube" yaml:"max_shadow_cube"`
	PostProcess       []string `toml:"post_process" yaml:"post_process"`
	ShaderDir         string   `toml:"shader_dir" yaml:"shader_dir"`
	HotReload         bool     `toml:"hot_reload" yaml:"hot_reload"`
	ValidateUniforms  bool     `toml:"validate" yaml:"validate"`
	FrustumCulling    bool     `toml:"frustum_culling" yaml:"frustum_culling"`
	Exposure          float32  `toml:"exposure" yaml:"exposure"`
	FogDensity        float32  `toml:"fog_density" yaml:"fog_density"`
	FogColour         Colour   `toml:"fog_colour" yaml:"fog_colour"`
	BloomThreshold    float32  `toml:"bloom_threshold" yaml:"bloom_threshold"`
	BloomStrength     float32  `toml:"bloom_strength" yaml:"bloom_strength"`
	SSAORadius        float32  `toml:"ssao_radius" yaml:"ssao_radius"`
	SSAOBias          float32  `toml:"ssao_bias" yaml:"ssao_bias"`
}

type Assets struct {
	Model       string `toml:"model" yaml:"model"`
	TexturesDir string `toml:"textures_dir" yaml:"textures_dir"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
}

func Default() Config {
	return Config{
		Window: Window{
			Width:     1280,
			Height:    720,
			Title:     "Render Core",
			Resizable: true,
			VSync:     true,
		},
		Renderer: DefaultRenderer(),
		Log:      Log{Level: "info"},
	}
}

func DefaultRenderer() Renderer {
	return Renderer{
		ClearColour:       Colour{0, 0, 0, 1},
		Ambient:           Colour{0.1, 0.1, 0.1, 1},
		ShadowMapSize:     2048,
		CubeShadowMapSize: 1024,
		MaxShadow2D:       4,
		MaxShadowCube:     2,
		PostProcess:       []string{},
		FrustumCulling:    true,
		Exposure:          1,
		FogDensity:        0.02,
		FogColour:         Colour{0.6, 0.6, 0.65, 1},
		BloomThreshold:    1,
		BloomStrength:     0.3,
		SSAORadius:        0.5,
		SSAOBias:          0.025,
	}
}

// decoder is satisfied by both the toml and yaml decoders.
type decoder interface {
	Decode(v any) error
}

func decoderFor(path string) (func(io.Reader) decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return func(r io.Reader) decoder {
			d := toml.NewDecoder(r)
			d.DisallowUnknownFields()
			return d
		}, nil
	case ".yaml", ".yml":
		return func(r io.Reader) decoder {
			d := yaml.NewDecoder(r)
			d.KnownFields(true)
			return d
		}, nil
	}
	return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
}

// Load reads path over the defaults and validates the result. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	newDecoder, err := decoderFor(path)
	if err != nil {
		return cfg, err
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := newDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func powerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if err := c.Renderer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r Renderer) Validate() error {
	var errs []error
	if !powerOfTwo(r.ShadowMapSize) {
		errs = append(errs, fmt.Errorf("shadow_map_size %d is not a power of two", r.ShadowMapSize))
	}
	if !powerOfTwo(r.CubeShadowMapSize) {
		errs = append(errs, fmt.Errorf("cube_shadow_map_size %d is not a power of two", r.CubeShadowMapSize))
	}
	if r.MaxShadow2D < 0 || r.MaxShadowCube < 0 {
		errs = append(errs, fmt.Errorf("shadow pool sizes %d/%d must not be negative", r.MaxShadow2D, r.MaxShadowCube))
	}
	if r.Exposure <= 0 {
		errs = append(errs, fmt.Errorf("exposure %g must be positive", r.Exposure))
	}
	if r.FogDensity < 0 {
		errs = append(errs, fmt.Errorf("fog_density %g must not be negative", r.FogDensity))
	}
	if r.BloomThreshold < 0 || r.BloomStrength < 0 {
		errs = append(errs, fmt.Errorf("bloom threshold %g and strength %g must not be negative", r.BloomThreshold, r.BloomStrength))
	}
	if r.SSAORadius <= 0 || r.SSAOBias < 0 {
		errs = append(errs, fmt.Errorf("ssao_radius %g must be positive and ssao_bias %g not negative", r.SSAORadius, r.SSAOBias))
	}
	// Custom stages come from the shader directory, so names can only be
	// checked without one.
	if r.ShaderDir == "" {
		for _, name := range r.PostProcess {
			b, ok := shader.LookupBuiltin(name)
			if !ok || b.Pass != shader.PassPostProcess {
				errs = append(errs, fmt.Errorf("unknown post-process stage %q", name))
			}
		}
	}
	if r.HotReload && r.ShaderDir == "" {
		errs = append(errs, errors.New("hot_reload needs a shader_dir"))
	}
	return errors.Join(errs...)
}

var levels = []string{"debug", "info", "warn", "error"}

// SlogLevel maps the configured level name to a slog level. Empty means
// info.
func (l Log) SlogLevel() (slog.Level, error) {
	name := strings.ToLower(l.Level)
	if name == "" {
		return slog.LevelInfo, nil
	}
	if !slices.Contains(levels, name) {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return lvl, nil
}
