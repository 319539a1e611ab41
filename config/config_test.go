package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/config"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2048, cfg.Renderer.ShadowMapSize)
	assert.Equal(t, 1024, cfg.Renderer.CubeShadowMapSize)
	assert.Equal(t, 4, cfg.Renderer.MaxShadow2D)
	assert.Equal(t, 2, cfg.Renderer.MaxShadowCube)
	assert.Equal(t, config.Colour{0, 0, 0, 1}, cfg.Renderer.ClearColour)
	assert.Empty(t, cfg.Renderer.PostProcess)
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "engine.toml", `
[window]
width = 800
height = 600
title = "test"

[renderer]
clear_colour = [0.2, 0.3, 0.4, 1.0]
shadow_map_size = 512
post_process = ["tonemap", "fog"]
bloom_strength = 0.5

[log]
level = "debug"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, "test", cfg.Window.Title)
	assert.Equal(t, 512, cfg.Renderer.ShadowMapSize)
	assert.Equal(t, 1024, cfg.Renderer.CubeShadowMapSize, "unset keys keep defaults")
	assert.Equal(t, []string{"tonemap", "fog"}, cfg.Renderer.PostProcess)
	assert.InDelta(t, 0.5, cfg.Renderer.BloomStrength, 1e-6)
	assert.InDelta(t, 1, cfg.Renderer.BloomThreshold, 1e-6, "unset keys keep defaults")
	assert.InDelta(t, 0.3, cfg.Renderer.ClearColour.Color().G, 1e-6)

	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "engine.yml", `
window:
  width: 640
  height: 480
renderer:
  ambient: [0.5, 0.5, 0.5, 1]
  max_shadow_cube: 0
  shader_dir: shaders
  hot_reload: true
  post_process: [vignette]
assets:
  model: scene.gltf
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, config.Colour{0.5, 0.5, 0.5, 1}, cfg.Renderer.Ambient)
	assert.Zero(t, cfg.Renderer.MaxShadowCube)
	assert.Equal(t, "scene.gltf", cfg.Assets.Model)
	assert.Equal(t, []string{"vignette"}, cfg.Renderer.PostProcess)
}

func TestLoadEmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := config.Load(write(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(write(t, "engine.json", "{}"))
	assert.ErrorContains(t, err, "unsupported format")

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(write(t, "typo.toml", "[renderer]\nshadow_size = 10\n"))
	assert.Error(t, err)

	_, err = config.Load(write(t, "bad.toml", "[renderer]\nshadow_map_size = 1000\n"))
	assert.ErrorContains(t, err, "power of two")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		want   string
	}{
		{"window", func(c *config.Config) { c.Window.Width = 0 }, "window size"},
		{"cube size", func(c *config.Config) { c.Renderer.CubeShadowMapSize = 3 }, "cube_shadow_map_size"},
		{"pool", func(c *config.Config) { c.Renderer.MaxShadow2D = -1 }, "pool sizes"},
		{"stage", func(c *config.Config) { c.Renderer.PostProcess = []string{"vignette"} }, `"vignette"`},
		{"non-post stage", func(c *config.Config) { c.Renderer.PostProcess = []string{"geometry"} }, `"geometry"`},
		{"hot reload", func(c *config.Config) { c.Renderer.HotReload = true }, "shader_dir"},
		{"level", func(c *config.Config) { c.Log.Level = "verbose" }, "log level"},
		{"exposure", func(c *config.Config) { c.Renderer.Exposure = 0 }, "exposure"},
		{"bloom", func(c *config.Config) { c.Renderer.BloomStrength = -1 }, "bloom"},
		{"ssao", func(c *config.Config) { c.Renderer.SSAORadius = 0 }, "ssao_radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	// Custom stage names are allowed when a shader directory can supply them.
	cfg := config.Default()
	cfg.Renderer.ShaderDir = "shaders"
	cfg.Renderer.PostProcess = []string{"vignette"}
	assert.NoError(t, cfg.Validate())

	cfg = config.Default()
	cfg.Renderer.PostProcess = []string{"ssao", "bloom", "tonemap"}
	assert.NoError(t, cfg.Validate())
}
