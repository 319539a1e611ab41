package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Built-in shader names.
const (
	NameGeometry   = "geometry"
	NameShadow2D   = "shadow_2d"
	NameShadowCube = "shadow_cubemap"
	NameSkybox     = "skybox"
	NameLight      = "light"
	NameForward    = "forward"
	NameTonemap    = "tonemap"
	NameFog        = "fog"
	NameBloom      = "bloom"
	NameSSAO       = "ssao"
)

// Builtin is a named shader with its default sources.
type Builtin struct {
	Name    string
	Pass    Pass
	Sources Sources
}

// Builtins lists every built-in variant in compile order.
func Builtins() []Builtin {
	mesh := func(frag string) Sources {
		return Sources{Vertex: []string{geometryVert}, Fragment: []string{frag}}
	}
	return []Builtin{
		{NameGeometry, PassGeometry, mesh(geometryFrag)},
		{NameShadow2D, PassShadow2D, Sources{Vertex: []string{shadow2DVert}, Fragment: []string{shadow2DFrag}}},
		{NameShadowCube, PassShadowCube, Sources{Vertex: []string{shadowCubeVert}, Fragment: []string{shadowCubeFrag}}},
		{NameSkybox, PassSkybox, Sources{Vertex: []string{skyboxVert}, Fragment: []string{skyboxFrag}}},
		{NameLight, PassLight, Sources{Vertex: []string{fullscreenVert}, Fragment: []string{lightFrag}}},
		{NameForward, PassForward, mesh(forwardFrag)},
		{NameTonemap, PassPostProcess, PostSources(tonemapFrag)},
		{NameFog, PassPostProcess, PostSources(fogFrag)},
		{NameBloom, PassPostProcess, PostSources(bloomFrag)},
		{NameSSAO, PassPostProcess, PostSources(ssaoFrag)},
	}
}

// LookupBuiltin returns the built-in called name.
func LookupBuiltin(name string) (Builtin, bool) {
	for _, b := range Builtins() {
		if b.Name == name {
			return b, true
		}
	}
	return Builtin{}, false
}

// PostSources pairs a post-process fragment stage with the fullscreen
// triangle vertex stage.
func PostSources(frag string) Sources {
	return Sources{Vertex: []string{fullscreenVert}, Fragment: []string{frag}}
}

// Stage file extensions recognised in an override directory.
const (
	ExtVertex   = ".vert"
	ExtGeometry = ".geom"
	ExtFragment = ".frag"
)

// ApplyOverrides replaces each stage of src for which dir holds
// <name>.vert, <name>.geom or <name>.frag. It reports whether any file
// was found. An empty dir leaves src untouched.
func ApplyOverrides(dir, name string, src Sources) (Sources, bool, error) {
	if dir == "" {
		return src, false, nil
	}
	found := false
	for _, st := range []struct {
		ext  string
		dest *[]string
	}{
		{ExtVertex, &src.Vertex},
		{ExtGeometry, &src.Geometry},
		{ExtFragment, &src.Fragment},
	} {
		data, err := os.ReadFile(filepath.Join(dir, name+st.ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return src, false, fmt.Errorf("shader %s: reading override: %w", name, err)
		}
		*st.dest = []string{string(data)}
		found = true
	}
	return src, found, nil
}

// ShaderName maps an override file path to the shader it belongs to, or
// "" when the extension is not a stage extension.
func ShaderName(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ExtVertex, ExtGeometry, ExtFragment:
		base := filepath.Base(path)
		return base[:len(base)-len(ext)]
	}
	return ""
}
