package resource

import (
	"fmt"
	"path/filepath"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/shader"
)

// ShaderManager compiles and owns shader variants. Sources are taken
// from the built-ins, with per-stage overrides read from Dir.
type ShaderManager struct {
	*Registry[shader.Shader]
	dev  gpu.Device
	opts shader.Options
	dir  string
}

func NewShaderManager(dev gpu.Device, opts shader.Options, dir string) *ShaderManager {
	return &ShaderManager{
		Registry: NewRegistry[shader.Shader]("shader", PolicyFail),
		dev:      dev,
		opts:     opts,
		dir:      dir,
	}
}

// Dir is the override directory, or "".
func (m *ShaderManager) Dir() string { return m.dir }

// MakeShader compiles src as a pass variant and registers it.
func (m *ShaderManager) MakeShader(name string, pass shader.Pass, src shader.Sources) (Handle, error) {
	if m.rejects(name) {
		return 0, fmt.Errorf("shader %q: %w", name, ErrAlreadyExists)
	}
	s, err := shader.New(m.dev, name, pass, src, m.opts)
	if err != nil {
		return 0, err
	}
	h, err := m.Register(name, s)
	if err != nil {
		s.Release()
		return 0, err
	}
	return h, nil
}

// LoadBuiltins compiles every built-in not yet registered, applying
// overrides, then registers any extra post-process stage found as a
// lone <name>.frag in the override directory.
func (m *ShaderManager) LoadBuiltins() error {
	for _, b := range shader.Builtins() {
		if m.Has(b.Name) {
			continue
		}
		src, found, err := shader.ApplyOverrides(m.dir, b.Name, b.Sources)
		if err != nil {
			return err
		}
		if found {
			core.Logger().Info("shader override applied", "shader", b.Name, "dir", m.dir)
		}
		if _, err := m.MakeShader(b.Name, b.Pass, src); err != nil {
			return err
		}
	}

	for _, name := range m.customPost() {
		if m.Has(name) {
			continue
		}
		src, _, err := shader.ApplyOverrides(m.dir, name, shader.PostSources(""))
		if err != nil {
			return err
		}
		if _, err := m.MakeShader(name, shader.PassPostProcess, src); err != nil {
			return err
		}
	}
	return nil
}

// customPost lists fragment files in the override directory that do not
// belong to a built-in.
func (m *ShaderManager) customPost() []string {
	if m.dir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(m.dir, "*"+shader.ExtFragment))
	if err != nil {
		return nil
	}
	var out []string
	for _, path := range matches {
		name := shader.ShaderName(path)
		if _, builtin := shader.LookupBuiltin(name); !builtin {
			out = append(out, name)
		}
	}
	return out
}

// Reload recompiles name from the built-in sources and the current
// override files. On failure the previous program stays registered.
func (m *ShaderManager) Reload(name string) error {
	old, err := m.Lookup(name)
	if err != nil {
		return err
	}

	base := shader.PostSources("")
	if b, ok := shader.LookupBuiltin(name); ok {
		base = b.Sources
	}
	src, _, err := shader.ApplyOverrides(m.dir, name, base)
	if err != nil {
		return err
	}
	s, err := shader.New(m.dev, name, old.Pass(), src, m.opts)
	if err != nil {
		return err
	}
	if _, err := m.Replace(name, s); err != nil {
		s.Release()
		return err
	}
	return nil
}
