// Package shader compiles GPU programs and exposes the per-pass shader
// variants with their fixed uniform layouts.
package shader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"render-core/core"
	"render-core/internal/gpu"
)

var (
	ErrCompile = errors.New("shader compile failed")
	ErrLink    = errors.New("shader link failed")
)

// Sources holds the ordered source fragments for each stage. An empty
// Geometry list means no geometry stage. The shared common include is
// prepended to every non-empty stage.
type Sources struct {
	Vertex   []string
	Geometry []string
	Fragment []string
}

type Options struct {
	// Validate checks every uniform write against the declared type and
	// panics on mismatch.
	Validate bool
}

// Program is a linked program plus a slot table resolved at link time.
// Slot count is fixed at construction; an out-of-range slot panics.
type Program struct {
	dev      gpu.Device
	prog     *gpu.Program
	name     string
	validate bool

	slots    []string
	locs     []int32
	declared []gpu.UniformKind

	kinds  map[string]gpu.UniformKind
	byName map[string]int32
	warned map[string]bool
}

func NewProgram(dev gpu.Device, name string, src Sources, slots []string, opts Options) (*Program, error) {
	stages := []struct {
		stage   gpu.Stage
		sources []string
	}{
		{gpu.StageVertex, src.Vertex},
		{gpu.StageGeometry, src.Geometry},
		{gpu.StageFragment, src.Fragment},
	}

	var compiled []uint32
	defer func() {
		for _, id := range compiled {
			dev.DeleteShader(id)
		}
	}()

	for _, s := range stages {
		if len(s.sources) == 0 {
			if s.stage == gpu.StageGeometry {
				continue
			}
			return nil, fmt.Errorf("%w: %s: missing %s stage", ErrCompile, name, s.stage)
		}
		full := append([]string{commonSource}, s.sources...)
		id, err := dev.CompileShader(s.stage, full)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrCompile, name, s.stage, err)
		}
		compiled = append(compiled, id)
	}

	id, err := dev.LinkProgram(compiled)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLink, name, err)
	}

	p := &Program{
		dev:      dev,
		prog:     gpu.NewProgram(dev, id),
		name:     name,
		validate: opts.Validate,
		slots:    append([]string(nil), slots...),
		locs:     make([]int32, len(slots)),
		declared: make([]gpu.UniformKind, len(slots)),
		kinds:    make(map[string]gpu.UniformKind),
		byName:   make(map[string]int32),
		warned:   make(map[string]bool),
	}

	for _, u := range dev.ActiveUniforms(id) {
		base := arrayBase(u.Name)
		if u.Size > 1 || base != u.Name {
			p.kinds[base] = u.Kind
			for i := 0; i < u.Size; i++ {
				p.kinds[base+"["+strconv.Itoa(i)+"]"] = u.Kind
			}
			continue
		}
		p.kinds[u.Name] = u.Kind
	}

	log := core.Logger()
	for i, slot := range slots {
		loc := dev.UniformLocation(id, slot)
		p.locs[i] = loc
		p.declared[i] = p.kinds[slot]
		if loc < 0 {
			// Layouts are shared across variants, so an inactive slot is normal.
			log.Debug("uniform slot inactive", "shader", name, "slot", i, "uniform", slot)
		}
	}

	return p, nil
}

var arrayIndexRe = regexp.MustCompile(`\[\d+\]$`)

func arrayBase(name string) string {
	return arrayIndexRe.ReplaceAllString(name, "")
}

func (p *Program) Name() string  { return p.name }
func (p *Program) ID() uint32    { return p.prog.ID() }
func (p *Program) NumSlots() int { return len(p.locs) }

func (p *Program) Use() {
	p.prog.Use()
}

// Location returns the resolved location of slot, or -1.
func (p *Program) Location(slot int) int32 {
	p.checkSlot(slot)
	return p.locs[slot]
}

// Declared returns the declared kind of slot, or KindInvalid when the
// uniform is inactive.
func (p *Program) Declared(slot int) gpu.UniformKind {
	p.checkSlot(slot)
	return p.declared[slot]
}

func (p *Program) checkSlot(slot int) {
	if slot < 0 || slot >= len(p.locs) {
		panic(fmt.Sprintf("shader %s: uniform slot %d out of range [0,%d)", p.name, slot, len(p.locs)))
	}
}

func (p *Program) check(name string, declared gpu.UniformKind, v gpu.UniformValue) {
	if !p.validate || declared == gpu.KindInvalid {
		return
	}
	if !v.Kind.Compatible(declared) {
		panic(fmt.Sprintf("shader %s: uniform %s declared %s, set with %s", p.name, name, declared, v.Kind))
	}
}

// Set writes v to a pre-resolved slot. The program must be in use.
func (p *Program) Set(slot int, v gpu.UniformValue) {
	p.checkSlot(slot)
	p.check(p.slots[slot], p.declared[slot], v)
	p.dev.SetUniform(p.locs[slot], v)
}

// SetByName resolves name on first use and caches the location. Names
// that resolve to -1 are logged once and otherwise ignored.
func (p *Program) SetByName(name string, v gpu.UniformValue) {
	loc, ok := p.byName[name]
	if !ok {
		loc = p.dev.UniformLocation(p.prog.ID(), name)
		p.byName[name] = loc
		core.Logger().Debug("uniform location cached", "shader", p.name, "uniform", name, "location", loc)
	}
	if loc < 0 {
		if !p.warned[name] {
			p.warned[name] = true
			core.Logger().Warn("uniform not found", "shader", p.name, "uniform", name)
		}
		return
	}
	p.check(name, p.kinds[name], v)
	p.dev.SetUniform(loc, v)
}

// Get reads slot back from the driver as its declared kind.
func (p *Program) Get(slot int) gpu.UniformValue {
	p.checkSlot(slot)
	kind := p.declared[slot]
	if kind.IsSampler() {
		kind = gpu.KindInt
	}
	return p.dev.ReadUniform(p.prog.ID(), p.locs[slot], kind)
}

func (p *Program) Release() {
	p.prog.Release()
}
