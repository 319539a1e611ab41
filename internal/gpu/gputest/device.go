// Package gputest provides a recording software gpu.Device for tests.
//
// Attachment contents are modelled at whole-attachment granularity: a
// texture remembers its last clear or draw colour, its depth value and
// whether a draw touched it. Stencil is modelled as "some pixels carry the
// written reference", which is enough to decide whether EQUAL and NOTEQUAL
// tests pass anywhere on screen.
package gputest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"render-core/core"
	"render-core/internal/gpu"
)

// DrawnDepth is the depth a draw leaves behind in a depth attachment.
const DrawnDepth = 0.5

type Texture struct {
	ID      uint32
	Desc    gpu.TextureDesc
	Fill    core.Color
	Depth   float32
	Touched bool
	Draws   int

	stencilClear  int32
	stencilMarked bool
	stencilRef    int32
}

type Framebuffer struct {
	ID     uint32
	Colour map[int]uint32
	Depth  uint32
	Face   int
	Draw   []int
	Read   int
}

type program struct {
	uniforms []gpu.UniformInfo
	locs     map[string]int32
	values   map[int32]gpu.UniformValue
}

type shaderObj struct {
	stage   gpu.Stage
	sources []string
}

// Device implements gpu.Device in memory.
type Device struct {
	// DrawColour is written to every colour target a draw reaches.
	DrawColour core.Color
	// FailCompile, when set, decides whether a stage fails to compile.
	// Sources containing "#error" always fail.
	FailCompile func(stage gpu.Stage, source string) bool
	// FailAlloc makes texture and buffer allocation report out of memory.
	FailAlloc bool
	// FailFramebuffer makes every completeness check fail.
	FailFramebuffer bool

	// Default is the window framebuffer's colour surface.
	Default *Texture

	DrawCalls int
	Instances int

	nextID       uint32
	buffers      map[uint32]int
	vaos         map[uint32]bool
	textures     map[uint32]*Texture
	framebuffers map[uint32]*Framebuffer
	shaders      map[uint32]*shaderObj
	programs     map[uint32]*program

	boundFB  uint32
	program  uint32
	units    map[int]uint32
	depth    gpu.DepthState
	blend    gpu.BlendMode
	stencil  gpu.StencilState
	viewport [4]int32

	trace  []string
	labels map[string]int
}

var _ gpu.Device = (*Device)(nil)

func New() *Device {
	return &Device{
		DrawColour:   core.ColorWhite,
		Default:      &Texture{Fill: core.Color{}, Depth: 1},
		buffers:      make(map[uint32]int),
		vaos:         make(map[uint32]bool),
		textures:     make(map[uint32]*Texture),
		framebuffers: make(map[uint32]*Framebuffer),
		shaders:      make(map[uint32]*shaderObj),
		programs:     make(map[uint32]*program),
		units:        make(map[int]uint32),
		labels:       make(map[string]int),
	}
}

// ── Inspection ───────────────────────────────────────────────────────────────

// Texture returns a live texture or nil.
func (d *Device) Texture(id uint32) *Texture { return d.textures[id] }

// Framebuffer returns a live framebuffer or nil.
func (d *Device) Framebuffer(id uint32) *Framebuffer { return d.framebuffers[id] }

func (d *Device) LiveTextures() int     { return len(d.textures) }
func (d *Device) LiveBuffers() int      { return len(d.buffers) }
func (d *Device) LiveFramebuffers() int { return len(d.framebuffers) }
func (d *Device) LivePrograms() int     { return len(d.programs) }
func (d *Device) LiveVertexArrays() int { return len(d.vaos) }

// Trace returns the commands recorded since the last ResetTrace. Object
// ids are replaced by their order of first appearance, so two traces of
// the same work compare equal even when the objects were reallocated.
func (d *Device) Trace() []string { return append([]string(nil), d.trace...) }

func (d *Device) ResetTrace() {
	d.trace = d.trace[:0]
	d.labels = make(map[string]int)
}

func (d *Device) label(kind string, id uint32) string {
	if id == 0 {
		return kind + "#0"
	}
	key := kind + strconv.FormatUint(uint64(id), 10)
	n, ok := d.labels[key]
	if !ok {
		n = len(d.labels) + 1
		d.labels[key] = n
	}
	return fmt.Sprintf("%s@%d", kind, n)
}

func (d *Device) record(format string, args ...any) {
	d.trace = append(d.trace, fmt.Sprintf(format, args...))
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// ── Buffers ──────────────────────────────────────────────────────────────────

func (d *Device) CreateBuffer() uint32 {
	id := d.id()
	d.buffers[id] = 0
	return id
}

func (d *Device) BufferData(id uint32, target gpu.BufferTarget, data []byte, usage gpu.BufferUsage) error {
	if d.FailAlloc {
		return gpu.ErrOutOfMemory
	}
	d.buffers[id] = len(data)
	return nil
}

func (d *Device) BufferSubData(id uint32, target gpu.BufferTarget, offset int, data []byte) {
	if offset+len(data) > d.buffers[id] {
		panic(fmt.Sprintf("gputest: sub-data overflows buffer %d", id))
	}
}

func (d *Device) DeleteBuffer(id uint32) { delete(d.buffers, id) }

// ── Vertex arrays ────────────────────────────────────────────────────────────

func (d *Device) CreateVertexArray() uint32 {
	id := d.id()
	d.vaos[id] = true
	return id
}

func (d *Device) VertexAttribs(vao, buffer uint32, attribs []gpu.VertexAttrib) {}
func (d *Device) IndexBuffer(vao, buffer uint32)                               {}
func (d *Device) BindVertexArray(vao uint32)                                   {}
func (d *Device) DeleteVertexArray(id uint32)                                  { delete(d.vaos, id) }

// ── Textures ─────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture(desc gpu.TextureDesc, faces [][]byte) (uint32, error) {
	if d.FailAlloc {
		return 0, gpu.ErrOutOfMemory
	}
	id := d.id()
	t := &Texture{ID: id, Desc: desc, Depth: 1}
	if len(faces) > 0 && len(faces[0]) >= 4 {
		p := faces[0]
		t.Fill = core.Color{R: float32(p[0]) / 255, G: float32(p[1]) / 255, B: float32(p[2]) / 255, A: float32(p[3]) / 255}
	}
	d.textures[id] = t
	return id, nil
}

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, id uint32) {
	d.units[unit] = id
	k := "2d"
	if kind == gpu.TextureCube {
		k = "cube"
	}
	d.record("BindTexture unit=%d %s %s", unit, k, d.label("tex", id))
}

// BoundTexture reports the texture on a unit.
func (d *Device) BoundTexture(unit int) uint32 { return d.units[unit] }

func (d *Device) DeleteTexture(id uint32) { delete(d.textures, id) }

// ── Framebuffers ─────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() uint32 {
	id := d.id()
	d.framebuffers[id] = &Framebuffer{ID: id, Colour: make(map[int]uint32), Face: gpu.FaceNone, Draw: []int{0}, Read: 0}
	return id
}

func (d *Device) AttachTexture(fb uint32, point gpu.AttachPoint, index int, tex uint32, face int) {
	f := d.framebuffers[fb]
	if f == nil {
		panic(fmt.Sprintf("gputest: attach to unknown framebuffer %d", fb))
	}
	if point == gpu.AttachColour {
		f.Colour[index] = tex
		d.record("AttachTexture %s colour%d %s", d.label("fb", fb), index, d.label("tex", tex))
		return
	}
	f.Depth = tex
	f.Face = face
	d.record("AttachTexture %s depth %s face=%d", d.label("fb", fb), d.label("tex", tex), face)
}

func (d *Device) CheckFramebuffer(fb uint32) error {
	if d.FailFramebuffer {
		return gpu.ErrFramebufferIncomplete
	}
	f := d.framebuffers[fb]
	if f == nil || (len(f.Colour) == 0 && f.Depth == 0) {
		return gpu.ErrFramebufferIncomplete
	}
	for _, tex := range f.Colour {
		if d.textures[tex] == nil {
			return gpu.ErrFramebufferIncomplete
		}
	}
	return nil
}

func (d *Device) BindFramebuffer(fb uint32) {
	d.boundFB = fb
	d.record("BindFramebuffer %s", d.label("fb", fb))
}

func (d *Device) DrawBuffers(fb uint32, attachments []int) {
	d.framebuffers[fb].Draw = append([]int(nil), attachments...)
	d.record("DrawBuffers %s %v", d.label("fb", fb), attachments)
}

func (d *Device) ReadBuffer(fb uint32, attachment int) {
	if f := d.framebuffers[fb]; f != nil {
		f.Read = attachment
	}
	d.record("ReadBuffer %s %d", d.label("fb", fb), attachment)
}

func (d *Device) drawTargets(fb uint32) []*Texture {
	if fb == 0 {
		return []*Texture{d.Default}
	}
	f := d.framebuffers[fb]
	var out []*Texture
	for _, i := range f.Draw {
		if t := d.textures[f.Colour[i]]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (d *Device) readTarget(fb uint32) *Texture {
	if fb == 0 {
		return d.Default
	}
	f := d.framebuffers[fb]
	if f.Read < 0 {
		return nil
	}
	return d.textures[f.Colour[f.Read]]
}

func (d *Device) depthTarget(fb uint32) *Texture {
	if fb == 0 {
		return d.Default
	}
	return d.textures[d.framebuffers[fb].Depth]
}

func (d *Device) ClearColour(drawBuffer int, c core.Color) {
	targets := d.drawTargets(d.boundFB)
	if drawBuffer < len(targets) {
		t := targets[drawBuffer]
		t.Fill, t.Touched, t.Draws = c, false, 0
	}
	d.record("ClearColour %s %d %v", d.label("fb", d.boundFB), drawBuffer, c)
}

func (d *Device) ClearDepthStencil(depth float32, stencil int32) {
	if t := d.depthTarget(d.boundFB); t != nil {
		t.Depth, t.Touched = depth, false
		t.stencilClear, t.stencilMarked = stencil, false
	}
	d.record("ClearDepthStencil %s", d.label("fb", d.boundFB))
}

func (d *Device) Blit(src, dst uint32, srcRect, dstRect [4]int32, mask gpu.BlitMask) {
	d.record("Blit %s -> %s mask=%d", d.label("fb", src), d.label("fb", dst), mask)
	if mask&gpu.BlitColour != 0 {
		if from := d.readTarget(src); from != nil {
			for _, to := range d.drawTargets(dst) {
				to.Fill, to.Touched = from.Fill, from.Touched
			}
		}
	}
	from, to := d.depthTarget(src), d.depthTarget(dst)
	if from == nil || to == nil || from == to {
		return
	}
	if mask&gpu.BlitDepth != 0 {
		to.Depth = from.Depth
	}
	if mask&gpu.BlitStencil != 0 {
		to.stencilClear, to.stencilMarked, to.stencilRef = from.stencilClear, from.stencilMarked, from.stencilRef
	}
}

func (d *Device) Viewport(x, y, width, height int32) {
	d.viewport = [4]int32{x, y, width, height}
}

// CurrentViewport returns the last viewport set.
func (d *Device) CurrentViewport() [4]int32 { return d.viewport }

// BoundFramebuffer returns the framebuffer currently bound.
func (d *Device) BoundFramebuffer() uint32 { return d.boundFB }

func (d *Device) ReadPixels(x, y, width, height int32) []core.Color {
	out := make([]core.Color, int(width*height))
	if t := d.readTarget(d.boundFB); t != nil {
		for i := range out {
			out[i] = t.Fill
		}
	}
	return out
}

func (d *Device) DeleteFramebuffer(id uint32) { delete(d.framebuffers, id) }

// ── Pipeline state ───────────────────────────────────────────────────────────

func (d *Device) SetDepth(state gpu.DepthState) { d.depth = state }
func (d *Device) SetBlend(mode gpu.BlendMode)   { d.blend = mode }
func (d *Device) SetCull(mode gpu.CullMode)     {}

func (d *Device) SetStencil(state gpu.StencilState) {
	d.stencil = state
	d.record("SetStencil enabled=%t func=%d ref=%d write=%t", state.Enabled, state.Func, state.Ref, state.Write)
}

// ── Programs ─────────────────────────────────────────────────────────────────

func (d *Device) CompileShader(stage gpu.Stage, sources []string) (uint32, error) {
	src := strings.Join(sources, "\n")
	if strings.Contains(src, "#error") || (d.FailCompile != nil && d.FailCompile(stage, src)) {
		return 0, fmt.Errorf("0:1: error: %s stage rejected", stage)
	}
	id := d.id()
	d.shaders[id] = &shaderObj{stage: stage, sources: sources}
	return id, nil
}

var (
	defineRe  = regexp.MustCompile(`(?m)^\s*#define\s+(\w+)\s+(\d+)\s*$`)
	uniformRe = regexp.MustCompile(`(?m)^\s*uniform\s+(\w+)\s+(\w+)\s*(?:\[\s*(\w+)\s*\])?\s*;`)
)

func (d *Device) LinkProgram(shaders []uint32) (uint32, error) {
	var vertex, fragment bool
	var all []string
	for _, id := range shaders {
		s := d.shaders[id]
		if s == nil {
			return 0, fmt.Errorf("link: unknown shader %d", id)
		}
		vertex = vertex || s.stage == gpu.StageVertex
		fragment = fragment || s.stage == gpu.StageFragment
		all = append(all, s.sources...)
	}
	if !vertex || !fragment {
		return 0, fmt.Errorf("link: program needs vertex and fragment stages")
	}

	src := strings.Join(all, "\n")
	defines := map[string]int{}
	for _, m := range defineRe.FindAllStringSubmatch(src, -1) {
		n, _ := strconv.Atoi(m[2])
		defines[m[1]] = n
	}

	p := &program{locs: make(map[string]int32), values: make(map[int32]gpu.UniformValue)}
	next := int32(0)
	for _, m := range uniformRe.FindAllStringSubmatch(src, -1) {
		kind, ok := gpu.KindByName(m[1])
		if !ok {
			return 0, fmt.Errorf("link: unsupported uniform type %q", m[1])
		}
		name := m[2]
		if _, dup := p.locs[name]; dup {
			continue
		}
		size := 1
		if m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil {
				size = n
			} else if n, ok := defines[m[3]]; ok {
				size = n
			} else {
				return 0, fmt.Errorf("link: unknown array size %q", m[3])
			}
			p.uniforms = append(p.uniforms, gpu.UniformInfo{Name: name + "[0]", Kind: kind, Size: size})
			p.locs[name] = next
			for i := 0; i < size; i++ {
				p.locs[fmt.Sprintf("%s[%d]", name, i)] = next
				next++
			}
			continue
		}
		p.uniforms = append(p.uniforms, gpu.UniformInfo{Name: name, Kind: kind, Size: 1})
		p.locs[name] = next
		next++
	}

	id := d.id()
	d.programs[id] = p
	return id, nil
}

func (d *Device) DeleteShader(id uint32) { delete(d.shaders, id) }

func (d *Device) DeleteProgram(id uint32) {
	delete(d.programs, id)
	if d.program == id {
		d.program = 0
	}
}

func (d *Device) UseProgram(id uint32) {
	d.program = id
	d.record("UseProgram %s", d.label("prog", id))
}

// CurrentProgram returns the program in use.
func (d *Device) CurrentProgram() uint32 { return d.program }

func (d *Device) UniformLocation(prog uint32, name string) int32 {
	p := d.programs[prog]
	if p == nil {
		return -1
	}
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	return -1
}

func (d *Device) ActiveUniforms(prog uint32) []gpu.UniformInfo {
	if p := d.programs[prog]; p != nil {
		return append([]gpu.UniformInfo(nil), p.uniforms...)
	}
	return nil
}

func (d *Device) SetUniform(loc int32, v gpu.UniformValue) {
	if loc < 0 {
		return
	}
	p := d.programs[d.program]
	if p == nil {
		panic("gputest: SetUniform with no program in use")
	}
	p.values[loc] = v
}

func (d *Device) ReadUniform(prog uint32, loc int32, kind gpu.UniformKind) gpu.UniformValue {
	p := d.programs[prog]
	if p == nil || loc < 0 {
		return gpu.UniformValue{}
	}
	v := p.values[loc]
	v.Kind = kind
	return v
}

// Uniform reads a value by name from prog, for assertions.
func (d *Device) Uniform(prog uint32, name string) (gpu.UniformValue, bool) {
	p := d.programs[prog]
	if p == nil {
		return gpu.UniformValue{}, false
	}
	loc, ok := p.locs[name]
	if !ok {
		return gpu.UniformValue{}, false
	}
	v, ok := p.values[loc]
	return v, ok
}

// ── Draws ────────────────────────────────────────────────────────────────────

func (d *Device) DrawElementsInstanced(count, instances int32) {
	d.draw(instances)
}

func (d *Device) DrawArraysInstanced(first, count, instances int32) {
	d.draw(instances)
}

func (d *Device) draw(instances int32) {
	if d.program == 0 {
		panic("gputest: draw with no program in use")
	}
	ds := d.depthTarget(d.boundFB)
	if d.stencil.Enabled && !d.stencilPasses(ds) {
		d.record("Draw %s skipped by stencil", d.label("fb", d.boundFB))
		return
	}

	d.DrawCalls++
	d.Instances += int(instances)
	d.record("Draw %s instances=%d", d.label("fb", d.boundFB), instances)

	for _, t := range d.drawTargets(d.boundFB) {
		t.Fill, t.Touched = d.DrawColour, true
		t.Draws++
	}
	if ds != nil && d.depth.Test && d.depth.Write {
		ds.Depth, ds.Touched = DrawnDepth, true
		ds.Draws++
	}
	if ds != nil && d.stencil.Enabled && d.stencil.Write {
		ds.stencilMarked, ds.stencilRef = true, d.stencil.Ref
	}
}

func (d *Device) stencilPasses(t *Texture) bool {
	if t == nil {
		return true
	}
	ref := d.stencil.Ref
	switch d.stencil.Func {
	case gpu.CompareEqual:
		return t.stencilClear == ref || (t.stencilMarked && t.stencilRef == ref)
	case gpu.CompareNotEqual:
		return t.stencilClear != ref || (t.stencilMarked && t.stencilRef != ref)
	case gpu.CompareNever:
		return false
	}
	return true
}
