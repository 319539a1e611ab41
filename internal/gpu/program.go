package gpu

// Program owns a linked program object.
type Program struct {
	noCopy noCopy

	dev Device
	id  uint32
}

func NewProgram(dev Device, id uint32) *Program {
	return &Program{dev: dev, id: id}
}

func (p *Program) ID() uint32 { return p.id }

func (p *Program) Use() {
	p.dev.UseProgram(p.id)
}

// Release deletes the program. Further calls are no-ops.
func (p *Program) Release() {
	if p.id == 0 {
		return
	}
	p.dev.DeleteProgram(p.id)
	p.id = 0
}
