package lower

import (
	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// registerPool hands out register variables with stack discipline: the
// most recently released register is reused first.
type registerPool struct {
	names []string
	free  []string
}

func newRegisterPool(names []string) *registerPool {
	p := &registerPool{names: names}
	for i := len(names) - 1; i >= 0; i-- {
		p.free = append(p.free, names[i])
	}
	return p
}

func (p *registerPool) alloc(loc bytecode.SourceLocation) (bytecode.Operand, error) {
	if len(p.free) == 0 {
		return bytecode.None(), program.Errorf(loc, ErrRegisterPressure,
			"needs more than %d temporaries; split it into several assignments", len(p.names))
	}
	name := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return bytecode.Var(name), nil
}

// owns reports whether o is a register of this pool.
func (p *registerPool) owns(o bytecode.Operand) bool {
	for _, name := range p.names {
		if o.IsVar(name) {
			return true
		}
	}
	return false
}

// release returns o to the pool if it is one of its registers.
func (p *registerPool) release(o bytecode.Operand) {
	if !p.owns(o) {
		return
	}
	for _, name := range p.free {
		if o.IsVar(name) {
			return
		}
	}
	p.free = append(p.free, o.Name)
}

func (p *registerPool) inUse() int {
	return len(p.names) - len(p.free)
}
