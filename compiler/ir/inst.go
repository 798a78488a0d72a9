package ir

import (
	"tlog.app/go/errors"
)

type (
	Inst struct {
		Opcode Opcode

		Dst Reg
		Src []Reg

		ExecSize          int
		Group             int
		ForceWriteMaskAll bool

		CondMod     CondMod
		Predicate   Predicate
		PredInverse bool
		Saturate    bool

		WritesAccumulator bool

		// SizeWritten is the number of destination bytes written.
		SizeWritten int

		HeaderSize int
		Mlen       int
		ExMlen     int

		Sdepth int
		Rcount int

		Annotation string
		IR         any

		prev, next *Inst
		block      *Block
	}

	// Block is a basic block: an instruction list bounded by sentinels.
	// Every insertion is "before a cursor", the tail sentinel included.
	Block struct {
		Num int

		head, tail Inst
	}

	CFG struct {
		Blocks []*Block
	}
)

func NewInst(op Opcode, execSize int, dst Reg, src ...Reg) *Inst {
	inst := &Inst{
		Opcode:   op,
		ExecSize: execSize,
		Dst:      dst,
	}

	if len(src) != 0 {
		inst.Src = append([]Reg{}, src...)
	}

	if dst.File != BadFile {
		inst.SizeWritten = dst.ComponentSize(execSize)
	}

	return inst
}

func (inst *Inst) Sources() int { return len(inst.Src) }
func (inst *Inst) Is3Src() bool { return inst.Opcode.Is3Src() }
func (inst *Inst) IsMath() bool { return inst.Opcode.IsMath() }
func (inst *Inst) IsSend() bool { return inst.Opcode == OpSEND }

// SizeRead is the number of bytes read from source i.
func (inst *Inst) SizeRead(i int) int {
	src := inst.Src[i]

	switch {
	case inst.Opcode == OpLoadPayload && i < inst.HeaderSize:
		return RegSize
	case inst.Opcode == OpSEND && i == 2:
		return inst.Mlen * RegSize
	case inst.Opcode == OpSEND && i == 3:
		return inst.ExMlen * RegSize
	case src.File == Imm || src.File == Uniform || src.File == BadFile:
		return src.Type.Size()
	}

	return src.ComponentSize(inst.ExecSize)
}

// RegsRead is the number of registers source i touches.
// The stride gap after the last component is not counted.
func (inst *Inst) RegsRead(i int) int {
	size := inst.SizeRead(i)
	size -= min(size, regPadding(inst.Src[i]))

	return divRoundUp(regOffset(inst.Src[i])%RegSize+size, RegSize)
}

func (inst *Inst) RegsWritten() int {
	size := inst.SizeWritten - min(inst.SizeWritten, regPadding(inst.Dst))

	return divRoundUp(regOffset(inst.Dst)%RegSize+size, RegSize)
}

// regPadding is the unused gap between strided components.
func regPadding(r Reg) int {
	if r.IsPhysical() {
		return 0
	}

	return (max(r.Stride, 1) - 1) * r.Type.Size()
}

func regOffset(r Reg) int {
	switch r.File {
	case FixedGRF, ARF:
		return r.Nr*RegSize + r.Subnr
	default:
		return r.Offset
	}
}

func divRoundUp(a, b int) int { return (a + b - 1) / b }

// InsertBefore links inst into b right before cur.
func (cur *Inst) InsertBefore(b *Block, inst *Inst) {
	p := cur.prev

	inst.prev = p
	inst.next = cur
	inst.block = b

	p.next = inst
	cur.prev = inst
}

func (inst *Inst) Remove() {
	inst.prev.next = inst.next
	inst.next.prev = inst.prev

	inst.prev, inst.next, inst.block = nil, nil, nil
}

func (inst *Inst) Next() *Inst {
	if inst.next == nil || inst.next.next == nil {
		return nil
	}

	return inst.next
}

func (inst *Inst) Prev() *Inst {
	if inst.prev == nil || inst.prev.prev == nil {
		return nil
	}

	return inst.prev
}

func (inst *Inst) Block() *Block { return inst.block }

func NewCFG() *CFG {
	return &CFG{}
}

func (g *CFG) NewBlock() *Block {
	b := &Block{Num: len(g.Blocks)}

	b.head.next = &b.tail
	b.tail.prev = &b.head
	b.head.block = b
	b.tail.block = b

	g.Blocks = append(g.Blocks, b)

	return b
}

func (g *CFG) Last() *Block {
	if len(g.Blocks) == 0 {
		return nil
	}

	return g.Blocks[len(g.Blocks)-1]
}

// Range calls f for each instruction of each block in order.
func (g *CFG) Range(f func(b *Block, inst *Inst) bool) {
	for _, b := range g.Blocks {
		for inst := b.First(); inst != nil; {
			next := inst.Next()

			if !f(b, inst) {
				return
			}

			inst = next
		}
	}
}

// Validate checks the links of every block.
func (g *CFG) Validate() error {
	for i, b := range g.Blocks {
		if b.Num != i {
			return errors.New("block %d numbered %d", i, b.Num)
		}

		n := 0

		for p := &b.head; p != &b.tail; p = p.next {
			if p.next == nil {
				return errors.New("block %d: list is not terminated", i)
			}

			if p.next.prev != p {
				return errors.New("block %d: broken back link after inst %d", i, n)
			}

			if p.next.block != b {
				return errors.New("block %d: inst %d belongs to another block", i, n)
			}

			n++
		}
	}

	return nil
}

func (b *Block) First() *Inst {
	if b.head.next == &b.tail {
		return nil
	}

	return b.head.next
}

func (b *Block) Last() *Inst {
	if b.tail.prev == &b.head {
		return nil
	}

	return b.tail.prev
}

// Tail is the cursor inserting at the end of b.
func (b *Block) Tail() *Inst { return &b.tail }

func (b *Block) Append(inst *Inst) { b.tail.InsertBefore(b, inst) }

func (b *Block) Len() (n int) {
	for inst := b.First(); inst != nil; inst = inst.Next() {
		n++
	}

	return n
}

func (b *Block) Insts() (l []*Inst) {
	for inst := b.First(); inst != nil; inst = inst.Next() {
		l = append(l, inst)
	}

	return l
}
