// Package build assembles IR programs out of individual instructions.
//
// A Builder is a small value: the dispatch width, the channel group,
// the execution-mask override, the insertion cursor and a debug
// annotation. Derivation methods return a modified copy and never
// change the receiver, so builders derived from the same parent do not
// affect each other.
package build

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/simd/compiler/check"
	"github.com/slowlang/simd/compiler/ir"
)

type (
	Builder struct {
		sh *ir.Shader

		block  *ir.Block
		cursor *ir.Inst

		width  int
		group  int
		noMask bool

		annotation annotation
	}

	annotation struct {
		str string
		ir  any
	}
)

// MaxWidth is the widest supported SIMD execution size.
const MaxWidth = 32

// New returns a builder appending to the end of sh at its native width.
func New(sh *ir.Shader) Builder {
	return NewWidth(sh, sh.DispatchWidth)
}

func NewWidth(sh *ir.Shader, width int) Builder {
	b := Builder{
		sh:    sh,
		width: width,
	}

	return b.AtEnd()
}

// FromInst returns a builder inserting before inst in block, with the
// execution controls and annotation of inst.
func FromInst(sh *ir.Shader, block *ir.Block, inst *ir.Inst) Builder {
	return Builder{
		sh:     sh,
		block:  block,
		cursor: inst,
		width:  inst.ExecSize,
		group:  inst.Group,
		noMask: inst.ForceWriteMaskAll,
		annotation: annotation{
			str: inst.Annotation,
			ir:  inst.IR,
		},
	}
}

// At inserts before cursor in block.
func (b Builder) At(block *ir.Block, cursor *ir.Inst) Builder {
	b.block = block
	b.cursor = cursor

	return b
}

// AtEnd appends to the last block of the program.
func (b Builder) AtEnd() Builder {
	last := b.sh.CFG.Last()

	check.Assert(last != nil, "program has no blocks")

	return b.At(last, last.Tail())
}

// Group restricts the builder to n channels starting at i*n within the
// current channel group. A group outside of the current one is only
// allowed for instructions without per-channel semantics (ExecAll), and
// resets the group base to zero.
func (b Builder) Group(n, i int) Builder {
	check.Assert(n > 0, "channel group of %d channels", n)

	if n <= b.width && i < b.width/n {
		b.group += i * n
	} else {
		check.Assert(b.noMask, "channel group %d x %d outside of SIMD%d with execution masking", i, n, b.width)

		b.group = 0
	}

	b.width = n

	return b
}

func (b Builder) Quarter(i int) Builder {
	return b.Group(8, i)
}

// ExecAll disables execution masking if on is true.
// It never enables masking back.
func (b Builder) ExecAll(on bool) Builder {
	if on {
		b.noMask = true
	}

	return b
}

func (b Builder) Annotate(str string, ir any) Builder {
	b.annotation = annotation{str: str, ir: ir}

	return b
}

func (b Builder) DispatchWidth() int { return b.width }
func (b Builder) GroupBase() int     { return b.group }
func (b Builder) NoMask() bool       { return b.noMask }
func (b Builder) Shader() *ir.Shader { return b.sh }
func (b Builder) Block() *ir.Block   { return b.block }
func (b Builder) Cursor() *ir.Inst   { return b.cursor }

// VGRF allocates a virtual register holding n components of type t at
// the dispatch width. n == 0 gives a null register of type t.
func (b Builder) VGRF(t ir.Type, n int) ir.Reg {
	check.Assert(b.width <= MaxWidth, "SIMD%d", b.width)

	if n == 0 {
		return ir.Retype(ir.NullReg(), t)
	}

	unit := ir.RegUnit(b.sh.Dev)
	size := (n*t.Size()*b.width + unit*ir.RegSize - 1) / (unit * ir.RegSize) * unit

	return ir.VGRFReg(b.sh.Alloc.Allocate(size), t)
}

func (b Builder) NullF() ir.Reg  { return ir.Retype(ir.NullReg(), ir.F) }
func (b Builder) NullDF() ir.Reg { return ir.Retype(ir.NullReg(), ir.DF) }
func (b Builder) NullD() ir.Reg  { return ir.Retype(ir.NullReg(), ir.D) }
func (b Builder) NullUD() ir.Reg { return ir.Retype(ir.NullReg(), ir.UD) }

// Insert stamps inst with the builder's execution controls and links it
// in before the cursor.
func (b Builder) Insert(inst *ir.Inst) *ir.Inst {
	check.Assert(inst.ExecSize <= MaxWidth, "exec size %d", inst.ExecSize)
	check.Assert(inst.ExecSize == b.width || b.noMask, "exec size %d in SIMD%d with execution masking", inst.ExecSize, b.width)
	check.Assert(b.cursor != nil, "builder has no cursor")

	inst.Group = b.group
	inst.ForceWriteMaskAll = b.noMask
	inst.Annotation = b.annotation.str
	inst.IR = b.annotation.ir

	b.cursor.InsertBefore(b.block, inst)

	if tlog.If("emit") {
		tlog.Printw("emit", "block", b.block.Num, "inst", inst, "from", loc.Caller(1))
	}

	return inst
}

// Control emits an instruction without operands.
func (b Builder) Control(op ir.Opcode) *ir.Inst {
	return b.Insert(ir.NewInst(op, b.width, ir.Reg{}))
}

func (b Builder) Emit0(op ir.Opcode, dst ir.Reg) *ir.Inst {
	return b.Insert(ir.NewInst(op, b.width, dst))
}

func (b Builder) Emit1(op ir.Opcode, dst, src0 ir.Reg) *ir.Inst {
	return b.Insert(ir.NewInst(op, b.width, dst, src0))
}

func (b Builder) Emit2(op ir.Opcode, dst, src0, src1 ir.Reg) *ir.Inst {
	return b.Insert(ir.NewInst(op, b.width, dst, src0, src1))
}

// Emit3 legalizes the operands of ternary-encoded opcodes.
func (b Builder) Emit3(op ir.Opcode, dst, src0, src1, src2 ir.Reg) *ir.Inst {
	switch op {
	case ir.OpBFE, ir.OpBFI2, ir.OpMAD, ir.OpLRP:
		return b.Insert(ir.NewInst(op, b.width, dst,
			b.fix3SrcOperand(src0),
			b.fix3SrcOperand(src1),
			b.fix3SrcOperand(src2)))
	default:
		return b.Insert(ir.NewInst(op, b.width, dst, src0, src1, src2))
	}
}

// EmitN goes through Emit2 and Emit3 for those operand counts so
// opcode specific fixups apply.
func (b Builder) EmitN(op ir.Opcode, dst ir.Reg, srcs []ir.Reg) *ir.Inst {
	switch len(srcs) {
	case 2:
		return b.Emit2(op, dst, srcs[0], srcs[1])
	case 3:
		return b.Emit3(op, dst, srcs[0], srcs[1], srcs[2])
	default:
		return b.Insert(ir.NewInst(op, b.width, dst, srcs...))
	}
}

func (b Builder) Break() *ir.Inst    { return b.Control(ir.OpBREAK) }
func (b Builder) Do() *ir.Inst       { return b.Control(ir.OpDO) }
func (b Builder) EndIf() *ir.Inst    { return b.Control(ir.OpENDIF) }
func (b Builder) Nop() *ir.Inst      { return b.Control(ir.OpNOP) }
func (b Builder) While() *ir.Inst    { return b.Control(ir.OpWHILE) }
func (b Builder) Continue() *ir.Inst { return b.Control(ir.OpCONTINUE) }

func SetCondMod(c ir.CondMod, inst *ir.Inst) *ir.Inst {
	inst.CondMod = c

	return inst
}

func SetPredicate(p ir.Predicate, inst *ir.Inst) *ir.Inst {
	inst.Predicate = p

	return inst
}

func SetPredicateInv(p ir.Predicate, inv bool, inst *ir.Inst) *ir.Inst {
	inst.Predicate = p
	inst.PredInverse = inv

	return inst
}
