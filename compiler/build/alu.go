package build

import (
	"github.com/slowlang/simd/compiler/check"
	"github.com/slowlang/simd/compiler/ir"
)

type (
	aluKind uint8
)

const (
	_ aluKind = iota
	alu1
	alu2
	alu2Acc
	alu3
)

// aluOps maps each arithmetic opcode to its operand form.
// alu2Acc ops also write the accumulator.
var aluOps = map[ir.Opcode]aluKind{
	ir.OpMOV:   alu1,
	ir.OpNOT:   alu1,
	ir.OpBFREV: alu1,
	ir.OpCBIT:  alu1,
	ir.OpFBH:   alu1,
	ir.OpFBL:   alu1,
	ir.OpFRC:   alu1,
	ir.OpLZD:   alu1,
	ir.OpRNDD:  alu1,
	ir.OpRNDE:  alu1,
	ir.OpRNDU:  alu1,
	ir.OpRNDZ:  alu1,

	ir.OpRCP:  alu1,
	ir.OpRSQ:  alu1,
	ir.OpSQRT: alu1,
	ir.OpEXP2: alu1,
	ir.OpLOG2: alu1,
	ir.OpSIN:  alu1,
	ir.OpCOS:  alu1,

	ir.OpADD:  alu2,
	ir.OpAND:  alu2,
	ir.OpASR:  alu2,
	ir.OpAVG:  alu2,
	ir.OpBFI1: alu2,
	ir.OpDP2:  alu2,
	ir.OpDP3:  alu2,
	ir.OpDP4:  alu2,
	ir.OpDPH:  alu2,
	ir.OpLINE: alu2,
	ir.OpMAC:  alu2,
	ir.OpMUL:  alu2,
	ir.OpOR:   alu2,
	ir.OpPLN:  alu2,
	ir.OpROL:  alu2,
	ir.OpROR:  alu2,
	ir.OpSAD2: alu2,
	ir.OpSEL:  alu2,
	ir.OpSHL:  alu2,
	ir.OpSHR:  alu2,
	ir.OpXOR:  alu2,

	ir.OpPOW:          alu2,
	ir.OpIntQuotient:  alu2,
	ir.OpIntRemainder: alu2,

	ir.OpADDC:  alu2Acc,
	ir.OpMACH:  alu2Acc,
	ir.OpSADA2: alu2Acc,
	ir.OpSUBB:  alu2Acc,

	ir.OpADD3: alu3,
	ir.OpBFE:  alu3,
	ir.OpBFI2: alu3,
	ir.OpDP4A: alu3,
	ir.OpMAD:  alu3,
}

func assertALU(op ir.Opcode, k ...aluKind) {
	got := aluOps[op]

	for _, k := range k {
		if got == k {
			return
		}
	}

	check.Assert(false, "%v is not a %v-form ALU op", op, k)
}

// ALU1 emits a unary op into dst.
func (b Builder) ALU1(op ir.Opcode, dst, src0 ir.Reg) *ir.Inst {
	assertALU(op, alu1)

	check.Assert(b.width == 1 ||
		!dst.IsPhysical() && dst.Stride != 0 ||
		dst.IsPhysical() && dst.HStride != 0,
		"%v: zero destination stride in SIMD%d: %v", op, b.width, dst)

	return b.Emit1(op, dst, src0)
}

// ALU1New emits a unary op into a fresh register of the source type.
func (b Builder) ALU1New(op ir.Opcode, src0 ir.Reg) (ir.Reg, *ir.Inst) {
	inst := b.ALU1(op, b.VGRF(src0.Type, 1), src0)

	return inst.Dst, inst
}

func (b Builder) ALU2(op ir.Opcode, dst, src0, src1 ir.Reg) *ir.Inst {
	assertALU(op, alu2, alu2Acc)

	inst := b.Emit2(op, dst, src0, src1)

	if aluOps[op] == alu2Acc {
		inst.WritesAccumulator = true
	}

	return inst
}

// ALU2New emits a binary op into a fresh register of the wider source type.
func (b Builder) ALU2New(op ir.Opcode, src0, src1 ir.Reg) (ir.Reg, *ir.Inst) {
	assertALU(op, alu2)

	t := ir.LargerOf(src0.Type, src1.Type)

	inst := b.ALU2(op, b.VGRF(t, 1), src0, src1)

	return inst.Dst, inst
}

func (b Builder) ALU3(op ir.Opcode, dst, src0, src1, src2 ir.Reg) *ir.Inst {
	assertALU(op, alu3)

	return b.Emit3(op, dst, src0, src1, src2)
}

func (b Builder) Mov(dst, src ir.Reg) *ir.Inst     { return b.ALU1(ir.OpMOV, dst, src) }
func (b Builder) Not(dst, src ir.Reg) *ir.Inst     { return b.ALU1(ir.OpNOT, dst, src) }
func (b Builder) Add(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpADD, dst, x, y) }
func (b Builder) Mul(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpMUL, dst, x, y) }
func (b Builder) Sel(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpSEL, dst, x, y) }
func (b Builder) And(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpAND, dst, x, y) }
func (b Builder) Or(dst, x, y ir.Reg) *ir.Inst     { return b.ALU2(ir.OpOR, dst, x, y) }
func (b Builder) Xor(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpXOR, dst, x, y) }
func (b Builder) Shl(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpSHL, dst, x, y) }
func (b Builder) Shr(dst, x, y ir.Reg) *ir.Inst    { return b.ALU2(ir.OpSHR, dst, x, y) }
func (b Builder) Mad(dst, x, y, z ir.Reg) *ir.Inst { return b.ALU3(ir.OpMAD, dst, x, y, z) }

// Sub emits dst = x - y.
func (b Builder) Sub(dst, x, y ir.Reg) *ir.Inst {
	return b.Add(dst, x, ir.Negate(y))
}

// Cmp sets the low bit of each dst channel and the flag register to the
// result of src0 c src1.
func (b Builder) Cmp(dst, src0, src1 ir.Reg, c ir.CondMod) *ir.Inst {
	return b.compare(ir.OpCMP, dst, src0, src1, c)
}

// Cmpn is Cmp that is true when src1 is NaN.
func (b Builder) Cmpn(dst, src0, src1 ir.Reg, c ir.CondMod) *ir.Inst {
	return b.compare(ir.OpCMPN, dst, src0, src1, c)
}

func (b Builder) compare(op ir.Opcode, dst, src0, src1 ir.Reg, c ir.CondMod) *ir.Inst {
	// The comparison happens in the source type. The destination only
	// decides the width of the result, so a float compare into an integer
	// destination stays a float compare.
	t := src0.Type
	if !dst.IsNull() {
		t = src0.Type.WithSize(dst.Type.Bits())
	}

	s0 := b.fixUnsignedNegate(src0)
	s1 := b.fixUnsignedNegate(src1)

	return SetCondMod(c, b.Emit2(op, ir.Retype(dst, t), s0, s1))
}

// MinMax selects src0 if src0 c src1, otherwise src1.
func (b Builder) MinMax(dst, src0, src1 ir.Reg, c ir.CondMod) *ir.Inst {
	check.Assert(c == ir.CondGE || c == ir.CondL, "minmax condition %v", c)

	s0 := b.fixUnsignedNegate(src0)
	s1 := b.fixUnsignedNegate(src1)

	return SetCondMod(c, b.Sel(dst, s0, s1))
}

// Csel emits dst = src2 c 0.0 ? src0 : src1. Float only.
func (b Builder) Csel(dst, src0, src1, src2 ir.Reg, c ir.CondMod) *ir.Inst {
	check.Assert(src2.Type == ir.F, "csel condition type %v", src2.Type)

	return SetCondMod(c, b.Emit3(ir.OpCSEL,
		ir.Retype(dst, ir.F),
		ir.Retype(src0, ir.F),
		ir.Retype(src1, ir.F),
		src2))
}

func (b Builder) If(p ir.Predicate) *ir.Inst {
	return SetPredicate(p, b.Control(ir.OpIF))
}

// Lrp emits dst = x*(1-a) + y*a.
func (b Builder) Lrp(dst, x, y, a ir.Reg) *ir.Inst {
	if b.sh.Dev.Ver <= 10 {
		// LRP computes op1*op0 + op2*(1-op0).
		return b.Emit3(ir.OpLRP, dst, a, y, x)
	}

	yTimesA := b.VGRF(dst.Type, 1)
	oneMinusA := b.VGRF(dst.Type, 1)
	xTimesOneMinusA := b.VGRF(dst.Type, 1)

	b.Mul(yTimesA, y, a)
	b.Add(oneMinusA, ir.Negate(a), ir.ImmF(1))
	b.Mul(xTimesOneMinusA, x, oneMinusA)

	return b.Add(dst, xTimesOneMinusA, yTimesA)
}

// LoadPayload gathers srcs into consecutive components of dst.
// The first header sources are whole registers.
func (b Builder) LoadPayload(dst ir.Reg, srcs []ir.Reg, header int) *ir.Inst {
	inst := b.EmitN(ir.OpLoadPayload, dst, srcs)

	inst.HeaderSize = header
	inst.SizeWritten = header * ir.RegSize

	for _, s := range srcs[header:] {
		inst.SizeWritten += b.width * s.Type.Size() * dst.Stride
	}

	return inst
}

// Vec moves srcs into consecutive components of dst.
func (b Builder) Vec(dst ir.Reg, srcs []ir.Reg) {
	for i, s := range srcs {
		b.Mov(ir.Offset(dst, b.width, i), s)
	}
}

func (b Builder) MoveToVGRF(src ir.Reg, n int) ir.Reg {
	comps := make([]ir.Reg, n)

	for i := range comps {
		comps[i] = ir.Offset(src, b.width, i)
	}

	dst := b.VGRF(src.Type, n)
	b.LoadPayload(dst, comps, 0)

	return dst
}

// Uniformize copies src from any live channel into component 0 of the
// result.
func (b Builder) Uniformize(src ir.Reg) ir.Reg {
	// Vector registers here rather than scalars let copy propagation
	// fold the result into the consumer.
	ubld := b.ExecAll(true)
	chanIndex := b.VGRF(ir.UD, 1)
	dst := b.VGRF(src.Type, 1)

	ubld.Emit0(ir.OpFindLiveChannel, chanIndex)
	ubld.Emit2(ir.OpBroadcast, dst, src, ir.Component(chanIndex, 0))

	return ir.Component(dst, 0)
}

func (b Builder) Sync(fn uint32) *ir.Inst {
	return b.Emit1(ir.OpSYNC, b.NullUD(), ir.ImmUD(fn))
}

// Undef marks dst up to the end of its virtual register as undefined.
func (b Builder) Undef(dst ir.Reg) *ir.Inst {
	check.Assert(dst.File == ir.VGRF, "undef of %v", dst)
	check.Assert(dst.Offset%ir.RegSize == 0, "undef of %v at unaligned offset", dst)

	inst := b.Emit0(ir.OpUndef, ir.Retype(dst, ir.UD))
	inst.SizeWritten = b.sh.Alloc.Sizes[dst.Nr]*ir.RegSize - dst.Offset

	return inst
}

// UndefForDst marks what old writes as undefined.
func (b Builder) UndefForDst(old *ir.Inst) *ir.Inst {
	check.Assert(old.Dst.File == ir.VGRF, "undef of %v", old.Dst)

	inst := b.Emit0(ir.OpUndef, ir.Retype(old.Dst, ir.UD))
	inst.SizeWritten = old.SizeWritten

	return inst
}

func (b Builder) Dpas(dst, src0, src1, src2 ir.Reg, sdepth, rcount int) *ir.Inst {
	unit := ir.RegUnit(b.sh.Dev)

	check.Assert(b.width == 8*unit, "dpas in SIMD%d", b.width)
	check.Assert(sdepth == 8, "dpas sdepth %d", sdepth)
	check.Assert(rcount == 1 || rcount == 2 || rcount == 4 || rcount == 8, "dpas rcount %d", rcount)

	inst := b.Emit3(ir.OpDPAS, dst, src0, src1, src2)
	inst.Sdepth = sdepth
	inst.Rcount = rcount

	inst.SizeWritten = unit * rcount * ir.RegSize
	if dst.Type == ir.HF {
		inst.SizeWritten /= 2
	}

	return inst
}

// fixUnsignedNegate moves a negated UD source into a temporary: the
// negation of an unsigned value is not representable in place.
func (b Builder) fixUnsignedNegate(src ir.Reg) ir.Reg {
	if src.Type != ir.UD || !src.Negate {
		return src
	}

	tmp := b.VGRF(ir.UD, 1)
	b.Mov(tmp, src)

	return tmp
}

// fix3SrcOperand moves sources the ternary encoding can't address into
// a temporary.
func (b Builder) fix3SrcOperand(src ir.Reg) ir.Reg {
	switch src.File {
	case ir.FixedGRF:
		if src.VStride == ir.VStride8 && src.Width == ir.Width8 && src.HStride == ir.HStride1 {
			return src
		}
	case ir.Attr, ir.VGRF, ir.Uniform, ir.Imm:
		return src
	}

	expanded := b.VGRF(src.Type, 1)
	b.Mov(expanded, src)

	return expanded
}
