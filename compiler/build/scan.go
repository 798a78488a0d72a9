package build

import (
	"github.com/slowlang/simd/compiler/check"
	"github.com/slowlang/simd/compiler/ir"
)

// ScanStep combines channel leftOffset+k*leftStride into channel
// rightOffset+k*rightStride of buf, for each k of the builder width:
//
//	right = op(left, right)
//
// 64-bit integer SEL is built from 32-bit compares on devices without
// native 64-bit integer support.
func (b Builder) ScanStep(op ir.Opcode, c ir.CondMod, buf ir.Reg, leftOffset, leftStride, rightOffset, rightStride int) {
	left := ir.HorizStride(ir.HorizOffset(buf, leftOffset), leftStride)
	right := ir.HorizStride(ir.HorizOffset(buf, rightOffset), rightStride)

	dev := b.sh.Dev

	if (buf.Type == ir.Q || buf.Type == ir.UQ) && (!dev.Has64bitInt || dev.Ver >= 20) {
		switch op {
		case ir.OpMUL:
			// lowered by integer multiply lowering
			SetCondMod(c, b.Emit2(op, right, left, right))
		case ir.OpSEL:
			b.scanStepSel64(c, left, right, buf.Type)
		default:
			check.Assert(false, "unsupported 64-bit scan op %v", op)
		}

		return
	}

	SetCondMod(c, b.Emit2(op, right, left, right))
}

func (b Builder) scanStepSel64(c ir.CondMod, left, right ir.Reg, t ir.Type) {
	check.Assert(c == ir.CondL || c == ir.CondGE, "64-bit scan condition %v", c)

	// Comparisons must be strict for the lexicographic combination below.
	if c == ir.CondGE {
		c = ir.CondG
	}

	// The low half is unsigned regardless of the signedness of t.
	rightLow := ir.Subscript(right, ir.UD, 0)
	leftLow := ir.Subscript(left, ir.UD, 0)

	t32 := t.WithSize(32)
	rightHigh := ir.Subscript(right, t32, 1)
	leftHigh := ir.Subscript(left, t32, 1)

	// l_hi c r_hi || (l_hi == r_hi && l_lo c r_lo)
	b.Cmp(b.NullUD(), leftLow, rightLow, c)
	SetPredicate(ir.PredNormal, b.Cmp(b.NullUD(), leftHigh, rightHigh, ir.CondEQ))
	SetPredicateInv(ir.PredNormal, true, b.Cmp(b.NullUD(), leftHigh, rightHigh, c))

	SetPredicate(ir.PredNormal, b.Mov(rightLow, leftLow))
	SetPredicate(ir.PredNormal, b.Mov(rightHigh, leftHigh))
}

// Scan computes an inclusive scan of op over buf in place, separately
// for each cluster of clusterSize adjacent channels.
func (b Builder) Scan(op ir.Opcode, buf ir.Reg, clusterSize int, c ir.CondMod) {
	check.Assert(b.width >= 8, "scan in SIMD%d", b.width)

	width := b.width
	size := buf.Type.Size()

	// Split what doesn't fit two registers by hand.
	if width*size > 2*ir.RegSize {
		half := width / 2
		ubld := b.ExecAll(true).Group(half, 0)

		left := buf
		right := ir.HorizOffset(buf, half)

		ubld.Scan(op, left, clusterSize, c)
		ubld.Scan(op, right, clusterSize, c)

		if clusterSize > half {
			ubld.ScanStep(op, c, buf, half-1, 0, half, 1)
		}

		return
	}

	if clusterSize > 1 {
		ubld := b.ExecAll(true).Group(width/2, 0)
		ubld.ScanStep(op, c, buf, 0, 2, 1, 2)
	}

	if clusterSize > 2 {
		if size <= 4 {
			ubld := b.ExecAll(true).Group(width/4, 0)
			ubld.ScanStep(op, c, buf, 1, 4, 2, 4)
			ubld.ScanStep(op, c, buf, 1, 4, 3, 4)
		} else {
			// A destination stride of 4 qwords is not encodable.
			// 64-bit scans are 8 wide here, so the same count of 2-wide
			// steps does it.
			ubld := b.ExecAll(true).Group(2, 0)

			for i := 0; i < width; i += 4 {
				ubld.ScanStep(op, c, buf, i+1, 0, i+2, 1)
			}
		}
	}

	for i := 4; i < min(clusterSize, width); i *= 2 {
		ubld := b.ExecAll(true).Group(i, 0)
		ubld.ScanStep(op, c, buf, i-1, 0, i, 1)

		if width > i*2 {
			ubld.ScanStep(op, c, buf, i*3-1, 0, i*3, 1)
		}

		if width > i*4 {
			ubld.ScanStep(op, c, buf, i*5-1, 0, i*5, 1)
			ubld.ScanStep(op, c, buf, i*7-1, 0, i*7, 1)
		}
	}
}
