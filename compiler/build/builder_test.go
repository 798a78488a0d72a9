//go:build !release

package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/simd/compiler/check"
	"github.com/slowlang/simd/compiler/devinfo"
	"github.com/slowlang/simd/compiler/ir"
)

func newShader(t testing.TB, dev string, width int) *ir.Shader {
	t.Helper()

	d, err := devinfo.Lookup(dev)
	require.NoError(t, err)

	return ir.NewShader(d, "test", width)
}

func insts(sh *ir.Shader) []*ir.Inst {
	return sh.CFG.Last().Insts()
}

func TestVGRFSize(t *testing.T) {
	for _, dev := range []string{"tgl", "lnl"} {
		unit := 1
		if dev == "lnl" {
			unit = 2
		}

		for _, width := range []int{1, 8, 16, 32} {
			for _, typ := range []ir.Type{ir.UB, ir.W, ir.HF, ir.F, ir.D, ir.DF, ir.Q} {
				for _, n := range []int{1, 2, 3, 4} {
					sh := newShader(t, dev, width)
					b := New(sh)

					r := b.VGRF(typ, n)

					bytes := n * typ.Size() * width
					exp := (bytes + unit*ir.RegSize - 1) / (unit * ir.RegSize) * unit

					size := sh.Alloc.Sizes[r.Nr]

					assert.Equal(t, exp, size, "%s simd%d %d x %v", dev, width, n, typ)
					assert.GreaterOrEqual(t, size*ir.RegSize, bytes)
					assert.Zero(t, size%unit)
					assert.Equal(t, typ, r.Type)
					assert.Equal(t, 1, r.Stride)
				}
			}
		}
	}

	sh := newShader(t, "tgl", 8)
	null := New(sh).VGRF(ir.F, 0)

	assert.True(t, null.IsNull())
	assert.Equal(t, ir.F, null.Type)
	assert.Equal(t, 0, sh.Alloc.Count())
}

func TestGroup(t *testing.T) {
	sh := newShader(t, "tgl", 32)
	b := New(sh)

	for n := 1; n <= 32; n *= 2 {
		for i := 0; i < 32/n; i++ {
			g := b.Group(n, i)

			assert.Equal(t, n, g.DispatchWidth())
			assert.Equal(t, i*n, g.GroupBase())
			assert.False(t, g.NoMask())
		}
	}

	q := b.Group(16, 1).Quarter(1)
	assert.Equal(t, 8, q.DispatchWidth())
	assert.Equal(t, 24, q.GroupBase())

	// Derivation does not change the parent.
	assert.Equal(t, 32, b.DispatchWidth())
	assert.Equal(t, 0, b.GroupBase())
}

func TestGroupEmpty(t *testing.T) {
	sh := newShader(t, "tgl", 8)

	e := check.Catch(func() {
		New(sh).ExecAll(true).Group(0, 0)
	})
	require.NotNil(t, e)
	assert.Contains(t, e.Msg, "channel group of 0 channels")
}

func TestGroupOutsideNeedsNoMask(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	e := check.Catch(func() {
		b.Group(16, 0)
	})
	require.NotNil(t, e)
	assert.Contains(t, e.Msg, "execution masking")

	e = check.Catch(func() {
		b.Group(8, 1)
	})
	require.NotNil(t, e)

	var g Builder

	e = check.Catch(func() {
		g = New(newShader(t, "tgl", 16)).Quarter(1).ExecAll(true).Group(16, 0)
	})
	require.Nil(t, e)

	assert.Equal(t, 16, g.DispatchWidth())
	assert.Equal(t, 0, g.GroupBase())
	assert.True(t, g.NoMask())
}

func TestExecAll(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh)

	assert.False(t, b.ExecAll(false).NoMask())
	assert.True(t, b.ExecAll(true).NoMask())
	assert.True(t, b.ExecAll(true).ExecAll(false).NoMask())
	assert.True(t, b.ExecAll(true).Group(8, 1).NoMask())
	assert.False(t, b.NoMask())
}

func TestEmitStampsControls(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh).Group(8, 1).Annotate("half", 42)

	x := b.VGRF(ir.F, 1)
	inst := b.Mov(x, ir.ImmF(1))

	assert.Equal(t, 8, inst.ExecSize)
	assert.Equal(t, 8, inst.Group)
	assert.False(t, inst.ForceWriteMaskAll)
	assert.Equal(t, "half", inst.Annotation)
	assert.Equal(t, 42, inst.IR)
	assert.Equal(t, 32, inst.SizeWritten)

	ubld := New(sh).ExecAll(true).Group(1, 0)
	u := ubld.Mov(ir.Component(x, 0), ir.ImmF(2))

	assert.Equal(t, 1, u.ExecSize)
	assert.True(t, u.ForceWriteMaskAll)

	assert.Equal(t, []*ir.Inst{inst, u}, insts(sh))
}

func TestEmitExecSize(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	e := check.Catch(func() {
		b.Insert(ir.NewInst(ir.OpMOV, 16, b.VGRF(ir.F, 2), b.VGRF(ir.F, 2)))
	})
	require.NotNil(t, e)

	e = check.Catch(func() {
		b.ExecAll(true).Insert(ir.NewInst(ir.OpMOV, 16, b.VGRF(ir.F, 2), b.VGRF(ir.F, 2)))
	})
	assert.Nil(t, e)

	e = check.Catch(func() {
		b.ExecAll(true).Insert(ir.NewInst(ir.OpMOV, 64, ir.NullReg(), ir.ImmUD(0)))
	})
	assert.NotNil(t, e)

	e = check.Catch(func() {
		NewWidth(sh, 64).VGRF(ir.F, 1)
	})
	assert.NotNil(t, e)
}

func TestCursor(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.F, 1)
	first := b.Mov(x, ir.ImmF(1))
	last := b.Mov(x, ir.ImmF(3))

	mid := FromInst(sh, sh.CFG.Last(), last).Mov(x, ir.ImmF(2))

	assert.Equal(t, []*ir.Inst{first, mid, last}, insts(sh))

	before := New(sh).At(sh.CFG.Last(), first).Nop()

	assert.Equal(t, []*ir.Inst{before, first, mid, last}, insts(sh))
}

func TestFromInst(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh).ExecAll(true).Group(4, 0).Annotate("x", nil)

	inst := b.Nop()

	f := FromInst(sh, sh.CFG.Last(), inst)

	assert.Equal(t, 4, f.DispatchWidth())
	assert.Equal(t, 0, f.GroupBase())
	assert.True(t, f.NoMask())
	assert.Equal(t, inst, f.Cursor())
	assert.Equal(t, sh.CFG.Last(), f.Block())
	assert.Equal(t, sh, f.Shader())

	f.Nop()

	l := insts(sh)
	require.Len(t, l, 2)
	assert.Equal(t, "x", l[0].Annotation)
}

func TestFix3SrcOperand(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	dst := b.VGRF(ir.F, 1)
	x := b.VGRF(ir.F, 1)
	y := ir.Vec8(10, ir.F)
	z := ir.Vec1(11, 4, ir.F)

	mad := b.Mad(dst, x, y, z)

	l := insts(sh)
	require.Len(t, l, 2)

	mov := l[0]
	assert.Equal(t, ir.OpMOV, mov.Opcode)
	assert.Equal(t, z, mov.Src[0])
	assert.Equal(t, ir.VGRF, mov.Dst.File)

	assert.Equal(t, x, mad.Src[0])
	assert.Equal(t, y, mad.Src[1])
	assert.Equal(t, mov.Dst, mad.Src[2])

	// Not every ternary op is legalized.
	sh = newShader(t, "tgl", 8)
	b = New(sh)

	b.ALU3(ir.OpADD3, b.VGRF(ir.D, 1), ir.Vec1(1, 0, ir.D), ir.Vec1(2, 0, ir.D), ir.ImmD(1))
	assert.Len(t, insts(sh), 1)
}

func TestFixUnsignedNegate(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.UD, 1)

	b.Cmp(b.NullUD(), ir.Negate(x), ir.ImmUD(3), ir.CondL)

	l := insts(sh)
	require.Len(t, l, 2)
	assert.Equal(t, ir.OpMOV, l[0].Opcode)
	assert.True(t, l[0].Src[0].Negate)
	assert.Equal(t, l[0].Dst, l[1].Src[0])
	assert.False(t, l[1].Src[0].Negate)

	sh = newShader(t, "tgl", 8)
	b = New(sh)

	b.Cmp(b.NullD(), ir.Negate(b.VGRF(ir.D, 1)), ir.ImmD(3), ir.CondL)
	assert.Len(t, insts(sh), 1)
}

func TestCmpTypes(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	f := b.VGRF(ir.F, 1)
	df := b.VGRF(ir.DF, 1)

	cmp := b.Cmp(b.NullUD(), f, ir.ImmF(0), ir.CondGE)
	assert.Equal(t, ir.F, cmp.Dst.Type)
	assert.True(t, cmp.Dst.IsNull())
	assert.Equal(t, ir.CondGE, cmp.CondMod)

	cmp = b.Cmp(b.VGRF(ir.UD, 1), f, ir.ImmF(0), ir.CondL)
	assert.Equal(t, ir.F, cmp.Dst.Type)

	cmp = b.Cmp(b.VGRF(ir.UQ, 1), f, ir.ImmF(0), ir.CondL)
	assert.Equal(t, ir.DF, cmp.Dst.Type)

	cmp = b.Cmp(b.VGRF(ir.UD, 1), df, ir.ImmDF(0), ir.CondL)
	assert.Equal(t, ir.F, cmp.Dst.Type)

	cmp = b.Cmp(b.VGRF(ir.W, 1), b.VGRF(ir.UD, 1), ir.ImmUD(0), ir.CondNZ)
	assert.Equal(t, ir.UW, cmp.Dst.Type)

	cmp = b.Cmpn(b.NullD(), df, df, ir.CondNZ)
	assert.Equal(t, ir.OpCMPN, cmp.Opcode)
	assert.Equal(t, ir.DF, cmp.Dst.Type)
}

func TestMinMax(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.D, 1)

	sel := b.MinMax(x, x, ir.ImmD(0), ir.CondGE)
	assert.Equal(t, ir.OpSEL, sel.Opcode)
	assert.Equal(t, ir.CondGE, sel.CondMod)

	e := check.Catch(func() {
		b.MinMax(x, x, ir.ImmD(0), ir.CondZ)
	})
	assert.NotNil(t, e)
}

func TestALU2New(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh)

	dst, inst := b.ALU2New(ir.OpADD, b.VGRF(ir.D, 1), b.VGRF(ir.Q, 1))
	assert.Equal(t, ir.Q, dst.Type)
	assert.Equal(t, dst, inst.Dst)
	assert.Equal(t, 4, sh.Alloc.Sizes[dst.Nr])

	dst, _ = b.ALU2New(ir.OpADD, b.VGRF(ir.UD, 1), b.VGRF(ir.D, 1))
	assert.Equal(t, ir.UD, dst.Type)

	dst, _ = b.ALU1New(ir.OpNOT, b.VGRF(ir.UW, 1))
	assert.Equal(t, ir.UW, dst.Type)

	e := check.Catch(func() {
		b.ALU2New(ir.OpADDC, b.VGRF(ir.UD, 1), b.VGRF(ir.UD, 1))
	})
	assert.NotNil(t, e)

	e = check.Catch(func() {
		b.ALU2(ir.OpMOV, b.VGRF(ir.UD, 1), b.VGRF(ir.UD, 1), b.VGRF(ir.UD, 1))
	})
	assert.NotNil(t, e)
}

func TestWritesAccumulator(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.UD, 1)

	assert.True(t, b.ALU2(ir.OpADDC, x, x, x).WritesAccumulator)
	assert.True(t, b.ALU2(ir.OpMACH, x, x, x).WritesAccumulator)
	assert.False(t, b.Add(x, x, x).WritesAccumulator)
}

func TestALU1ZeroStride(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.F, 1)

	e := check.Catch(func() {
		b.Mov(ir.Component(x, 0), ir.ImmF(0))
	})
	assert.NotNil(t, e)

	e = check.Catch(func() {
		b.ExecAll(true).Group(1, 0).Mov(ir.Component(x, 0), ir.ImmF(0))
	})
	assert.Nil(t, e)
}

func TestSub(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.F, 1)

	add := b.Sub(x, x, ir.ImmF(1))
	assert.Equal(t, ir.OpADD, add.Opcode)
	assert.Equal(t, ir.ImmF(-1), add.Src[1])

	add = b.Sub(x, x, x)
	assert.True(t, add.Src[1].Negate)
}

func TestLrp(t *testing.T) {
	for _, tc := range []struct {
		dev   string
		insts int
	}{
		{"skl", 1},
		{"icl", 4},
		{"tgl", 4},
		{"lnl", 4},
	} {
		sh := newShader(t, tc.dev, 8)
		b := New(sh)

		x := b.VGRF(ir.F, 1)
		y := b.VGRF(ir.F, 1)
		a := b.VGRF(ir.F, 1)
		dst := b.VGRF(ir.F, 1)

		last := b.Lrp(dst, x, y, a)

		l := insts(sh)
		require.Len(t, l, tc.insts, tc.dev)
		assert.Equal(t, dst, last.Dst)

		if tc.insts == 1 {
			assert.Equal(t, ir.OpLRP, last.Opcode)
			assert.Equal(t, []ir.Reg{a, y, x}, last.Src)

			continue
		}

		assert.Equal(t, ir.OpMUL, l[0].Opcode)
		assert.Equal(t, []ir.Reg{y, a}, l[0].Src)

		assert.Equal(t, ir.OpADD, l[1].Opcode)
		assert.Equal(t, ir.Negate(a), l[1].Src[0])
		assert.Equal(t, ir.ImmF(1), l[1].Src[1])

		assert.Equal(t, ir.OpMUL, l[2].Opcode)
		assert.Equal(t, []ir.Reg{x, l[1].Dst}, l[2].Src)

		assert.Equal(t, ir.OpADD, last.Opcode)
		assert.Equal(t, []ir.Reg{l[2].Dst, l[0].Dst}, last.Src)
	}
}

func TestLoadPayload(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh)

	hdr := b.VGRF(ir.UD, 1)
	f := b.VGRF(ir.F, 1)
	hf := b.VGRF(ir.HF, 1)
	q := b.VGRF(ir.UQ, 1)

	dst := b.VGRF(ir.UD, 8)

	inst := b.ExecAll(true).LoadPayload(dst, []ir.Reg{hdr, f, hf, q}, 1)

	assert.Equal(t, ir.OpLoadPayload, inst.Opcode)
	assert.Equal(t, 1, inst.HeaderSize)
	assert.Equal(t, 32+16*4+16*2+16*8, inst.SizeWritten)
	assert.Equal(t, 4, inst.Sources())

	inst = b.LoadPayload(ir.HorizStride(dst, 2), []ir.Reg{f}, 0)
	assert.Equal(t, 16*4*2, inst.SizeWritten)
}

func TestMoveToVGRF(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	src := b.VGRF(ir.F, 3)
	dst := b.MoveToVGRF(src, 3)

	l := insts(sh)
	require.Len(t, l, 1)

	assert.Equal(t, dst, l[0].Dst)
	assert.Equal(t, []ir.Reg{src, ir.Offset(src, 8, 1), ir.Offset(src, 8, 2)}, l[0].Src)
	assert.Equal(t, 3*32, l[0].SizeWritten)
	assert.Equal(t, 3, sh.Alloc.Sizes[dst.Nr])
}

func TestVec(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	dst := b.VGRF(ir.F, 2)
	b.Vec(dst, []ir.Reg{ir.ImmF(1), ir.ImmF(2)})

	l := insts(sh)
	require.Len(t, l, 2)
	assert.Equal(t, dst, l[0].Dst)
	assert.Equal(t, ir.Offset(dst, 8, 1), l[1].Dst)
}

func TestUniformize(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh)

	src := b.VGRF(ir.F, 1)
	res := b.Uniformize(src)

	l := insts(sh)
	require.Len(t, l, 2)

	assert.Equal(t, ir.OpFindLiveChannel, l[0].Opcode)
	assert.Equal(t, ir.OpBroadcast, l[1].Opcode)

	for _, inst := range l {
		assert.True(t, inst.ForceWriteMaskAll)
		assert.Equal(t, 16, inst.ExecSize)
	}

	assert.Equal(t, ir.Component(l[0].Dst, 0), l[1].Src[1])
	assert.Equal(t, src, l[1].Src[0])
	assert.Equal(t, ir.Component(l[1].Dst, 0), res)
	assert.True(t, res.IsUniform())
}

func TestUndef(t *testing.T) {
	sh := newShader(t, "tgl", 16)
	b := New(sh)

	x := b.VGRF(ir.F, 3)

	inst := b.Undef(x)
	assert.Equal(t, ir.OpUndef, inst.Opcode)
	assert.Equal(t, ir.UD, inst.Dst.Type)
	assert.Equal(t, 6*32, inst.SizeWritten)

	inst = b.Undef(ir.Offset(x, 16, 1))
	assert.Equal(t, 4*32, inst.SizeWritten)

	mov := b.Mov(ir.Offset(x, 16, 2), ir.ImmF(0))
	inst = b.UndefForDst(mov)
	assert.Equal(t, mov.SizeWritten, inst.SizeWritten)

	e := check.Catch(func() {
		b.Undef(ir.Vec8(1, ir.F))
	})
	assert.NotNil(t, e)
}

func TestDpas(t *testing.T) {
	sh := newShader(t, "lnl", 16)
	b := New(sh)

	dst := b.VGRF(ir.F, 8)
	inst := b.Dpas(dst, dst, b.VGRF(ir.HF, 8), b.VGRF(ir.HF, 8), 8, 8)
	assert.Equal(t, 2*8*32, inst.SizeWritten)
	assert.Equal(t, 8, inst.Rcount)

	e := check.Catch(func() {
		New(newShader(t, "lnl", 8)).Dpas(dst, dst, dst, dst, 8, 8)
	})
	assert.NotNil(t, e)
}

func TestControlFlow(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	b.Do()
	SetPredicate(ir.PredNormal, b.Break())
	b.Continue()
	b.While()
	b.If(ir.PredNormal)
	b.EndIf()
	b.Sync(0)

	var ops []ir.Opcode

	for _, inst := range insts(sh) {
		ops = append(ops, inst.Opcode)
	}

	assert.Equal(t, []ir.Opcode{ir.OpDO, ir.OpBREAK, ir.OpCONTINUE, ir.OpWHILE, ir.OpIF, ir.OpENDIF, ir.OpSYNC}, ops)
	assert.Equal(t, ir.PredNormal, insts(sh)[1].Predicate)
	assert.Equal(t, ir.PredNormal, insts(sh)[4].Predicate)
}

func TestCsel(t *testing.T) {
	sh := newShader(t, "tgl", 8)
	b := New(sh)

	x := b.VGRF(ir.D, 1)
	c := b.VGRF(ir.F, 1)

	inst := b.Csel(x, x, x, c, ir.CondGE)
	assert.Equal(t, ir.F, inst.Dst.Type)
	assert.Equal(t, ir.F, inst.Src[0].Type)
	assert.Equal(t, ir.CondGE, inst.CondMod)

	e := check.Catch(func() {
		b.Csel(x, x, x, x, ir.CondGE)
	})
	assert.NotNil(t, e)
}
