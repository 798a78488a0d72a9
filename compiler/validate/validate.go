// Package validate checks invariants of a finished instruction stream.
//
// Both passes are debug only: a violated invariant is a compiler bug,
// so it is reported with the offending instruction and the failed
// predicate and then panics with *check.Error. With the release build
// tag the passes do nothing.
package validate

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/simd/compiler/check"
	"github.com/slowlang/simd/compiler/devinfo"
	"github.com/slowlang/simd/compiler/ir"
)

type (
	validator struct {
		sh   *ir.Shader
		dev  *devinfo.Info
		inst *ir.Inst
	}
)

// General checks structural invariants of every instruction.
// It is meant to run after every optimization pass.
func General(ctx context.Context, sh *ir.Shader) {
	if !check.Enabled {
		return
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "validate", "stage", sh.Stage, "dev", sh.Dev)
	defer tr.Finish()

	v := &validator{sh: sh, dev: sh.Dev}

	err := sh.CFG.Validate()
	v.assert(err == nil, fmt.Sprintf("cfg.Validate(): %v", err))

	n := 0

	sh.CFG.Range(func(b *ir.Block, inst *ir.Inst) bool {
		v.inst = inst
		v.general()
		n++

		return true
	})

	tr.V("validate").Printw("general", "insts", n)
}

func (v *validator) general() {
	inst := v.inst
	dev := v.dev

	switch inst.Opcode {
	case ir.OpSEND:
		v.assert(inst.Sources() >= 2 && inst.Src[0].IsUniform() && inst.Src[1].IsUniform(),
			"is_uniform(src[0]) && is_uniform(src[1])")
	case ir.OpMOV:
		v.assertEq(inst.Sources(), 1, "inst.Sources()", "1")
	}

	// The "write the accumulator in addition to the destination" bit is
	// gone on Xe2.
	if dev.Ver >= 20 && inst.WritesAccumulator {
		v.assert(inst.Dst.IsAccumulator() ||
			inst.Opcode == ir.OpADDC ||
			inst.Opcode == ir.OpMACH ||
			inst.Opcode == ir.OpSUBB,
			"dst.IsAccumulator() || opcode in (addc, mach, subb)")
	}

	if inst.Is3Src() {
		v.ternary()
	}

	if inst.Dst.File == ir.VGRF {
		v.assertLte(inst.Dst.Nr, v.sh.Alloc.Count()-1, "dst.Nr", "alloc.Count()-1")
		v.assertLte(inst.Dst.Offset/ir.RegSize+inst.RegsWritten(), v.sh.Alloc.Sizes[inst.Dst.Nr],
			"dst.Offset/RegSize + RegsWritten()", "alloc.Sizes[dst.Nr]")
	}

	for i, src := range inst.Src {
		if src.File != ir.VGRF {
			continue
		}

		v.assertLte(src.Nr, v.sh.Alloc.Count()-1, fmt.Sprintf("src[%d].Nr", i), "alloc.Count()-1")
		v.assertLte(src.Offset/ir.RegSize+inst.RegsRead(i), v.sh.Alloc.Sizes[src.Nr],
			fmt.Sprintf("src[%d].Offset/RegSize + RegsRead(%d)", i, i), fmt.Sprintf("alloc.Sizes[src[%d].Nr]", i))
	}

	// Accumulator destination at offset 0 needs horizontal stride 1.
	if dev.Needs(devinfo.Wa14014617373) &&
		inst.Dst.IsAccumulator() &&
		ir.PhysSubnr(dev, inst.Dst) == 0 {
		v.assertEq(int(inst.Dst.HStride), ir.HStride1, "dst.HStride", "1")
	}

	// No scalar broadcast of HF sources in math. Copy propagation knows,
	// so nothing should produce it.
	if inst.IsMath() && dev.Needs(devinfo.Wa22016140776) {
		for _, src := range inst.Src {
			v.assert(!src.IsUniform() || src.Type != ir.HF, "!is_uniform(src) || src.Type != HF")
		}
	}
}

func (v *validator) ternary() {
	inst := v.inst
	dev := v.dev

	v.assertEq(inst.Sources(), 3, "inst.Sources()", "3")

	ints, floats := 0, 0

	for _, src := range inst.Src {
		if src.Type.IsInt() {
			ints++
		}

		if src.Type.IsFloat() {
			floats++
		}
	}

	v.assert(ints == 3 && floats == 0 || ints == 0 && floats == 3,
		"(integer_sources == 3 && float_sources == 0) || (integer_sources == 0 && float_sources == 3)")

	if dev.Ver >= 10 {
		for _, src := range inst.Src {
			if src.File == ir.Imm {
				continue
			}

			switch src.VStride {
			case ir.VStride0, ir.VStride4, ir.VStride8, ir.VStride16:
			case ir.VStride1:
				v.assertLte(12, dev.Ver, "12", "dev.Ver")
			case ir.VStride2:
				v.assertLte(dev.Ver, 11, "dev.Ver", "11")
			default:
				v.assert(false, "invalid vstride")
			}
		}

		return
	}

	// Before register allocation passes like constant propagation leave
	// invalid 3-source instructions for later passes to fix.
	if v.sh.GRFUsed == 0 {
		return
	}

	for i, src := range inst.Src {
		v.assertNe(int(src.File), int(ir.Imm), fmt.Sprintf("src[%d].File", i), "Imm")

		// Stride 1, or 0 with replicate control. 64-bit types can't
		// replicate.
		v.assertLte(int(src.VStride), 1, fmt.Sprintf("src[%d].VStride", i), "1")

		if src.Type.Size() > 4 {
			v.assertEq(int(src.VStride), 1, fmt.Sprintf("src[%d].VStride", i), "1")
		}
	}
}

// Late checks register region special restrictions. It is meant to run
// once after register allocation, right before encoding.
func Late(ctx context.Context, sh *ir.Shader) {
	if !check.Enabled {
		return
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "validate late", "stage", sh.Stage, "dev", sh.Dev)
	defer tr.Finish()

	v := &validator{sh: sh, dev: sh.Dev}

	if sh.Dev.Ver < 20 {
		return
	}

	sh.CFG.Range(func(b *ir.Block, inst *ir.Inst) bool {
		v.inst = inst

		if inst.Sources() > 0 && inst.Src[0].IsPhysical() {
			v.assert(RegionAllowed(inst, 0), "Invalid register region for source 0.")
		}

		if inst.Sources() > 1 && inst.Src[1].IsPhysical() {
			v.assert(RegionAllowed(inst, 1), "Invalid register region for source 1.")
		}

		return true
	})
}

func (v *validator) assert(ok bool, expr string) {
	if ok {
		return
	}

	v.fail(fmt.Sprintf("'%s' failed", expr))
}

func (v *validator) assertEq(a, b int, ea, eb string) {
	if a == b {
		return
	}

	v.fail(fmt.Sprintf("A == B failed\n  A = %s = %d\n  B = %s = %d", ea, a, eb, b))
}

func (v *validator) assertNe(a, b int, ea, eb string) {
	if a != b {
		return
	}

	v.fail(fmt.Sprintf("A != B failed\n  A = %s = %d\n  B = %s = %d", ea, a, eb, b))
}

func (v *validator) assertLte(a, b int, ea, eb string) {
	if a <= b {
		return
	}

	v.fail(fmt.Sprintf("A <= B failed\n  A = %s = %d\n  B = %s = %d", ea, a, eb, b))
}

// fail reports on behalf of the assert* caller.
func (v *validator) fail(msg string) {
	inst := ""
	if v.inst != nil {
		inst = v.inst.String()
	}

	check.Fail(2, inst, fmt.Sprintf("%s validation failed: %s", v.sh.Stage, msg))
}
