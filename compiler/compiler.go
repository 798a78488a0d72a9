package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/simd/compiler/ir"
	"github.com/slowlang/simd/compiler/validate"
)

type (
	// Pass transforms a shader in place.
	Pass struct {
		Name string
		Run  func(ctx context.Context, sh *ir.Shader) error
	}
)

// Run runs passes over sh in order, checking the general invariants
// before the first pass and after each one, and the late invariants at
// the end. Invariant violations panic with *check.Error.
func Run(ctx context.Context, sh *ir.Shader, passes ...Pass) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "stage", sh.Stage, "dev", sh.Dev, "simd", sh.DispatchWidth, "passes", len(passes))
	defer tr.Finish("err", &err)

	validate.General(ctx, sh)

	for _, p := range passes {
		err = runPass(ctx, sh, p)
		if err != nil {
			return errors.Wrap(err, "pass %v", p.Name)
		}

		validate.General(ctx, sh)
	}

	validate.Late(ctx, sh)

	return nil
}

func runPass(ctx context.Context, sh *ir.Shader, p Pass) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "pass", "name", p.Name)
	defer tr.Finish("err", &err)

	err = p.Run(ctx, sh)
	if err != nil {
		return err
	}

	if tr.If("dump_insts") {
		sh.CFG.Range(func(b *ir.Block, inst *ir.Inst) bool {
			tr.Printw("inst", "block", b.Num, "inst", inst)
			return true
		})
	}

	return nil
}
