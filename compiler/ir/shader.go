package ir

import (
	"github.com/slowlang/simd/compiler/devinfo"
)

type (
	// Alloc is the virtual register table: vgrf id to size in storage units.
	// It only grows.
	Alloc struct {
		Sizes []int
	}

	// Shader is the state of one in-flight shader compilation.
	Shader struct {
		Dev   *devinfo.Info
		Stage string

		DispatchWidth int

		Alloc Alloc
		CFG   *CFG

		// GRFUsed is nonzero once registers are allocated.
		GRFUsed int
	}
)

func (a *Alloc) Allocate(size int) int {
	a.Sizes = append(a.Sizes, size)

	return len(a.Sizes) - 1
}

func (a *Alloc) Count() int { return len(a.Sizes) }

// NewShader creates a shader with one empty block.
func NewShader(dev *devinfo.Info, stage string, width int) *Shader {
	sh := &Shader{
		Dev:           dev,
		Stage:         stage,
		DispatchWidth: width,
		CFG:           NewCFG(),
	}

	sh.CFG.NewBlock()

	return sh
}

// RegUnit is the allocation granularity of the register file in RegSize units.
func RegUnit(dev *devinfo.Info) int {
	if dev.Ver >= 20 {
		return 2
	}

	return 1
}

// PhysSubnr is the byte offset of r inside its physical register.
func PhysSubnr(dev *devinfo.Info, r Reg) int {
	if RegUnit(dev) == 2 {
		return r.Subnr + r.Nr%2*RegSize
	}

	return r.Subnr
}
