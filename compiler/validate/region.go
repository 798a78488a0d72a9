package validate

import (
	"github.com/slowlang/simd/compiler/ir"
)

type (
	// region is what the special restrictions are stated in terms of.
	region struct {
		v, w, h int

		stride  int
		uniform bool

		srcSubnr int
		dstSubnr int
	}

	// regionRule lists the allowed cases for one source/destination
	// element size pair. dstStride and width narrow the rule further;
	// -1 matches anything.
	regionRule struct {
		srcSize   int
		dstSize   int
		dstStride int
		width     int
		notWidth  int

		allow []func(r region) bool
	}
)

// "Src0 Restrictions" of "Special Restrictions", register region rules
// for Xe2. Rows are tried in order; the first matching row decides.
var src0Rules = []regionRule{
	{srcSize: 2, dstSize: 2, dstStride: -1, width: -1, notWidth: -1, allow: []func(region) bool{
		func(r region) bool { return r.stride < 2 },
		func(r region) bool { return r.stride == 2 && r.uniform && r.dstSubnr%16 == r.srcSubnr/2 },
	}},
	{srcSize: 2, dstSize: 1, dstStride: 2, width: -1, notWidth: -1, allow: []func(region) bool{
		func(r region) bool { return r.stride < 2 },
		func(r region) bool { return r.stride == 2 && r.uniform && r.dstSubnr%32 == r.srcSubnr },
	}},
	{srcSize: 1, dstSize: 2, dstStride: -1, width: -1, notWidth: -1, allow: []func(region) bool{
		func(r region) bool { return r.stride < 4 },
		func(r region) bool { return r.stride == 4 && r.uniform && (2*r.dstSubnr)%16 == r.srcSubnr/2 },
		func(r region) bool { return r.stride == 8 && r.uniform && (2*r.dstSubnr)%8 == r.srcSubnr/4 },
	}},
	{srcSize: 1, dstSize: 1, dstStride: 2, width: -1, notWidth: -1, allow: []func(region) bool{
		func(r region) bool { return r.stride < 4 },
		func(r region) bool { return r.stride == 4 && r.uniform && r.dstSubnr%32 == r.srcSubnr/2 },
		func(r region) bool { return r.stride == 8 && r.uniform && r.dstSubnr%16 == r.srcSubnr/4 },
	}},
	{srcSize: 1, dstSize: 1, dstStride: 1, width: -1, notWidth: 2, allow: []func(region) bool{
		func(r region) bool { return r.stride < 2 },
		func(r region) bool { return r.stride == 2 && r.uniform && r.dstSubnr%32 == r.srcSubnr/2 },
		func(r region) bool { return r.stride == 4 && r.uniform && r.dstSubnr%16 == r.srcSubnr/4 },
	}},
	{srcSize: 1, dstSize: 1, dstStride: 1, width: 2, notWidth: -1, allow: []func(region) bool{
		func(r region) bool { return r.h == 0 && r.v < 4 },
		func(r region) bool { return r.h == 1 && r.v < 4 },
		func(r region) bool { return r.h == 2 && r.v < 2 },
		func(r region) bool {
			return r.h == 1 && r.v == 4 && r.dstSubnr%32 == 2*(r.srcSubnr/4) && r.srcSubnr%2 == 0
		},
		func(r region) bool { return r.h == 2 && r.v == 4 && r.dstSubnr%32 == r.srcSubnr/2 },
		func(r region) bool { return r.h == 4 && r.v == 8 && r.dstSubnr%32 == r.srcSubnr/4 },
	}},
}

// "Src1 Restrictions": a subset of the source 0 rules.
var src1Rules = src0Rules[:2]

// RegionAllowed reports whether the region of source i (0 or 1) of inst
// is legal against its destination on Xe2.
func RegionAllowed(inst *ir.Inst, i int) bool {
	src := inst.Src[i]
	dst := inst.Dst

	rules := src0Rules
	if i == 1 {
		rules = src1Rules
	}

	var r region

	r.v = 1 << (max(int(src.VStride), 1) - 1)
	r.w = 1 << src.Width
	r.h = 1 << (max(int(src.HStride), 1) - 1)

	// Neither is possible without the address register in the IR.
	isVx1 := false
	isVxH := false

	if r.w == 1 {
		r.stride = r.v
	} else {
		r.stride = r.h
	}

	r.uniform = r.w == 1 || r.h*r.w == r.v || isVx1
	r.srcSubnr = src.Subnr
	r.dstSubnr = dst.Subnr

	dstStride := int(dst.HStride)
	srcSize := src.Type.Size()
	dstSize := dst.Type.Size()

	dstDwordAligned := dstSize >= 4 ||
		dstSize == 2 && dst.Subnr%2 == 0 ||
		dstSize == 1 && dst.Subnr%4 == 0

	// One element per dword channel.
	if dstSize >= 4 ||
		srcSize >= 4 ||
		dstSize == 2 && dstStride > 1 ||
		dstSize == 1 && dstStride > 2 ||
		isVxH && i == 0 {
		return true
	}

	if !r.uniform && !dstDwordAligned {
		return false
	}

	for _, rule := range rules {
		if !rule.match(srcSize, dstSize, dstStride, r.w) {
			continue
		}

		for _, ok := range rule.allow {
			if ok(r) {
				return true
			}
		}

		return false
	}

	return false
}

func (rule regionRule) match(srcSize, dstSize, dstStride, w int) bool {
	return rule.srcSize == srcSize &&
		rule.dstSize == dstSize &&
		(rule.dstStride == -1 || rule.dstStride == dstStride) &&
		(rule.width == -1 || rule.width == w) &&
		(rule.notWidth == -1 || rule.notWidth != w)
}
