package ir

import (
	"math"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/tlog/tlwire"
)

func (r Reg) AppendText(b []byte) []byte {
	if r.Negate {
		b = append(b, '-')
	}

	if r.Abs {
		b = append(b, "(abs)"...)
	}

	switch r.File {
	case BadFile:
		return append(b, "(bad)"...)
	case VGRF, Attr:
		b = hfmt.Appendf(b, "%v%d", r.File, r.Nr)

		if r.Offset != 0 {
			b = hfmt.Appendf(b, "+%d", r.Offset)
		}

		b = hfmt.Appendf(b, "<%d>", r.Stride)
	case Uniform:
		b = hfmt.Appendf(b, "u%d", r.Nr)

		if r.Offset != 0 {
			b = hfmt.Appendf(b, "+%d", r.Offset)
		}
	case FixedGRF:
		b = hfmt.Appendf(b, "g%d.%d", r.Nr, r.elem())
		b = r.appendRegion(b)
	case ARF:
		switch r.Nr & 0xf0 {
		case ArfNull:
			b = append(b, "null"...)
		case ArfAddress:
			b = hfmt.Appendf(b, "a%d.%d", r.Nr&0xf, r.elem())
		case ArfAccumulator:
			b = hfmt.Appendf(b, "acc%d.%d", r.Nr&0xf, r.elem())
			b = r.appendRegion(b)
		case ArfFlag:
			b = hfmt.Appendf(b, "f%d.%d", r.Nr&0xf, r.Subnr/2)
		default:
			b = hfmt.Appendf(b, "arf%#x.%d", r.Nr, r.elem())
		}
	case Imm:
		b = r.appendImm(b)
	}

	return hfmt.Appendf(b, ":%v", r.Type)
}

func (r Reg) elem() int {
	if s := r.Type.Size(); s != 0 {
		return r.Subnr / s
	}

	return r.Subnr
}

func (r Reg) appendRegion(b []byte) []byte {
	if r.VStride == VStrideVxH {
		return hfmt.Appendf(b, "<VxH;%d,%d>", DecodeWidth(r.Width), DecodeHStride(r.HStride))
	}

	return hfmt.Appendf(b, "<%d;%d,%d>", DecodeVStride(r.VStride), DecodeWidth(r.Width), DecodeHStride(r.HStride))
}

func (r Reg) appendImm(b []byte) []byte {
	switch r.Type {
	case F:
		return hfmt.Appendf(b, "%g", math.Float32frombits(uint32(r.Imm)))
	case DF:
		return hfmt.Appendf(b, "%g", math.Float64frombits(r.Imm))
	case D:
		return hfmt.Appendf(b, "%d", int32(uint32(r.Imm)))
	case W:
		return hfmt.Appendf(b, "%d", int16(uint16(r.Imm)))
	case B:
		return hfmt.Appendf(b, "%d", int8(uint8(r.Imm)))
	case Q:
		return hfmt.Appendf(b, "%d", int64(r.Imm))
	case UW:
		return hfmt.Appendf(b, "%d", uint16(r.Imm))
	case UB:
		return hfmt.Appendf(b, "%d", uint8(r.Imm))
	case UD:
		return hfmt.Appendf(b, "%d", uint32(r.Imm))
	default:
		return hfmt.Appendf(b, "%#x", r.Imm)
	}
}

func (r Reg) String() string { return string(r.AppendText(nil)) }

func (r Reg) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, r.String())
}

// AppendText prints inst in assembly-like form:
//
//	(+f0) sel.l(8) vgrf2+4<2>:D, vgrf2<2>:D, vgrf2+4<2>:D {G0, NoMask}
func (inst *Inst) AppendText(b []byte) []byte {
	if inst.Predicate != PredNone {
		if inst.PredInverse {
			b = append(b, "(-f0) "...)
		} else {
			b = append(b, "(+f0) "...)
		}
	}

	b = append(b, inst.Opcode.String()...)

	if inst.CondMod != CondNone {
		b = hfmt.Appendf(b, ".%v", inst.CondMod)
	}

	if inst.Saturate {
		b = append(b, ".sat"...)
	}

	b = hfmt.Appendf(b, "(%d)", inst.ExecSize)

	if inst.Dst.File != BadFile {
		b = append(b, ' ')
		b = inst.Dst.AppendText(b)
	}

	for i, s := range inst.Src {
		if i != 0 || inst.Dst.File != BadFile {
			b = append(b, ',')
		}

		b = append(b, ' ')
		b = s.AppendText(b)
	}

	b = hfmt.Appendf(b, " {G%d", inst.Group)

	if inst.ForceWriteMaskAll {
		b = append(b, ", NoMask"...)
	}

	b = append(b, '}')

	if inst.Annotation != "" {
		b = hfmt.Appendf(b, " // %s", inst.Annotation)
	}

	return b
}

func (inst *Inst) String() string { return string(inst.AppendText(nil)) }

func (inst *Inst) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, inst.String())
}
