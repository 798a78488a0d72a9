package ir

import (
	"math"
	"math/bits"

	"github.com/slowlang/simd/compiler/check"
)

type (
	// File is a register storage class.
	File uint8

	// Reg is a register reference. It is a value: every helper below
	// returns a derived copy and never touches the underlying storage.
	//
	// VGRF, Attr and Uniform registers address elements by byte Offset
	// and element Stride. FixedGRF and ARF registers address elements by
	// Nr, Subnr and the hardware-encoded region VStride, Width, HStride.
	Reg struct {
		File File
		Type Type

		Nr     int
		Offset int
		Subnr  int
		Stride int

		VStride uint8
		Width   uint8
		HStride uint8

		Negate bool
		Abs    bool

		Imm uint64
	}
)

const (
	BadFile File = iota
	VGRF
	FixedGRF
	ARF
	Imm
	Uniform
	Attr
)

// RegSize is the size of one storage unit in bytes.
const RegSize = 32

// Architecture register numbers.
const (
	ArfNull        = 0x00
	ArfAddress     = 0x10
	ArfAccumulator = 0x20
	ArfFlag        = 0x30
)

// Encoded region fields.
const (
	VStride0   = 0
	VStride1   = 1
	VStride2   = 2
	VStride4   = 3
	VStride8   = 4
	VStride16  = 5
	VStride32  = 6
	VStrideVxH = 0xf

	Width1  = 0
	Width2  = 1
	Width4  = 2
	Width8  = 3
	Width16 = 4

	HStride0 = 0
	HStride1 = 1
	HStride2 = 2
	HStride4 = 3
)

var fileNames = [...]string{
	BadFile:  "bad",
	VGRF:     "vgrf",
	FixedGRF: "g",
	ARF:      "arf",
	Imm:      "imm",
	Uniform:  "u",
	Attr:     "attr",
}

func (f File) String() string {
	if int(f) < len(fileNames) {
		return fileNames[f]
	}

	return "?"
}

func VGRFReg(nr int, t Type) Reg {
	return Reg{File: VGRF, Nr: nr, Type: t, Stride: 1, VStride: VStride8, Width: Width8, HStride: HStride1}
}

func AttrReg(nr int, t Type) Reg {
	r := VGRFReg(nr, t)
	r.File = Attr

	return r
}

func UniformReg(nr int, t Type) Reg {
	return Reg{File: Uniform, Nr: nr, Type: t}
}

// FixedReg is a physical register with region <v;w,h>, given as decoded
// element counts.
func FixedReg(nr, subnr int, t Type, v, w, h int) Reg {
	r := Reg{File: FixedGRF, Nr: nr, Subnr: subnr, Type: t}

	return r.WithRegion(v, w, h)
}

func Vec8(nr int, t Type) Reg  { return FixedReg(nr, 0, t, 8, 8, 1) }
func Vec16(nr int, t Type) Reg { return FixedReg(nr, 0, t, 16, 16, 1) }
func Vec1(nr, subnr int, t Type) Reg {
	return FixedReg(nr, subnr, t, 0, 1, 0)
}

func NullReg() Reg {
	r := Reg{File: ARF, Nr: ArfNull, Type: UD}

	return r.WithRegion(8, 8, 1)
}

func AccReg(subnr int, t Type) Reg {
	r := Reg{File: ARF, Nr: ArfAccumulator, Subnr: subnr, Type: t}

	return r.WithRegion(8, 8, 1)
}

func ImmF(v float32) Reg  { return Reg{File: Imm, Type: F, Imm: uint64(math.Float32bits(v))} }
func ImmDF(v float64) Reg { return Reg{File: Imm, Type: DF, Imm: math.Float64bits(v)} }
func ImmD(v int32) Reg    { return Reg{File: Imm, Type: D, Imm: uint64(uint32(v))} }
func ImmUD(v uint32) Reg  { return Reg{File: Imm, Type: UD, Imm: uint64(v)} }
func ImmQ(v int64) Reg    { return Reg{File: Imm, Type: Q, Imm: uint64(v)} }
func ImmUQ(v uint64) Reg  { return Reg{File: Imm, Type: UQ, Imm: v} }
func ImmW(v int16) Reg    { return Reg{File: Imm, Type: W, Imm: uint64(uint16(v)) * 0x10001} }
func ImmUW(v uint16) Reg  { return Reg{File: Imm, Type: UW, Imm: uint64(v) * 0x10001} }

// WithRegion sets the hardware region from decoded element counts.
func (r Reg) WithRegion(v, w, h int) Reg {
	r.VStride = EncodeVStride(v)
	r.Width = EncodeWidth(w)
	r.HStride = EncodeHStride(h)

	return r
}

func EncodeVStride(v int) uint8 {
	if v == 0 {
		return VStride0
	}

	check.Assert(v&(v-1) == 0 && v <= 32, "vstride %d is not encodable", v)

	return uint8(bits.TrailingZeros(uint(v)) + 1)
}

func EncodeWidth(w int) uint8 {
	check.Assert(w > 0 && w&(w-1) == 0 && w <= 16, "width %d is not encodable", w)

	return uint8(bits.TrailingZeros(uint(w)))
}

func EncodeHStride(h int) uint8 {
	if h == 0 {
		return HStride0
	}

	check.Assert(h&(h-1) == 0 && h <= 4, "hstride %d is not encodable", h)

	return uint8(bits.TrailingZeros(uint(h)) + 1)
}

func DecodeVStride(e uint8) int {
	if e == VStride0 {
		return 0
	}

	return 1 << (e - 1)
}

func DecodeWidth(e uint8) int { return 1 << e }

func DecodeHStride(e uint8) int {
	if e == HStride0 {
		return 0
	}

	return 1 << (e - 1)
}

func (r Reg) IsPhysical() bool { return r.File == FixedGRF || r.File == ARF }

func (r Reg) IsNull() bool { return r.File == ARF && r.Nr == ArfNull }

func (r Reg) IsAccumulator() bool { return r.File == ARF && r.Nr&0xf0 == ArfAccumulator }

// IsUniform reports whether the register has the same value on every channel.
func (r Reg) IsUniform() bool {
	switch r.File {
	case Imm, Uniform:
		return true
	case VGRF, Attr:
		return r.Stride == 0
	case FixedGRF, ARF:
		return r.IsNull() || r.VStride == VStride0 && r.HStride == HStride0
	default:
		return false
	}
}

func (r Reg) Equal(x Reg) bool { return r == x }

// ComponentSize is the number of bytes spanned by width channels of r.
func (r Reg) ComponentSize(width int) int {
	if r.IsPhysical() {
		w := min(width, DecodeWidth(r.Width))
		h := width >> r.Width
		vs := DecodeVStride(r.VStride)
		hs := DecodeHStride(r.HStride)

		return ((max(1, h)-1)*vs + (w-1)*hs + 1) * r.Type.Size()
	}

	return max(width*r.Stride, 1) * r.Type.Size()
}

func Retype(r Reg, t Type) Reg {
	r.Type = t

	return r
}

func ByteOffset(r Reg, delta int) Reg {
	switch r.File {
	case VGRF, Attr, Uniform:
		r.Offset += delta
	case FixedGRF, ARF:
		sub := r.Subnr + delta
		r.Nr += sub / RegSize
		r.Subnr = sub % RegSize
	}

	return r
}

// HorizOffset moves r by delta channels.
func HorizOffset(r Reg, delta int) Reg {
	switch r.File {
	case VGRF, Attr:
		return ByteOffset(r, delta*r.Stride*r.Type.Size())
	case FixedGRF, ARF:
		if r.IsNull() {
			return r
		}

		hs := DecodeHStride(r.HStride)
		vs := DecodeVStride(r.VStride)
		w := DecodeWidth(r.Width)

		if delta%w == 0 {
			return ByteOffset(r, delta/w*vs*r.Type.Size())
		}

		check.Assert(vs == hs*w, "horizontal offset %d into non-contiguous region <%d;%d,%d>", delta, vs, w, hs)

		return ByteOffset(r, delta*hs*r.Type.Size())
	default:
		return r
	}
}

// HorizStride multiplies the channel stride of r by s.
func HorizStride(r Reg, s int) Reg {
	switch r.File {
	case VGRF, Attr, Uniform:
		r.Stride *= s
	case FixedGRF, ARF:
		if s == 0 {
			return r.WithRegion(0, 1, 0)
		}

		return r.WithRegion(DecodeVStride(r.VStride)*s, DecodeWidth(r.Width), DecodeHStride(r.HStride)*s)
	}

	return r
}

// Component returns channel idx of r replicated over all channels.
func Component(r Reg, idx int) Reg {
	r = HorizOffset(r, idx)

	switch r.File {
	case VGRF, Attr, Uniform:
		r.Stride = 0
	case FixedGRF, ARF:
		r = r.WithRegion(0, 1, 0)
	}

	return r
}

// Offset moves r by delta logical components of a width-channel value.
func Offset(r Reg, width, delta int) Reg {
	switch r.File {
	case BadFile:
		return r
	case Imm:
		check.Assert(delta == 0, "offset %d of immediate", delta)

		return r
	default:
		return ByteOffset(r, delta*r.ComponentSize(width))
	}
}

// Subscript reinterprets r as its i-th t-sized piece.
// Offsets and strides are recomputed in t units.
func Subscript(r Reg, t Type, i int) Reg {
	check.Assert((i+1)*t.Size() <= r.Type.Size(), "subscript %v[%d] of %v", t, i, r.Type)

	switch r.File {
	case FixedGRF, ARF:
		delta := uint8(bits.TrailingZeros(uint(r.Type.Size())) - bits.TrailingZeros(uint(t.Size())))

		if r.HStride != 0 {
			r.HStride += delta
		}

		if r.VStride != 0 {
			r.VStride += delta
		}
	case Imm:
		bs := t.Bits()

		r.Imm >>= uint(i * bs)
		r.Imm &= 1<<bs - 1

		if bs <= 16 {
			r.Imm |= r.Imm << 16
		}

		return Retype(r, t)
	default:
		r.Stride *= r.Type.Size() / t.Size()
	}

	return ByteOffset(Retype(r, t), i*t.Size())
}

func Negate(r Reg) Reg {
	if r.File != Imm {
		r.Negate = !r.Negate

		return r
	}

	switch r.Type {
	case F:
		r.Imm ^= 1 << 31
	case DF:
		r.Imm ^= 1 << 63
	case HF:
		r.Imm ^= 1<<15 | 1<<31
	case D, UD:
		r.Imm = uint64(uint32(-int32(uint32(r.Imm))))
	case W, UW:
		v := uint16(-int16(uint16(r.Imm)))
		r.Imm = uint64(v) * 0x10001
	default:
		r.Imm = uint64(-int64(r.Imm))
	}

	return r
}

func Abs(r Reg) Reg {
	r.Abs = true
	r.Negate = false

	return r
}
