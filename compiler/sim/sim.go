// Package sim executes IR programs over a register file.
//
// It is a reference interpreter, not an emulator of any real device:
// it implements the channel, region and flag semantics the builder
// relies on, for the opcodes the builder's lowering emits.
package sim

import (
	"context"
	"encoding/binary"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/simd/compiler/ir"
	"github.com/slowlang/simd/compiler/set"
)

type (
	Machine struct {
		sh *ir.Shader

		vgrf [][]byte
		grf  []byte

		// Flag has a bit per channel. Mask is the dispatch mask.
		Flag set.Bitmap
		Mask set.Bitmap

		Steps int
	}

	value struct {
		i     int64
		f     float64
		float bool
	}
)

// GRFCount is the size of the fixed register file in registers.
const GRFCount = 128

var (
	ErrUnsupported = errors.New("unsupported")
	ErrBounds      = errors.New("out of bounds")
)

// New creates a machine for sh with every channel enabled.
func New(sh *ir.Shader) *Machine {
	m := &Machine{
		sh:   sh,
		grf:  make([]byte, GRFCount*ir.RegSize),
		Flag: set.MakeBitmap(ir.RegSize),
		Mask: set.MakeBitmap(ir.RegSize),
	}

	m.Mask.FillSet(0, 32)

	return m
}

// SetMask sets the dispatch mask, bit c for channel c.
func (m *Machine) SetMask(mask uint32) {
	m.Mask.Reset()

	for c := 0; c < 32; c++ {
		m.Mask.Put(c, mask&(1<<c) != 0)
	}
}

// Flags returns n flag bits starting at channel group, bit 0 first.
func (m *Machine) Flags(group, n int) uint32 {
	return uint32(m.Flag.Bits(group, n))
}

// Run executes the whole program in block order.
func (m *Machine) Run(ctx context.Context) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "sim: run", "stage", m.sh.Stage)
	defer tr.Finish("err", &err, "steps", &m.Steps)

	m.sh.CFG.Range(func(b *ir.Block, inst *ir.Inst) bool {
		if tr.If("sim_trace") {
			tr.Printw("exec", "block", b.Num, "inst", inst)
		}

		err = m.Exec(inst)
		if err != nil {
			err = errors.Wrap(err, "block %d: %v", b.Num, inst)
			return false
		}

		m.Steps++

		if (inst.Opcode == ir.OpCMP || inst.Opcode == ir.OpCMPN) && tr.If("sim_trace") {
			tr.Printw("flag", "group", inst.Group, "bits", m.Flags(inst.Group, inst.ExecSize))
		}

		return true
	})

	return err
}

// Exec executes a single instruction.
func (m *Machine) Exec(inst *ir.Inst) error {
	switch inst.Opcode {
	case ir.OpNOP, ir.OpUndef, ir.OpSYNC:
		return nil
	case ir.OpMOV, ir.OpNOT:
		return m.alu(inst, 1)
	case ir.OpADD, ir.OpMUL, ir.OpAND, ir.OpOR, ir.OpXOR, ir.OpSHL, ir.OpSHR, ir.OpSEL:
		return m.alu(inst, 2)
	case ir.OpMAD, ir.OpLRP:
		return m.alu(inst, 3)
	case ir.OpCMP, ir.OpCMPN:
		return m.cmp(inst)
	case ir.OpLoadPayload:
		return m.loadPayload(inst)
	case ir.OpFindLiveChannel:
		return m.findLiveChannel(inst)
	case ir.OpBroadcast:
		return m.broadcast(inst)
	default:
		return errors.Wrap(ErrUnsupported, "opcode %v", inst.Opcode)
	}
}

func (m *Machine) enabled(inst *ir.Inst, c int) bool {
	if !inst.ForceWriteMaskAll && !m.Mask.IsSet(inst.Group+c) {
		return false
	}

	// Predicated SEL selects instead of disabling channels.
	if inst.Predicate != ir.PredNone && inst.Opcode != ir.OpSEL {
		return m.Flag.IsSet(inst.Group+c) != inst.PredInverse
	}

	return true
}

func (m *Machine) alu(inst *ir.Inst, nsrc int) error {
	if inst.Sources() != nsrc {
		return errors.New("%v with %d sources", inst.Opcode, inst.Sources())
	}

	res := make([]value, inst.ExecSize)

	for c := range res {
		if !m.enabled(inst, c) {
			continue
		}

		var src [3]value

		for i := 0; i < nsrc; i++ {
			v, err := m.load(inst.Src[i], c)
			if err != nil {
				return errors.Wrap(err, "src%d", i)
			}

			src[i] = v
		}

		v, err := m.op(inst, c, src)
		if err != nil {
			return err
		}

		res[c] = v
	}

	for c, v := range res {
		if !m.enabled(inst, c) {
			continue
		}

		err := m.store(inst.Dst, c, v)
		if err != nil {
			return errors.Wrap(err, "dst")
		}
	}

	return nil
}

func (m *Machine) op(inst *ir.Inst, c int, src [3]value) (value, error) {
	x, y, z := src[0], src[1], src[2]
	float := x.float || y.float || z.float

	switch inst.Opcode {
	case ir.OpMOV:
		return x, nil
	case ir.OpSEL:
		pick := true

		switch {
		case inst.CondMod != ir.CondNone:
			cmp, unord := compare(x, y, inst.Src[0].Type)
			pick = inst.CondMod.Eval(cmp, unord)
		case inst.Predicate != ir.PredNone:
			pick = m.Flag.IsSet(inst.Group+c) != inst.PredInverse
		}

		if pick {
			return x, nil
		}

		return y, nil
	case ir.OpADD:
		if float {
			return value{f: x.asFloat() + y.asFloat(), float: true}, nil
		}

		return value{i: x.i + y.i}, nil
	case ir.OpMUL:
		if float {
			return value{f: x.asFloat() * y.asFloat(), float: true}, nil
		}

		return value{i: x.i * y.i}, nil
	case ir.OpMAD:
		if float {
			return value{f: y.asFloat()*z.asFloat() + x.asFloat(), float: true}, nil
		}

		return value{i: y.i*z.i + x.i}, nil
	case ir.OpLRP:
		if !float {
			return value{}, errors.Wrap(ErrUnsupported, "integer %v", inst.Opcode)
		}

		a := x.asFloat()

		return value{f: a*y.asFloat() + (1-a)*z.asFloat(), float: true}, nil
	}

	if float {
		return value{}, errors.Wrap(ErrUnsupported, "float %v", inst.Opcode)
	}

	switch inst.Opcode {
	case ir.OpNOT:
		return value{i: ^x.i}, nil
	case ir.OpAND:
		return value{i: x.i & y.i}, nil
	case ir.OpOR:
		return value{i: x.i | y.i}, nil
	case ir.OpXOR:
		return value{i: x.i ^ y.i}, nil
	case ir.OpSHL:
		return value{i: x.i << uint(y.i&63)}, nil
	case ir.OpSHR:
		bits := uint(inst.Src[0].Type.Bits())
		u := uint64(x.i) & (1<<bits - 1)

		return value{i: int64(u >> uint(y.i&63))}, nil
	}

	return value{}, errors.Wrap(ErrUnsupported, "opcode %v", inst.Opcode)
}

func (m *Machine) cmp(inst *ir.Inst) error {
	if inst.Sources() != 2 {
		return errors.New("%v with %d sources", inst.Opcode, inst.Sources())
	}

	res := make([]bool, inst.ExecSize)

	for c := range res {
		if !m.enabled(inst, c) {
			continue
		}

		x, err := m.load(inst.Src[0], c)
		if err != nil {
			return errors.Wrap(err, "src0")
		}

		y, err := m.load(inst.Src[1], c)
		if err != nil {
			return errors.Wrap(err, "src1")
		}

		cmp, unord := compare(x, y, inst.Src[0].Type)

		if inst.Opcode == ir.OpCMPN && y.float && math.IsNaN(y.f) {
			res[c] = true
		} else {
			res[c] = inst.CondMod.Eval(cmp, unord)
		}
	}

	for c, r := range res {
		if !m.enabled(inst, c) {
			continue
		}

		m.Flag.Put(inst.Group+c, r)

		if inst.Dst.IsNull() {
			continue
		}

		v := value{}
		if r {
			v.i = -1
		}

		err := m.store(inst.Dst, c, v)
		if err != nil {
			return errors.Wrap(err, "dst")
		}
	}

	return nil
}

func (m *Machine) loadPayload(inst *ir.Inst) error {
	dst := inst.Dst

	for i, s := range inst.Src {
		if i < inst.HeaderSize {
			if s.File != ir.BadFile {
				for j := 0; j < ir.RegSize/4; j++ {
					v, err := m.load(ir.Component(ir.ByteOffset(ir.Retype(s, ir.UD), 4*j), 0), 0)
					if err != nil {
						return errors.Wrap(err, "header %d", i)
					}

					err = m.store(ir.Component(ir.ByteOffset(ir.Retype(dst, ir.UD), 4*j), 0), 0, v)
					if err != nil {
						return errors.Wrap(err, "header %d", i)
					}
				}
			}

			dst = ir.ByteOffset(dst, ir.RegSize)

			continue
		}

		if s.File != ir.BadFile {
			mov := ir.NewInst(ir.OpMOV, inst.ExecSize, ir.Retype(dst, s.Type), s)
			mov.Group = inst.Group
			mov.ForceWriteMaskAll = inst.ForceWriteMaskAll

			err := m.alu(mov, 1)
			if err != nil {
				return errors.Wrap(err, "src%d", i)
			}
		}

		dst = ir.ByteOffset(dst, inst.ExecSize*s.Type.Size()*inst.Dst.Stride)
	}

	return nil
}

func (m *Machine) findLiveChannel(inst *ir.Inst) error {
	c := m.Mask.FirstIn(inst.Group, inst.Group+inst.ExecSize)
	if c < 0 {
		c = 0
	} else {
		c -= inst.Group
	}

	return m.store(inst.Dst, 0, value{i: int64(c)})
}

func (m *Machine) broadcast(inst *ir.Inst) error {
	idx, err := m.load(inst.Src[1], 0)
	if err != nil {
		return errors.Wrap(err, "index")
	}

	v, err := m.load(inst.Src[0], int(idx.i))
	if err != nil {
		return errors.Wrap(err, "src0")
	}

	for c := 0; c < inst.ExecSize; c++ {
		if !m.enabled(inst, c) {
			continue
		}

		err = m.store(inst.Dst, c, v)
		if err != nil {
			return errors.Wrap(err, "dst")
		}
	}

	return nil
}

// compare orders x and y as values of type t.
func compare(x, y value, t ir.Type) (cmp int, unordered bool) {
	if x.float || y.float {
		a, b := x.asFloat(), y.asFloat()

		switch {
		case math.IsNaN(a) || math.IsNaN(b):
			return 0, true
		case a < b:
			return -1, false
		case a > b:
			return 1, false
		}

		return 0, false
	}

	if t == ir.UQ {
		a, b := uint64(x.i), uint64(y.i)

		switch {
		case a < b:
			return -1, false
		case a > b:
			return 1, false
		}

		return 0, false
	}

	switch {
	case x.i < y.i:
		return -1, false
	case x.i > y.i:
		return 1, false
	}

	return 0, false
}

func (v value) asFloat() float64 {
	if v.float {
		return v.f
	}

	return float64(v.i)
}

func (v value) asInt() int64 {
	if v.float {
		return int64(v.f)
	}

	return v.i
}

// load reads channel c of r, applying source modifiers.
func (m *Machine) load(r ir.Reg, c int) (value, error) {
	var raw uint64

	if r.File == ir.Imm {
		raw = r.Imm
	} else if !r.IsNull() {
		b, err := m.bytes(r, c)
		if err != nil {
			return value{}, err
		}

		raw = readRaw(b)
	}

	v, err := decode(raw, r.Type)
	if err != nil {
		return value{}, err
	}

	if r.Abs {
		if v.float {
			v.f = math.Abs(v.f)
		} else if v.i < 0 {
			v.i = -v.i
		}
	}

	if r.Negate {
		if v.float {
			v.f = -v.f
		} else {
			v.i = -v.i
		}
	}

	return v, nil
}

func (m *Machine) store(r ir.Reg, c int, v value) error {
	if r.IsNull() {
		return nil
	}

	raw, err := encode(v, r.Type)
	if err != nil {
		return err
	}

	b, err := m.bytes(r, c)
	if err != nil {
		return err
	}

	writeRaw(b, raw)

	return nil
}

// bytes returns the storage of channel c of r.
func (m *Machine) bytes(r ir.Reg, c int) ([]byte, error) {
	size := r.Type.Size()
	if size == 0 {
		return nil, errors.New("no size: %v", r)
	}

	switch r.File {
	case ir.VGRF:
		if r.Nr >= len(m.sh.Alloc.Sizes) {
			return nil, errors.Wrap(ErrBounds, "vgrf%d", r.Nr)
		}

		for len(m.vgrf) <= r.Nr {
			m.vgrf = append(m.vgrf, nil)
		}

		if l := m.sh.Alloc.Sizes[r.Nr] * ir.RegSize; len(m.vgrf[r.Nr]) < l {
			m.vgrf[r.Nr] = append(m.vgrf[r.Nr], make([]byte, l-len(m.vgrf[r.Nr]))...)
		}

		off := r.Offset + c*r.Stride*size

		return slice(m.vgrf[r.Nr], off, size, r)
	case ir.FixedGRF:
		w := ir.DecodeWidth(r.Width)
		off := r.Nr*ir.RegSize + r.Subnr
		off += (c/w*ir.DecodeVStride(r.VStride) + c%w*ir.DecodeHStride(r.HStride)) * size

		return slice(m.grf, off, size, r)
	default:
		return nil, errors.Wrap(ErrUnsupported, "register file %v", r.File)
	}
}

func slice(b []byte, off, size int, r ir.Reg) ([]byte, error) {
	if off < 0 || off+size > len(b) {
		return nil, errors.Wrap(ErrBounds, "%v: bytes [%d:%d] of %d", r, off, off+size, len(b))
	}

	return b[off : off+size], nil
}

func readRaw(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func writeRaw(b []byte, x uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(x)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(x))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(x))
	default:
		binary.LittleEndian.PutUint64(b, x)
	}
}

func decode(raw uint64, t ir.Type) (value, error) {
	switch t {
	case ir.F:
		return value{f: float64(math.Float32frombits(uint32(raw))), float: true}, nil
	case ir.DF:
		return value{f: math.Float64frombits(raw), float: true}, nil
	case ir.HF:
		return value{}, errors.Wrap(ErrUnsupported, "type %v", t)
	case ir.B:
		return value{i: int64(int8(raw))}, nil
	case ir.W:
		return value{i: int64(int16(raw))}, nil
	case ir.D:
		return value{i: int64(int32(raw))}, nil
	case ir.UB:
		return value{i: int64(uint8(raw))}, nil
	case ir.UW:
		return value{i: int64(uint16(raw))}, nil
	case ir.UD:
		return value{i: int64(uint32(raw))}, nil
	case ir.Q, ir.UQ:
		return value{i: int64(raw)}, nil
	default:
		return value{}, errors.Wrap(ErrUnsupported, "type %v", t)
	}
}

func encode(v value, t ir.Type) (uint64, error) {
	switch t {
	case ir.F:
		return uint64(math.Float32bits(float32(v.asFloat()))), nil
	case ir.DF:
		return math.Float64bits(v.asFloat()), nil
	case ir.HF:
		return 0, errors.Wrap(ErrUnsupported, "type %v", t)
	case ir.Invalid:
		return 0, errors.Wrap(ErrUnsupported, "type %v", t)
	default:
		return uint64(v.asInt()), nil
	}
}

// Load returns the raw bits of channel c of r.
func (m *Machine) Load(r ir.Reg, c int) (uint64, error) {
	if r.File == ir.Imm {
		return r.Imm, nil
	}

	b, err := m.bytes(r, c)
	if err != nil {
		return 0, err
	}

	return readRaw(b), nil
}

// Store sets the raw bits of channel c of r.
func (m *Machine) Store(r ir.Reg, c int, x uint64) error {
	b, err := m.bytes(r, c)
	if err != nil {
		return err
	}

	writeRaw(b, x)

	return nil
}
