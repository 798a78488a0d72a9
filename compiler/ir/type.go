package ir

import (
	"strings"

	"tlog.app/go/errors"
)

type (
	// Type is an operand element type.
	Type uint8
)

const (
	Invalid Type = iota

	UB
	B
	UW
	W
	UD
	D
	UQ
	Q

	HF
	F
	DF
)

var typeNames = [...]string{
	Invalid: "INVALID",
	UB:      "UB",
	B:       "B",
	UW:      "UW",
	W:       "W",
	UD:      "UD",
	D:       "D",
	UQ:      "UQ",
	Q:       "Q",
	HF:      "HF",
	F:       "F",
	DF:      "DF",
}

func (t Type) Size() int {
	switch t {
	case UB, B:
		return 1
	case UW, W, HF:
		return 2
	case UD, D, F:
		return 4
	case UQ, Q, DF:
		return 8
	default:
		return 0
	}
}

func (t Type) Bits() int { return 8 * t.Size() }

func (t Type) IsInt() bool {
	return t >= UB && t <= Q
}

func (t Type) IsFloat() bool {
	return t >= HF && t <= DF
}

func (t Type) IsSigned() bool {
	switch t {
	case B, W, D, Q, HF, F, DF:
		return true
	default:
		return false
	}
}

// WithSize returns the type of the same kind (unsigned, signed or float)
// with the given bit width.
func (t Type) WithSize(bits int) Type {
	switch {
	case t.IsFloat():
		switch bits {
		case 16:
			return HF
		case 32:
			return F
		case 64:
			return DF
		}
	case t.IsSigned():
		switch bits {
		case 8:
			return B
		case 16:
			return W
		case 32:
			return D
		case 64:
			return Q
		}
	case t.IsInt():
		switch bits {
		case 8:
			return UB
		case 16:
			return UW
		case 32:
			return UD
		case 64:
			return UQ
		}
	}

	return Invalid
}

// LargerOf returns the wider of a and b. Equal widths keep a.
func LargerOf(a, b Type) Type {
	if a == Invalid {
		return b
	}

	if b.Size() > a.Size() {
		return b
	}

	return a
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}

	return "?"
}

// ParseType parses a type name as printed by String, in any case.
func ParseType(s string) (Type, error) {
	for t, n := range typeNames {
		if t != int(Invalid) && strings.EqualFold(n, s) {
			return Type(t), nil
		}
	}

	return Invalid, errors.New("unknown type: %q", s)
}
