package ir

type (
	Opcode uint8

	// CondMod is a flag-producing comparison mode.
	CondMod uint8

	Predicate uint8
)

const (
	OpInvalid Opcode = iota

	OpMOV
	OpSEL
	OpNOT
	OpAND
	OpOR
	OpXOR
	OpSHR
	OpSHL
	OpASR
	OpROL
	OpROR
	OpCMP
	OpCMPN
	OpCSEL
	OpBFREV
	OpBFE
	OpBFI1
	OpBFI2
	OpADD
	OpADD3
	OpADDC
	OpSUBB
	OpAVG
	OpMUL
	OpMACH
	OpMAC
	OpMAD
	OpLRP
	OpFRC
	OpRNDU
	OpRNDD
	OpRNDE
	OpRNDZ
	OpLZD
	OpFBH
	OpFBL
	OpCBIT
	OpLINE
	OpPLN
	OpDP4
	OpDPH
	OpDP3
	OpDP2
	OpDP4A
	OpSAD2
	OpSADA2
	OpDPAS
	OpIF
	OpELSE
	OpENDIF
	OpDO
	OpWHILE
	OpBREAK
	OpCONTINUE
	OpNOP
	OpSYNC
	OpSEND

	// virtual opcodes, lowered before encoding

	OpRCP
	OpRSQ
	OpSQRT
	OpEXP2
	OpLOG2
	OpPOW
	OpIntQuotient
	OpIntRemainder
	OpSIN
	OpCOS
	OpLoadPayload
	OpFindLiveChannel
	OpBroadcast
	OpUndef

	opcodeCount
)

const (
	CondNone CondMod = iota
	CondZ
	CondNZ
	CondG
	CondGE
	CondL
	CondLE
	CondO
	CondU

	CondEQ  = CondZ
	CondNEQ = CondNZ
)

const (
	PredNone Predicate = iota
	PredNormal
)

var opNames = [opcodeCount]string{
	OpInvalid:         "invalid",
	OpMOV:             "mov",
	OpSEL:             "sel",
	OpNOT:             "not",
	OpAND:             "and",
	OpOR:              "or",
	OpXOR:             "xor",
	OpSHR:             "shr",
	OpSHL:             "shl",
	OpASR:             "asr",
	OpROL:             "rol",
	OpROR:             "ror",
	OpCMP:             "cmp",
	OpCMPN:            "cmpn",
	OpCSEL:            "csel",
	OpBFREV:           "bfrev",
	OpBFE:             "bfe",
	OpBFI1:            "bfi1",
	OpBFI2:            "bfi2",
	OpADD:             "add",
	OpADD3:            "add3",
	OpADDC:            "addc",
	OpSUBB:            "subb",
	OpAVG:             "avg",
	OpMUL:             "mul",
	OpMACH:            "mach",
	OpMAC:             "mac",
	OpMAD:             "mad",
	OpLRP:             "lrp",
	OpFRC:             "frc",
	OpRNDU:            "rndu",
	OpRNDD:            "rndd",
	OpRNDE:            "rnde",
	OpRNDZ:            "rndz",
	OpLZD:             "lzd",
	OpFBH:             "fbh",
	OpFBL:             "fbl",
	OpCBIT:            "cbit",
	OpLINE:            "line",
	OpPLN:             "pln",
	OpDP4:             "dp4",
	OpDPH:             "dph",
	OpDP3:             "dp3",
	OpDP2:             "dp2",
	OpDP4A:            "dp4a",
	OpSAD2:            "sad2",
	OpSADA2:           "sada2",
	OpDPAS:            "dpas",
	OpIF:              "if",
	OpELSE:            "else",
	OpENDIF:           "endif",
	OpDO:              "do",
	OpWHILE:           "while",
	OpBREAK:           "break",
	OpCONTINUE:        "cont",
	OpNOP:             "nop",
	OpSYNC:            "sync",
	OpSEND:            "send",
	OpRCP:             "rcp",
	OpRSQ:             "rsq",
	OpSQRT:            "sqrt",
	OpEXP2:            "exp2",
	OpLOG2:            "log2",
	OpPOW:             "pow",
	OpIntQuotient:     "int_quotient",
	OpIntRemainder:    "int_remainder",
	OpSIN:             "sin",
	OpCOS:             "cos",
	OpLoadPayload:     "load_payload",
	OpFindLiveChannel: "find_live_channel",
	OpBroadcast:       "broadcast",
	OpUndef:           "undef",
}

var condNames = [...]string{
	CondNone: "",
	CondZ:    "z",
	CondNZ:   "nz",
	CondG:    "g",
	CondGE:   "ge",
	CondL:    "l",
	CondLE:   "le",
	CondO:    "o",
	CondU:    "u",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opNames[op]
	}

	return "?"
}

// Is3Src reports whether op uses the ternary instruction encoding.
func (op Opcode) Is3Src() bool {
	switch op {
	case OpMAD, OpLRP, OpBFE, OpBFI2, OpCSEL, OpADD3, OpDP4A, OpDPAS:
		return true
	default:
		return false
	}
}

func (op Opcode) IsMath() bool {
	switch op {
	case OpRCP, OpRSQ, OpSQRT, OpEXP2, OpLOG2, OpPOW, OpIntQuotient, OpIntRemainder, OpSIN, OpCOS:
		return true
	default:
		return false
	}
}

func (c CondMod) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}

	return "?"
}

// Eval compares a and b, given as ordered values.
func (c CondMod) Eval(cmp int, unordered bool) bool {
	if unordered {
		return c == CondNZ || c == CondU
	}

	switch c {
	case CondZ:
		return cmp == 0
	case CondNZ:
		return cmp != 0
	case CondG:
		return cmp > 0
	case CondGE:
		return cmp >= 0
	case CondL:
		return cmp < 0
	case CondLE:
		return cmp <= 0
	case CondO:
		return true
	default:
		return false
	}
}
