package vm

// The closed instruction set. Opcodes 1-43 match the classic micro-turtle
// layout; 44-47 are the raw-step movement variants that bypass calibration
// scaling and take pre-computed step counts for each wheel.
const (
	OpFD       byte = 1 // forward, operand stack: distance units
	OpBK       byte = 2
	OpLT       byte = 3 // turn left, operand stack: degrees
	OpRT       byte = 4
	OpPU       byte = 5
	OpPD       byte = 6
	OpIADD     byte = 7
	OpISUB     byte = 8
	OpIMUL     byte = 9
	OpIDIV     byte = 10
	OpICONST0  byte = 11
	OpICONST1  byte = 12
	OpICONST45 byte = 13
	OpICONST90 byte = 14
	OpICONST   byte = 15 // 32-bit immediate
	OpILOAD0   byte = 16
	OpILOAD1   byte = 17
	OpILOAD2   byte = 18
	OpILOAD    byte = 19 // 32-bit local index
	OpISTORE0  byte = 20
	OpISTORE1  byte = 21
	OpISTORE2  byte = 22
	OpISTORE   byte = 23
	OpGLOAD0   byte = 24
	OpGLOAD1   byte = 25
	OpGLOAD2   byte = 26
	OpGLOAD    byte = 27 // 32-bit global index
	OpGSTORE0  byte = 28
	OpGSTORE1  byte = 29
	OpGSTORE2  byte = 30
	OpGSTORE   byte = 31
	OpILT      byte = 32
	OpILE      byte = 33
	OpIGT      byte = 34
	OpIGE      byte = 35
	OpIEQ      byte = 36
	OpINE      byte = 37
	OpCALL     byte = 38 // 32-bit function id
	OpRET      byte = 39
	OpSTOP     byte = 40
	OpBR       byte = 41 // 32-bit byte offset within the current function
	OpBRT      byte = 42
	OpBRF      byte = 43
	OpFDRaw    byte = 44 // left and right step counts from the stack
	OpBKRaw    byte = 45
	OpLTRaw    byte = 46
	OpRTRaw    byte = 47
)

const opcodeCount = 48

// instrLen holds the full encoded length of each instruction in bytes,
// including the opcode itself. A zero entry marks an unassigned opcode.
var instrLen = [opcodeCount]int{
	0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 5,
	1, 1, 1, 5, 1, 1, 1, 5, 1, 1, 1, 5, 1, 1, 1, 5,
	1, 1, 1, 1, 1, 1, 5, 1, 1, 5, 5, 5, 1, 1, 1, 1,
}

var opNames = [opcodeCount]string{
	"", "FD", "BK", "LT", "RT", "PU", "PD", "IADD", "ISUB", "IMUL", "IDIV",
	"ICONST_0", "ICONST_1", "ICONST_45", "ICONST_90", "ICONST",
	"ILOAD_0", "ILOAD_1", "ILOAD_2", "ILOAD",
	"ISTORE_0", "ISTORE_1", "ISTORE_2", "ISTORE",
	"GLOAD_0", "GLOAD_1", "GLOAD_2", "GLOAD",
	"GSTORE_0", "GSTORE_1", "GSTORE_2", "GSTORE",
	"ILT", "ILE", "IGT", "IGE", "IEQ", "INE",
	"CALL", "RET", "STOP", "BR", "BRT", "BRF",
	"FD_RAW", "BK_RAW", "LT_RAW", "RT_RAW",
}

// InstrLen returns the encoded length in bytes of the given opcode, or 0 if
// the opcode is not part of the instruction set.
func InstrLen(op byte) int {
	if int(op) >= opcodeCount {
		return 0
	}
	return instrLen[op]
}

// OpName returns the mnemonic for an opcode, or "" for an unassigned one.
func OpName(op byte) string {
	if int(op) >= opcodeCount {
		return ""
	}
	return opNames[op]
}
