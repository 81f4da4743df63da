package device

// BitType says what an opcode bit carries.
type BitType int

const (
	// BitIgnore bits are sent as 0 and carry nothing
	BitIgnore BitType = iota

	// BitValue bits are fixed to Value
	BitValue

	// BitAddress bits carry address bit BitNo
	BitAddress

	// BitInput bits carry bit BitNo of the data byte being written
	BitInput

	// BitOutput bits return bit BitNo of the data byte being read
	BitOutput
)

// CmdBit is one bit of a 32-bit serial programming instruction.
type CmdBit struct {
	Type  BitType
	BitNo uint8
	Value uint8
}

// Opcode is a 32-bit serial programming instruction as four bytes sent MSB
// first. Bits[31] is the most significant bit of the first byte.
type Opcode struct {
	Bits [32]CmdBit
}

// AddressBits returns how many low address bits the instruction carries,
// i.e. the highest address bit number plus one.
func (op *Opcode) AddressBits() int {
	n := 0
	for _, bit := range op.Bits {
		if bit.Type == BitAddress && int(bit.BitNo)+1 > n {
			n = int(bit.BitNo) + 1
		}
	}
	return n
}

// Table builders. Each takes groups in wire order, most significant bit
// first, exactly as instructions are printed in device datasheets.

func opcode(groups ...[]CmdBit) *Opcode {
	var bits []CmdBit
	for _, g := range groups {
		bits = append(bits, g...)
	}
	if len(bits) != 32 {
		panic("opcode must have 32 bits")
	}
	op := &Opcode{}
	for i, b := range bits {
		op.Bits[31-i] = b
	}
	return op
}

func vals(v ...uint8) []CmdBit {
	bits := make([]CmdBit, len(v))
	for i, b := range v {
		bits[i] = CmdBit{Type: BitValue, Value: b}
	}
	return bits
}

func ignore(n int) []CmdBit {
	return make([]CmdBit, n)
}

func addr(hi, lo int) []CmdBit {
	bits := make([]CmdBit, 0, hi-lo+1)
	for b := hi; b >= lo; b-- {
		bits = append(bits, CmdBit{Type: BitAddress, BitNo: uint8(b)})
	}
	return bits
}

func input(hi, lo int) []CmdBit {
	bits := make([]CmdBit, 0, hi-lo+1)
	for b := hi; b >= lo; b-- {
		bits = append(bits, CmdBit{Type: BitInput, BitNo: uint8(b)})
	}
	return bits
}

func output(hi, lo int) []CmdBit {
	bits := make([]CmdBit, 0, hi-lo+1)
	for b := hi; b >= lo; b-- {
		bits = append(bits, CmdBit{Type: BitOutput, BitNo: uint8(b)})
	}
	return bits
}
