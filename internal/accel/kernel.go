package accel

// The kernel module is assembled directly in the WebAssembly binary format.
// It exports a linear memory plus three f64 reduction kernels over that
// memory: sum(ptr, len), sumsq(ptr, len, mean) and dot(a, b, len). Pointers
// are byte offsets, lengths are element counts, elements are little-endian
// f64 at 8-byte stride.

const (
	secType     = 0x01
	secFunction = 0x03
	secMemory   = 0x05
	secExport   = 0x07
	secCode     = 0x0A

	valI32      = 0x7F
	valF64      = 0x7C
	funcTypeTag = 0x60

	exportKindFunc   = 0x00
	exportKindMemory = 0x02

	opBlock    = 0x02
	opLoop     = 0x03
	opEnd      = 0x0B
	opBr       = 0x0C
	opBrIf     = 0x0D
	opLocalGet = 0x20
	opLocalSet = 0x21
	opF64Load  = 0x2B
	opI32Const = 0x41
	opI32GeU   = 0x4F
	opI32Add   = 0x6A
	opI32Shl   = 0x74
	opF64Add   = 0xA0
	opF64Sub   = 0xA1
	opF64Mul   = 0xA2

	blockTypeEmpty = 0x40
)

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(payload)))...)
	return append(out, payload...)
}

// wasmVec prepends the item count to the concatenated items.
func wasmVec(items ...[]byte) []byte {
	out := uleb128(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func exportEntry(name string, kind byte, index uint32) []byte {
	out := uleb128(uint32(len(name)))
	out = append(out, name...)
	out = append(out, kind)
	return append(out, uleb128(index)...)
}

func funcBody(locals, instrs []byte) []byte {
	payload := append(append([]byte{}, locals...), instrs...)
	out := uleb128(uint32(len(payload)))
	return append(out, payload...)
}

// loadF64 emits "push f64 at base + (index << 3)" for the given locals.
func loadF64(basePtr, index byte) []byte {
	return []byte{
		opLocalGet, basePtr,
		opLocalGet, index,
		opI32Const, 3,
		opI32Shl,
		opI32Add,
		opF64Load, 0x03, 0x00,
	}
}

func loopHeader(index, length byte) []byte {
	return []byte{
		opBlock, blockTypeEmpty,
		opLoop, blockTypeEmpty,
		opLocalGet, index,
		opLocalGet, length,
		opI32GeU,
		opBrIf, 0x01,
	}
}

func loopFooter(index byte) []byte {
	return []byte{
		opLocalGet, index,
		opI32Const, 1,
		opI32Add,
		opLocalSet, index,
		opBr, 0x00,
		opEnd,
		opEnd,
	}
}

// sumBody reduces acc += mem[ptr + i*8] for i in [0, len).
// Params: ptr(0) i32, len(1) i32. Locals: i(2) i32, acc(3) f64.
func sumBody() []byte {
	locals := []byte{0x02, 0x01, valI32, 0x01, valF64}
	instrs := loopHeader(2, 1)
	instrs = append(instrs, opLocalGet, 3)
	instrs = append(instrs, loadF64(0, 2)...)
	instrs = append(instrs, opF64Add, opLocalSet, 3)
	instrs = append(instrs, loopFooter(2)...)
	instrs = append(instrs, opLocalGet, 3, opEnd)
	return funcBody(locals, instrs)
}

// sumsqBody reduces acc += (mem[ptr + i*8] - mean)^2.
// Params: ptr(0) i32, len(1) i32, mean(2) f64.
// Locals: i(3) i32, acc(4) f64, diff(5) f64.
func sumsqBody() []byte {
	locals := []byte{0x02, 0x01, valI32, 0x02, valF64}
	instrs := loopHeader(3, 1)
	instrs = append(instrs, loadF64(0, 3)...)
	instrs = append(instrs, opLocalGet, 2, opF64Sub, opLocalSet, 5)
	instrs = append(instrs,
		opLocalGet, 4,
		opLocalGet, 5,
		opLocalGet, 5,
		opF64Mul, opF64Add,
		opLocalSet, 4,
	)
	instrs = append(instrs, loopFooter(3)...)
	instrs = append(instrs, opLocalGet, 4, opEnd)
	return funcBody(locals, instrs)
}

// dotBody reduces acc += mem[a + i*8] * mem[b + i*8].
// Params: a(0) i32, b(1) i32, len(2) i32. Locals: i(3) i32, acc(4) f64.
func dotBody() []byte {
	locals := []byte{0x02, 0x01, valI32, 0x01, valF64}
	instrs := loopHeader(3, 2)
	instrs = append(instrs, opLocalGet, 4)
	instrs = append(instrs, loadF64(0, 3)...)
	instrs = append(instrs, loadF64(1, 3)...)
	instrs = append(instrs, opF64Mul, opF64Add, opLocalSet, 4)
	instrs = append(instrs, loopFooter(3)...)
	instrs = append(instrs, opLocalGet, 4, opEnd)
	return funcBody(locals, instrs)
}

// kernelModule assembles the complete kernel module binary.
func kernelModule() []byte {
	typeSum := []byte{funcTypeTag, 0x02, valI32, valI32, 0x01, valF64}
	typeSumsq := []byte{funcTypeTag, 0x03, valI32, valI32, valF64, 0x01, valF64}
	typeDot := []byte{funcTypeTag, 0x03, valI32, valI32, valI32, 0x01, valF64}

	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	out = append(out, wasmSection(secType, wasmVec(typeSum, typeSumsq, typeDot))...)
	out = append(out, wasmSection(secFunction, wasmVec([]byte{0x00}, []byte{0x01}, []byte{0x02}))...)
	// limits: no max, min 1 page
	out = append(out, wasmSection(secMemory, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(secExport, wasmVec(
		exportEntry("memory", exportKindMemory, 0),
		exportEntry("sum", exportKindFunc, 0),
		exportEntry("sumsq", exportKindFunc, 1),
		exportEntry("dot", exportKindFunc, 2),
	))...)
	out = append(out, wasmSection(secCode, wasmVec(sumBody(), sumsqBody(), dotBody()))...)
	return out
}
