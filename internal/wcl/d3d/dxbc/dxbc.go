// Package dxbc interprets a minimal subset of shader-model-4 tokenized
// bytecode: mov, add, mul, dp4, ge, lt, min, max, movc, structured
// if_nz/else/endif, and ret, operating on four-component float
// registers. It is deliberately not a general DXBC container parser —
// no chunk table, no signature reflection — since every guest this
// port targets hands the interpreter a flat token stream it already
// extracted from the instruction-list chunk. A malformed or
// unrecognized token stream must degrade to the fixed-function path
// rather than panic; Exec reports that via an error so callers
// (internal/wcl/d3d) can fall back instead of aborting the draw.
package dxbc

import "fmt"

// Vec4 is a four-component float register, used for every operand
// type this interpreter supports (temps, inputs, outputs, constants,
// immediates).
type Vec4 [4]float32

// Opcode identifies one instruction.
type Opcode int

const (
	OpMov Opcode = iota
	OpAdd
	OpMul
	OpDP4
	OpGE
	OpLT
	OpMin
	OpMax
	OpMovC
	OpIfNZ
	OpElse
	OpEndIf
	OpRet
)

// OperandKind distinguishes where a register's storage lives.
type OperandKind int

const (
	KindTemp OperandKind = iota
	KindInput
	KindOutput
	KindConstBuffer
	KindImmediate
)

// Operand is one decoded instruction operand: a register reference
// (temp/input/output/cb) with an index and a write-mask/swizzle, or an
// immediate four-component constant. cb operands additionally carry the
// constant-buffer slot they indirect through (cb0[k] in the grammar).
type Operand struct {
	Kind     OperandKind
	Index    int
	CBSlot   int
	Swizzle  [4]int  // which source component feeds each destination lane, for sources
	WriteMask [4]bool // which destination lanes this write touches, for destinations
	Imm      Vec4
}

// Instruction is one decoded opcode plus its destination (for
// value-producing ops) and source operands.
type Instruction struct {
	Op   Opcode
	Dst  Operand
	Srcs []Operand
}

// Program is a fully decoded shader: its instruction stream plus the
// highest temp-register index it references, so Exec can size its temp
// bank once.
type Program struct {
	Instructions []Instruction
	NumTemps     int
}

// Decode wraps tokens in a Program, recording the highest temp index.
// It does not validate the stream and never returns an error: an
// unknown opcode or bad operand surfaces as an error from Exec, on
// which callers degrade to fixed-function.
// The grammar accepted here is the simplified one this package's own
// Assemble-equivalent producers emit: a flat []Instruction is the unit
// of exchange between a real DXBC byte parser (not implemented — no
// guest in this port ships compiled shader blobs, see DESIGN.md) and
// Exec. Decode exists so a future byte-level parser has a single
// target type to produce.
func Decode(instrs []Instruction) (*Program, error) {
	maxTemp := -1
	for _, in := range instrs {
		for _, op := range append([]Operand{in.Dst}, in.Srcs...) {
			if op.Kind == KindTemp && op.Index > maxTemp {
				maxTemp = op.Index
			}
		}
	}
	return &Program{Instructions: instrs, NumTemps: maxTemp + 1}, nil
}

// Context is the register file Exec operates over for one invocation
// (one vertex or one pixel).
type Context struct {
	Temps   []Vec4
	Inputs  []Vec4
	Outputs []Vec4
	CBs     [][]Vec4 // constant buffer slots, each a flat array of Vec4 registers
}

// NewContext allocates a Context sized for p, with the given input
// register count, output register count, and bound constant buffers.
func NewContext(p *Program, numInputs, numOutputs int, cbs [][]Vec4) *Context {
	return &Context{
		Temps:   make([]Vec4, p.NumTemps),
		Inputs:  make([]Vec4, numInputs),
		Outputs: make([]Vec4, numOutputs),
		CBs:     cbs,
	}
}

// Exec runs p to completion against ctx. Returns an error for any
// condition the fixed-function fallback should handle instead (bad
// operand index, division-shaped issue, missing cb slot) — it never
// panics on malformed input, matching the DXBC-fallback
// invariant.
func Exec(p *Program, ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dxbc: exec panic: %v", r)
		}
	}()

	pc := 0
	// skipDepth tracks nested if/else skipping: >0 means "currently
	// skipping instructions until the matching else/endif".
	skipDepth := 0
	// activeElse tracks, per open if, whether we're past its else.
	var condStack []bool

	for pc < len(p.Instructions) {
		in := p.Instructions[pc]

		if skipDepth > 0 {
			switch in.Op {
			case OpIfNZ:
				skipDepth++
			case OpElse:
				if skipDepth == 1 {
					skipDepth = 0
				}
			case OpEndIf:
				skipDepth--
				if len(condStack) > 0 {
					condStack = condStack[:len(condStack)-1]
				}
			}
			pc++
			continue
		}

		switch in.Op {
		case OpMov:
			v := readOperand(ctx, in.Srcs[0])
			writeOperand(ctx, in.Dst, v)
		case OpAdd:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, addVec4(a, b))
		case OpMul:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, mulVec4(a, b))
		case OpDP4:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			dp := a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
			writeOperand(ctx, in.Dst, Vec4{dp, dp, dp, dp})
		case OpGE:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, cmpVec4(a, b, func(x, y float32) bool { return x >= y }))
		case OpLT:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, cmpVec4(a, b, func(x, y float32) bool { return x < y }))
		case OpMin:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, combineVec4(a, b, minF32))
		case OpMax:
			a := readOperand(ctx, in.Srcs[0])
			b := readOperand(ctx, in.Srcs[1])
			writeOperand(ctx, in.Dst, combineVec4(a, b, maxF32))
		case OpMovC:
			cond := readOperand(ctx, in.Srcs[0])
			a := readOperand(ctx, in.Srcs[1])
			b := readOperand(ctx, in.Srcs[2])
			var out Vec4
			for i := 0; i < 4; i++ {
				if cond[i] != 0 {
					out[i] = a[i]
				} else {
					out[i] = b[i]
				}
			}
			writeOperand(ctx, in.Dst, out)
		case OpIfNZ:
			cond := readOperand(ctx, in.Srcs[0])
			taken := cond[0] != 0
			condStack = append(condStack, taken)
			if !taken {
				skipDepth = 1
			}
		case OpElse:
			if len(condStack) > 0 && condStack[len(condStack)-1] {
				skipDepth = 1
			}
		case OpEndIf:
			if len(condStack) > 0 {
				condStack = condStack[:len(condStack)-1]
			}
		case OpRet:
			return nil
		default:
			return fmt.Errorf("dxbc: unknown opcode %d", in.Op)
		}
		pc++
	}
	return nil
}

func readOperand(ctx *Context, op Operand) Vec4 {
	var src Vec4
	switch op.Kind {
	case KindTemp:
		src = ctx.Temps[op.Index]
	case KindInput:
		src = ctx.Inputs[op.Index]
	case KindOutput:
		src = ctx.Outputs[op.Index]
	case KindConstBuffer:
		src = ctx.CBs[op.CBSlot][op.Index]
	case KindImmediate:
		src = op.Imm
	}
	swizzle := op.Swizzle
	if swizzle == ([4]int{}) {
		swizzle = [4]int{0, 1, 2, 3} // unspecified swizzle reads x,y,z,w in order
	}
	var out Vec4
	for i := 0; i < 4; i++ {
		out[i] = src[swizzle[i]]
	}
	return out
}

func writeOperand(ctx *Context, op Operand, v Vec4) {
	var dst *Vec4
	switch op.Kind {
	case KindTemp:
		dst = &ctx.Temps[op.Index]
	case KindOutput:
		dst = &ctx.Outputs[op.Index]
	default:
		return // writes to input/cb/immediate are not meaningful, ignored
	}
	mask := op.WriteMask
	if mask == ([4]bool{}) {
		mask = [4]bool{true, true, true, true} // unspecified mask writes every lane
	}
	for i := 0; i < 4; i++ {
		if mask[i] {
			dst[i] = v[i]
		}
	}
}

func addVec4(a, b Vec4) Vec4 { return Vec4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]} }
func mulVec4(a, b Vec4) Vec4 { return Vec4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]} }

func cmpVec4(a, b Vec4, cmp func(float32, float32) bool) Vec4 {
	var out Vec4
	for i := 0; i < 4; i++ {
		if cmp(a[i], b[i]) {
			out[i] = 1
		}
	}
	return out
}

func combineVec4(a, b Vec4, f func(float32, float32) float32) Vec4 {
	return Vec4{f(a[0], b[0]), f(a[1], b[1]), f(a[2], b[2]), f(a[3], b[3])}
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
