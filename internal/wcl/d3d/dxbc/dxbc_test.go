package dxbc

import "testing"

func reg(kind OperandKind, idx int) Operand {
	return Operand{Kind: kind, Index: idx}
}

func TestExecMovAdd(t *testing.T) {
	instrs := []Instruction{
		{Op: OpMov, Dst: reg(KindTemp, 0), Srcs: []Operand{reg(KindInput, 0)}},
		{Op: OpAdd, Dst: reg(KindOutput, 0), Srcs: []Operand{reg(KindTemp, 0), reg(KindInput, 1)}},
		{Op: OpRet},
	}
	p, err := Decode(instrs)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ctx := NewContext(p, 2, 1, nil)
	ctx.Inputs[0] = Vec4{1, 2, 3, 4}
	ctx.Inputs[1] = Vec4{10, 10, 10, 10}

	if err := Exec(p, ctx); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	want := Vec4{11, 12, 13, 14}
	if ctx.Outputs[0] != want {
		t.Fatalf("output = %v, want %v", ctx.Outputs[0], want)
	}
}

func TestExecDP4(t *testing.T) {
	instrs := []Instruction{
		{Op: OpDP4, Dst: reg(KindOutput, 0), Srcs: []Operand{reg(KindInput, 0), reg(KindInput, 1)}},
		{Op: OpRet},
	}
	p, _ := Decode(instrs)
	ctx := NewContext(p, 2, 1, nil)
	ctx.Inputs[0] = Vec4{1, 2, 3, 4}
	ctx.Inputs[1] = Vec4{1, 1, 1, 1}

	if err := Exec(p, ctx); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ctx.Outputs[0][0] != 10 {
		t.Fatalf("dp4 = %v, want 10 in every lane", ctx.Outputs[0])
	}
}

func TestExecIfElseTakenBranch(t *testing.T) {
	instrs := []Instruction{
		{Op: OpIfNZ, Srcs: []Operand{reg(KindInput, 0)}},
		{Op: OpMov, Dst: reg(KindOutput, 0), Srcs: []Operand{{Kind: KindImmediate, Imm: Vec4{1, 1, 1, 1}}}},
		{Op: OpElse},
		{Op: OpMov, Dst: reg(KindOutput, 0), Srcs: []Operand{{Kind: KindImmediate, Imm: Vec4{0, 0, 0, 0}}}},
		{Op: OpEndIf},
		{Op: OpRet},
	}
	p, _ := Decode(instrs)

	ctx := NewContext(p, 1, 1, nil)
	ctx.Inputs[0] = Vec4{1, 0, 0, 0}
	if err := Exec(p, ctx); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ctx.Outputs[0] != (Vec4{1, 1, 1, 1}) {
		t.Fatalf("taken branch output = %v, want {1,1,1,1}", ctx.Outputs[0])
	}

	ctx2 := NewContext(p, 1, 1, nil)
	ctx2.Inputs[0] = Vec4{0, 0, 0, 0}
	if err := Exec(p, ctx2); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if ctx2.Outputs[0] != (Vec4{0, 0, 0, 0}) {
		t.Fatalf("not-taken branch output = %v, want {0,0,0,0}", ctx2.Outputs[0])
	}
}

func TestExecMovC(t *testing.T) {
	instrs := []Instruction{
		{Op: OpMovC, Dst: reg(KindOutput, 0), Srcs: []Operand{
			{Kind: KindImmediate, Imm: Vec4{1, 0, 1, 0}},
			{Kind: KindImmediate, Imm: Vec4{1, 1, 1, 1}},
			{Kind: KindImmediate, Imm: Vec4{2, 2, 2, 2}},
		}},
		{Op: OpRet},
	}
	p, _ := Decode(instrs)
	ctx := NewContext(p, 0, 1, nil)
	if err := Exec(p, ctx); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	want := Vec4{1, 2, 1, 2}
	if ctx.Outputs[0] != want {
		t.Fatalf("movc output = %v, want %v", ctx.Outputs[0], want)
	}
}

func TestExecUnknownOpcodeReturnsError(t *testing.T) {
	p := &Program{Instructions: []Instruction{{Op: Opcode(999)}}, NumTemps: 0}
	ctx := NewContext(p, 0, 0, nil)
	if err := Exec(p, ctx); err == nil {
		t.Fatal("expected an error for an unknown opcode, not a panic")
	}
}

func TestExecOutOfRangeOperandDoesNotPanic(t *testing.T) {
	p := &Program{Instructions: []Instruction{
		{Op: OpMov, Dst: reg(KindTemp, 0), Srcs: []Operand{reg(KindInput, 99)}},
	}, NumTemps: 1}
	ctx := NewContext(p, 1, 0, nil)
	if err := Exec(p, ctx); err == nil {
		t.Fatal("expected an error recovering from an out-of-range operand")
	}
}
