package asm

import (
	"reflect"
	"strings"
	"testing"

	"gocpu8/pkg/isa"
)

func op(name string) byte {
	return isa.Default().Opcode(name)
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if got := normalizeLabel("label"); got != "LABEL" {
		t.Errorf("normalizeLabel(\"label\") = %q; want \"LABEL\"", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			"mov_a_imm 5",
			parsedLine{lineNo: 1, mnemonic: "MOV_A_IMM", operands: []string{"5"}},
			false,
		},
		{
			"  MOV_MEM_B [0x5000]  ; store",
			parsedLine{lineNo: 1, mnemonic: "MOV_MEM_B", operands: []string{"0x5000"}},
			false,
		},
		{
			"START: NOP",
			parsedLine{lineNo: 1, labels: []string{"START"}, mnemonic: "NOP"},
			false,
		},
		{
			"LABEL1: LABEL2: HALT // done",
			parsedLine{lineNo: 1, labels: []string{"LABEL1", "LABEL2"}, mnemonic: "HALT"},
			false,
		},
		{
			".BYTE 1, 2, 0x03",
			parsedLine{lineNo: 1, mnemonic: ".BYTE", operands: []string{"1", "2", "0x03"}},
			false,
		},
		{
			".ORG 0x4100",
			parsedLine{lineNo: 1, mnemonic: ".ORG", operands: []string{"0x4100"}},
			false,
		},
		{
			`msg: .STRING "a; b\n"`,
			parsedLine{lineNo: 1, labels: []string{"msg"}, mnemonic: ".STRING", operands: []string{"a; b\n"}},
			false,
		},
		{
			"; only a comment",
			parsedLine{lineNo: 1},
			false,
		},
		{"1LABEL: NOP", parsedLine{}, true},
		{`.STRING "unterminated`, parsedLine{}, true},
		{".STRING missing_quote", parsedLine{}, true},
		{`bad label: .STRING "x"`, parsedLine{}, true},
	}

	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if tc.wantErr {
			continue
		}
		if got.mnemonic != tc.want.mnemonic {
			t.Errorf("parseLine(%q) mnemonic = %q, want %q", tc.line, got.mnemonic, tc.want.mnemonic)
		}
		if !reflect.DeepEqual(got.labels, tc.want.labels) && !(len(got.labels) == 0 && len(tc.want.labels) == 0) {
			t.Errorf("parseLine(%q) labels = %v, want %v", tc.line, got.labels, tc.want.labels)
		}
		if !reflect.DeepEqual(got.operands, tc.want.operands) && !(len(got.operands) == 0 && len(tc.want.operands) == 0) {
			t.Errorf("parseLine(%q) operands = %v, want %v", tc.line, got.operands, tc.want.operands)
		}
	}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    []byte
		wantErr string
	}{
		{
			name: "basic instructions",
			code: `
			MOV_A_IMM 10
			ADD_A_B
			HALT
			`,
			want: []byte{op("MOV_A_IMM"), 10, op("ADD_A_B"), op("HALT")},
		},
		{
			name: "memory operands little endian",
			code: `
			MOV_A_MEM [0x5001]
			MOV_MEM_D 0x1234
			`,
			want: []byte{op("MOV_A_MEM"), 0x01, 0x50, op("MOV_MEM_D"), 0x34, 0x12},
		},
		{
			name: "labels resolve to absolute addresses",
			code: `
			start: JMP end
			NOP
			end: JMP start
			`,
			want: []byte{op("JMP"), 0x04, 0x40, op("NOP"), op("JMP"), 0x00, 0x40},
		},
		{
			name: "forward data reference",
			code: `
			MOV_B_MEM value
			HALT
			value: .BYTE 0x2A
			`,
			want: []byte{op("MOV_B_MEM"), 0x04, 0x40, op("HALT"), 0x2A},
		},
		{
			name: "character literal and syscall",
			code: `
			MOV_C_IMM 'Z'
			SYSCALL 0
			`,
			want: []byte{op("MOV_C_IMM"), 'Z', op("SYSCALL"), 0},
		},
		{
			name: "directives",
			code: `
			.WORD 0xBEEF
			.BYTE 1, 2
			.STRING "ok"
			.ORG 0x4009
			NOP
			`,
			want: []byte{0xEF, 0xBE, 1, 2, 'o', 'k', 0, 0, 0, op("NOP")},
		},
		{
			name: "multicore mnemonics",
			code: `
			MOV_A_IMM 1
			CORE_START
			CPU_COUNT
			MOV_SP_IMM 0xFF00
			`,
			want: []byte{op("MOV_A_IMM"), 1, op("CORE_START"), op("CPU_COUNT"), op("MOV_SP_IMM"), 0x00, 0xFF},
		},
		{name: "unknown instruction", code: "LDI R0, 1", wantErr: "unknown instruction"},
		{name: "missing operand", code: "JMP", wantErr: "expects 1 operand"},
		{name: "extra operand", code: "NOP 1", wantErr: "expects 0 operand"},
		{name: "byte out of range", code: "MOV_A_IMM 256", wantErr: "out of range"},
		{name: "label as byte", code: "x: MOV_A_IMM x", wantErr: "8-bit operand"},
		{name: "undefined label", code: "JMP nowhere", wantErr: "undefined label"},
		{name: "invalid immediate", code: "JMP 12zz", wantErr: "invalid immediate"},
		{name: "duplicate label", code: "a: NOP\nA: NOP", wantErr: "duplicate label"},
		{name: "origin backwards", code: "NOP\n.ORG 0x4000\nNOP\n.ORG 0x3000", wantErr: "backward"},
		{name: "origin out of range", code: ".ORG 0x10000", wantErr: "out of range"},
		{name: "empty .BYTE", code: ".BYTE", wantErr: "at least one"},
		{name: "too large", code: ".ORG 0xFFFF\nJMP 0", wantErr: "too large"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := Assemble(tc.code)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Assemble error = %v, want it to contain %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Assemble = % X, want % X", got, tc.want)
			}
		})
	}
}

func TestAssembleAtOrigin(t *testing.T) {
	a := NewAssembler(isa.OSStart)
	code, _, err := a.Assemble("entry: JMP entry")
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := []byte{op("JMP"), 0x00, 0x10}
	if !reflect.DeepEqual(code, want) {
		t.Errorf("Assemble = % X, want % X", code, want)
	}
	if got := a.Labels()["ENTRY"]; got != isa.OSStart {
		t.Errorf("label ENTRY = 0x%04X, want 0x%04X", got, isa.OSStart)
	}
}

func TestAssembleRoundTripsThroughDisassembler(t *testing.T) {
	set := isa.Default()
	for _, in := range set.All() {
		line := in.Mnemonic
		switch in.Length {
		case 2:
			line += " 0x7F"
		case 3:
			line += " 0x1234"
		}
		code, _, err := Assemble(line)
		if err != nil {
			t.Fatalf("Assemble(%q) failed: %v", line, err)
		}
		text, n := set.Disassemble(func(addr uint16) byte { return code[addr-isa.ProgramStart] }, isa.ProgramStart)
		if n != len(code) {
			t.Errorf("%s: disassembled length %d, assembled %d", in.Mnemonic, n, len(code))
		}
		if strings.Fields(text)[0] != in.Mnemonic {
			t.Errorf("%s: disassembled as %q", in.Mnemonic, text)
		}
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NOP ; comment", "NOP "},
		{"NOP // comment", "NOP "},
		{"NOP // a ; b", "NOP "},
		{"NOP ; a // b", "NOP "},
		{"NOP", "NOP"},
	}
	for _, tc := range tests {
		if got := stripComments(tc.in); got != tc.want {
			t.Errorf("stripComments(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
