package asm

import (
	"fmt"
	"strings"
	"testing"
)

// smallProgram is a counter loop.
const smallProgram = `
    MOV_A_IMM 10
    MOV_B_IMM 0
loop:
    ADD_B_A
    DEC_A
    JNZ loop
    HALT
`

// mediumProgram has subroutines, stack use and data.
const mediumProgram = `
    MOV_SP_IMM 0xFF00
    JMP main

double:
    ADD_A_A
    RET

negate:
    NOT_A
    INC_A
    RET

main:
    MOV_A_MEM [value]
    CALL double
    CALL negate
    MOV_MEM_A [result]
    PUSH_A
    POP_B
    CMP_B_IMM 0xEC
    JZ ok
    BREAKPOINT
ok:
    CORE_COUNT
    MOV_C_A
    CPU_COUNT
    MOV_D_A
    SYSCALL 0

value:  .BYTE 10
result: .BYTE 0
msg:    .STRING "Benchmark complete"
`

// largeProgram repeats a block of code with unique labels.
var largeProgram = func() string {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "block%d:\n", i)
		b.WriteString("    MOV_A_IMM 1\n    ADD_A_IMM 2\n    XOR_A_B\n    SHL_A_IMM 1\n    MOV_MEM_A [0x6000]\n")
		fmt.Fprintf(&b, "    JNZ block%d\n", i)
	}
	b.WriteString("    HALT\n")
	return b.String()
}()

func BenchmarkAssemble_Small(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(smallProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssemble_Medium(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(mediumProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssemble_Large(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(largeProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}
