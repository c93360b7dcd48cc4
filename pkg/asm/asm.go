// Package asm is a two-pass assembler for the fixed instruction set in
// package isa. Mnemonics are written exactly as the opcode table names
// them (MOV_A_IMM, ADD_B_C, JMP, ...); register operands are part of the
// mnemonic, so every instruction takes at most one operand.
//
//	        .ORG 0x4000
//	start:  MOV_A_IMM 10
//	loop:   DEC_A
//	        JNZ loop
//	        MOV_MEM_A [result]
//	        SYSCALL 0
//	result: .BYTE 0
//
// Directives: .ORG addr, .BYTE v[, v...], .WORD v, .STRING "text" (NUL
// terminated). Comments start with ';' or '//'.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gocpu8/pkg/isa"
)

// Assembler holds the label table of one assembly run.
type Assembler struct {
	set    *isa.InstructionSet
	origin uint16
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

// NewAssembler returns an assembler whose output is loaded at origin.
// Labels resolve to absolute addresses.
func NewAssembler(origin uint16) *Assembler {
	return &Assembler{
		set:    isa.Default(),
		origin: origin,
		labels: make(map[string]uint16),
	}
}

// Assemble assembles code for the program region. The source map is keyed
// by absolute address and holds 1-based line numbers.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler(isa.ProgramStart).Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")
	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, nil, err
		}
		parsed = append(parsed, p)
	}

	if err := a.pass1(parsed); err != nil {
		return nil, nil, err
	}
	return a.pass2(parsed)
}

// Labels returns the label table built by the last Assemble call, keyed by
// upper-cased name.
func (a *Assembler) Labels() map[string]uint16 {
	out := make(map[string]uint16, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

// pass1 assigns an address to every label.
func (a *Assembler) pass1(lines []parsedLine) error {
	address := uint32(a.origin)

	for _, p := range lines {
		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, p.lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			a.labels[key] = uint16(address)
		}
		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".ORG":
			target, err := a.parseOrigin(p, address)
			if err != nil {
				return err
			}
			address = target
			continue
		case ".STRING":
			length = uint32(len(p.operands[0]) + 1)
		case ".BYTE":
			if len(p.operands) == 0 {
				return fmt.Errorf(".BYTE expects at least one operand on line %d", p.lineNo)
			}
			length = uint32(len(p.operands))
		case ".WORD":
			if len(p.operands) != 1 {
				return fmt.Errorf(".WORD expects exactly one operand on line %d", p.lineNo)
			}
			length = 2
		default:
			in, ok := a.set.ByMnemonic(p.mnemonic)
			if !ok {
				return fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
			}
			length = uint32(in.Length)
		}

		if address+length > 0x10000 {
			return fmt.Errorf("program too large near line %d", p.lineNo)
		}
		address += length
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for _, p := range lines {
		if p.mnemonic == "" {
			continue
		}
		here := a.origin + uint16(len(program))
		ops := p.operands

		switch p.mnemonic {
		case ".ORG":
			target, err := a.parseOrigin(p, uint32(here))
			if err != nil {
				return nil, nil, err
			}
			program = append(program, make([]byte, target-uint32(here))...)
			continue
		case ".STRING":
			sourceMap[here] = p.lineNo
			program = append(program, ops[0]...)
			program = append(program, 0x00)
			continue
		case ".BYTE":
			sourceMap[here] = p.lineNo
			for _, op := range ops {
				v, err := a.parseByte(op, p.lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, v)
			}
			continue
		case ".WORD":
			sourceMap[here] = p.lineNo
			v, err := a.parseImmediate(ops[0], p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(v), byte(v>>8))
			continue
		}

		in, ok := a.set.ByMnemonic(p.mnemonic)
		if !ok {
			return nil, nil, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
		want := in.Length - 1
		if want > 1 {
			want = 1
		}
		if len(ops) != want {
			return nil, nil, fmt.Errorf("%s expects %d operand(s) on line %d", p.mnemonic, want, p.lineNo)
		}

		sourceMap[here] = p.lineNo
		program = append(program, in.Opcode)
		switch in.Length {
		case 2:
			v, err := a.parseByte(ops[0], p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, v)
		case 3:
			v, err := a.parseImmediate(ops[0], p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(v), byte(v>>8))
		}
	}

	return program, sourceMap, nil
}

func (a *Assembler) parseOrigin(p parsedLine, address uint32) (uint32, error) {
	if len(p.operands) != 1 {
		return 0, fmt.Errorf(".ORG expects exactly one operand on line %d", p.lineNo)
	}
	target, err := strconv.ParseUint(p.operands[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", p.lineNo, p.operands[0])
	}
	if target > 0xFFFF {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", p.lineNo, p.operands[0])
	}
	if uint32(target) < address {
		return 0, fmt.Errorf("cannot move origin backward on line %d", p.lineNo)
	}
	return uint32(target), nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	// .STRING keeps its operand verbatim, so it is split off before comments
	// and commas are touched.
	if idx := strings.Index(strings.ToUpper(raw), ".STRING"); idx != -1 {
		pre := strings.TrimSpace(raw[:idx])
		if pre != "" {
			label := strings.TrimSuffix(pre, ":")
			if label == pre || !isIdentifier(label) {
				return p, fmt.Errorf("invalid label before .STRING on line %d", lineNo)
			}
			p.labels = append(p.labels, label)
		}
		rest := strings.TrimSpace(raw[idx+len(".STRING"):])
		closing := strings.LastIndex(rest, "\"")
		if !strings.HasPrefix(rest, "\"") || closing <= 0 {
			return p, fmt.Errorf("invalid string literal on line %d", lineNo)
		}
		text, err := strconv.Unquote(rest[:closing+1])
		if err != nil {
			return p, fmt.Errorf("invalid string literal on line %d: %v", lineNo, err)
		}
		p.mnemonic = ".STRING"
		p.operands = []string{text}
		return p, nil
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t'") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}
		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(normalizeInstructionText(line))
	if len(fields) == 0 {
		return p, nil
	}
	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}
	return p, nil
}

func stripComments(line string) string {
	cut := -1
	if semicolon := strings.Index(line, ";"); semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash := strings.Index(line, "//"); doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// normalizeInstructionText turns operand punctuation into field breaks;
// memory operands may be written with or without brackets.
func normalizeInstructionText(line string) string {
	return strings.NewReplacer(",", " ", "[", " ", "]", " ").Replace(line)
}

// parseImmediate resolves a 16-bit operand: a number, a character literal
// or a label.
func (a *Assembler) parseImmediate(token string, lineNo int) (uint16, error) {
	if value, err := strconv.ParseUint(token, 0, 32); err == nil {
		if value > 0xFFFF {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}
	if len(token) >= 3 && token[0] == '\'' {
		r, _, tail, err := strconv.UnquoteChar(token[1:], '\'')
		if err == nil && tail == "'" && r <= 0xFF {
			return uint16(r), nil
		}
		return 0, fmt.Errorf("invalid character literal on line %d: %s", lineNo, token)
	}

	if addr, ok := a.labels[normalizeLabel(token)]; ok {
		return addr, nil
	}
	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}
	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// parseByte is parseImmediate restricted to 8 bits. Labels are rejected
// since no address fits a byte.
func (a *Assembler) parseByte(token string, lineNo int) (byte, error) {
	if isIdentifier(token) {
		return 0, fmt.Errorf("label '%s' used as 8-bit operand on line %d", token, lineNo)
	}
	v, err := a.parseImmediate(token, lineNo)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("8-bit operand out of range on line %d: %s", lineNo, token)
	}
	return byte(v), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
