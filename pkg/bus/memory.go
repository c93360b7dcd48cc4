package bus

import (
	"errors"
	"fmt"

	"gocpu8/pkg/isa"
)

var ErrImageTooLarge = errors.New("image does not fit region")

// ROM is the read-only low region. Contents are loaded by the host before
// the machine runs; the bus rejects writes from software.
type ROM struct {
	data [isa.ROMSize]byte
}

// Load copies image to the start of ROM, zeroing the remainder.
func (r *ROM) Load(image []byte) error {
	if len(image) > len(r.data) {
		return fmt.Errorf("rom: %d bytes > %d: %w", len(image), len(r.data), ErrImageTooLarge)
	}
	r.data = [isa.ROMSize]byte{}
	copy(r.data[:], image)
	return nil
}

func (r *ROM) Read(addr uint16) byte {
	if int(addr-isa.ROMStart) >= len(r.data) {
		return 0
	}
	return r.data[addr-isa.ROMStart]
}

// Bytes returns a copy of the ROM contents.
func (r *ROM) Bytes() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data[:])
	return out
}

// RAM covers the OS, program and stack regions. It is addressed with
// absolute bus addresses.
type RAM struct {
	data [isa.RAMSize]byte
}

func (m *RAM) contains(addr uint16) bool {
	return addr >= isa.RAMStart && addr <= isa.RAMEnd
}

func (m *RAM) Read(addr uint16) byte {
	if !m.contains(addr) {
		return 0
	}
	return m.data[addr-isa.RAMStart]
}

func (m *RAM) Write(addr uint16, val byte) {
	if !m.contains(addr) {
		return
	}
	m.data[addr-isa.RAMStart] = val
}

// Load copies image into RAM at addr.
func (m *RAM) Load(addr uint16, image []byte) error {
	if !m.contains(addr) || int(addr)+len(image)-1 > int(isa.RAMEnd) {
		return fmt.Errorf("ram: %d bytes at 0x%04X: %w", len(image), addr, ErrImageTooLarge)
	}
	copy(m.data[addr-isa.RAMStart:], image)
	return nil
}

// Clear zeroes the inclusive range [start, end].
func (m *RAM) Clear(start, end uint16) {
	if start < isa.RAMStart {
		start = isa.RAMStart
	}
	if end > isa.RAMEnd {
		end = isa.RAMEnd
	}
	if start > end {
		return
	}
	clear(m.data[start-isa.RAMStart : end-isa.RAMStart+1])
}

// Bytes returns a copy of the RAM contents, starting at isa.RAMStart.
func (m *RAM) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data[:])
	return out
}

// Restore replaces the RAM contents with data captured by Bytes.
func (m *RAM) Restore(data []byte) error {
	if len(data) != len(m.data) {
		return fmt.Errorf("ram: snapshot is %d bytes, want %d", len(data), len(m.data))
	}
	copy(m.data[:], data)
	return nil
}
