package isa

// Memory map. These addresses are part of the binary ABI shared with the
// assembler, bootloader and OS images and are not configurable.
const (
	ROMStart uint16 = 0x0000
	ROMEnd   uint16 = 0x0FFF

	OSStart uint16 = 0x1000
	OSEnd   uint16 = 0x3FFF

	ProgramStart uint16 = 0x4000
	ProgramEnd   uint16 = 0xEFFF

	StackStart uint16 = 0xF000
	StackEnd   uint16 = 0xFEFF
	// StackTop is the initial SP for loaded programs. Pushes pre-decrement,
	// so the first byte lands at StackEnd.
	StackTop uint16 = 0xFF00

	IOBase uint16 = 0xFF00
	IOEnd  uint16 = 0xFFFF

	RAMStart = OSStart
	RAMEnd   = StackEnd

	ResetVector = ROMStart
)

const (
	ROMSize      = int(ROMEnd-ROMStart) + 1
	RAMSize      = int(RAMEnd-RAMStart) + 1
	DeviceSlots  = 16
	PortsPerSlot = 16
)

// Region classifies an address.
type Region int

const (
	RegionROM Region = iota
	RegionRAM
	RegionIO
)

func (r Region) String() string {
	switch r {
	case RegionROM:
		return "ROM"
	case RegionRAM:
		return "RAM"
	case RegionIO:
		return "I/O"
	}
	return "?"
}

// RegionOf returns the region an address decodes to.
func RegionOf(addr uint16) Region {
	switch {
	case addr <= ROMEnd:
		return RegionROM
	case addr >= IOBase:
		return RegionIO
	}
	return RegionRAM
}

// SlotAddress returns the first address of a device slot.
func SlotAddress(slot int) uint16 {
	return IOBase + uint16(slot)*PortsPerSlot
}
