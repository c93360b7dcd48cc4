package peripherals

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"gocpu8/pkg/isa"
	"gocpu8/pkg/vfs"
)

// Disk ports. Pointers and the length are little-endian pairs.
const (
	DiskPortNameLow    byte = 0 // R/W: address of the NUL-terminated file name
	DiskPortNameHigh   byte = 1
	DiskPortBufferLow  byte = 2 // R/W: address of the data buffer
	DiskPortBufferHigh byte = 3
	DiskPortLengthLow  byte = 4 // R/W: transfer length; set to the file size by read and size
	DiskPortLengthHigh byte = 5
	DiskPortCommand    byte = 6 // W: one of the Disk* commands
	DiskPortStatus     byte = 7 // R: result of the last command
	DiskPortFreeLow    byte = 8 // R: free space in 256-byte blocks
	DiskPortFreeHigh   byte = 9
)

// Disk commands.
const (
	DiskRead   byte = 1
	DiskWrite  byte = 2
	DiskSize   byte = 3
	DiskDelete byte = 4
)

// Disk status codes.
const (
	DiskOK          byte = 0
	DiskNotFound    byte = 1
	DiskFull        byte = 2
	DiskBadName     byte = 3
	DiskOutOfBounds byte = 4
	DiskBadCommand  byte = 5
)

const diskStateSize = 7

// Memory is the bus side of the disk's DMA transfers. *bus.Bus satisfies
// it, so transfers invalidate CPU caches like any other write.
type Memory interface {
	Read(addr uint16) byte
	Write(addr uint16, val byte)
}

// Disk copies whole files between a vfs.Store and RAM. A command runs to
// completion inside the port write that issues it.
type Disk struct {
	mu     sync.Mutex
	mem    Memory
	store  *vfs.Store
	name   uint16
	buffer uint16
	length uint16
	status byte
}

func NewDisk(mem Memory, store *vfs.Store) *Disk {
	if store == nil {
		store = vfs.NewStore(0)
	}
	return &Disk{mem: mem, store: store}
}

// Store returns the backing file store.
func (d *Disk) Store() *vfs.Store {
	return d.store
}

func (d *Disk) Read(port byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch port {
	case DiskPortNameLow:
		return byte(d.name)
	case DiskPortNameHigh:
		return byte(d.name >> 8)
	case DiskPortBufferLow:
		return byte(d.buffer)
	case DiskPortBufferHigh:
		return byte(d.buffer >> 8)
	case DiskPortLengthLow:
		return byte(d.length)
	case DiskPortLengthHigh:
		return byte(d.length >> 8)
	case DiskPortStatus:
		return d.status
	case DiskPortFreeLow:
		return byte(d.freeBlocks())
	case DiskPortFreeHigh:
		return byte(d.freeBlocks() >> 8)
	}
	return 0
}

func (d *Disk) freeBlocks() uint16 {
	blocks := d.store.Free() / 256
	if blocks > 0xFFFF {
		return 0xFFFF
	}
	return uint16(blocks)
}

func (d *Disk) Write(port byte, value byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setLow := func(r *uint16) { *r = *r&0xFF00 | uint16(value) }
	setHigh := func(r *uint16) { *r = *r&0x00FF | uint16(value)<<8 }
	switch port {
	case DiskPortNameLow:
		setLow(&d.name)
	case DiskPortNameHigh:
		setHigh(&d.name)
	case DiskPortBufferLow:
		setLow(&d.buffer)
	case DiskPortBufferHigh:
		setHigh(&d.buffer)
	case DiskPortLengthLow:
		setLow(&d.length)
	case DiskPortLengthHigh:
		setHigh(&d.length)
	case DiskPortCommand:
		d.status = d.run(value)
	}
}

func (d *Disk) run(cmd byte) byte {
	name, ok := d.fileName()
	if !ok {
		return DiskBadName
	}
	switch cmd {
	case DiskRead:
		data, err := d.store.Read(name)
		if err != nil {
			return statusOf(err)
		}
		if len(data) > 0xFFFF {
			data = data[:0xFFFF]
		}
		if !d.inRAM(uint16(len(data))) {
			return DiskOutOfBounds
		}
		for i, b := range data {
			d.mem.Write(d.buffer+uint16(i), b)
		}
		d.length = uint16(len(data))
	case DiskWrite:
		if !d.inRAM(d.length) {
			return DiskOutOfBounds
		}
		data := make([]byte, d.length)
		for i := range data {
			data[i] = d.mem.Read(d.buffer + uint16(i))
		}
		if err := d.store.Write(name, data); err != nil {
			return statusOf(err)
		}
	case DiskSize:
		n, err := d.store.Size(name)
		if err != nil {
			return statusOf(err)
		}
		if n > 0xFFFF {
			n = 0xFFFF
		}
		d.length = uint16(n)
	case DiskDelete:
		if err := d.store.Delete(name); err != nil {
			return statusOf(err)
		}
	default:
		return DiskBadCommand
	}
	return DiskOK
}

// fileName reads the name at the name pointer.
func (d *Disk) fileName() (string, bool) {
	buf := make([]byte, 0, vfs.MaxNameLength)
	for i := 0; i <= vfs.MaxNameLength; i++ {
		b := d.mem.Read(d.name + uint16(i))
		if b == 0 {
			name := string(buf)
			return name, vfs.ValidName(name)
		}
		buf = append(buf, b)
	}
	return "", false
}

// inRAM reports whether n bytes at the buffer pointer lie inside RAM.
func (d *Disk) inRAM(n uint16) bool {
	if n == 0 {
		return true
	}
	end := uint32(d.buffer) + uint32(n) - 1
	return d.buffer >= isa.RAMStart && end <= uint32(isa.RAMEnd)
}

func statusOf(err error) byte {
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		return DiskNotFound
	case errors.Is(err, vfs.ErrFull):
		return DiskFull
	}
	return DiskBadName
}

// Reset clears the registers. Files are kept.
func (d *Disk) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name, d.buffer, d.length, d.status = 0, 0, 0, 0
}

// SaveState serialises the registers as 7 bytes. File contents live in
// the store, not the machine.
func (d *Disk) SaveState() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, diskStateSize)
	binary.LittleEndian.PutUint16(buf[0:], d.name)
	binary.LittleEndian.PutUint16(buf[2:], d.buffer)
	binary.LittleEndian.PutUint16(buf[4:], d.length)
	buf[6] = d.status
	return buf
}

func (d *Disk) LoadState(data []byte) error {
	if len(data) < diskStateSize {
		return fmt.Errorf("Disk.LoadState: need %d bytes, got %d", diskStateSize, len(data))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = binary.LittleEndian.Uint16(data[0:])
	d.buffer = binary.LittleEndian.Uint16(data[2:])
	d.length = binary.LittleEndian.Uint16(data[4:])
	d.status = data[6]
	return nil
}
