package bus

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/isa"
)

// Bus decodes 16-bit addresses to ROM, RAM or a device port. It is shared
// by every CPU; each CPU reaches it through its own cached Accessor.
type Bus struct {
	rom     ROM
	ram     RAM
	devices [isa.DeviceSlots]Device
	caches  []*L1Cache
	log     logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{log: log.WithField("component", "bus")}
}

func (b *Bus) ROM() *ROM {
	return &b.rom
}

func (b *Bus) RAM() *RAM {
	return &b.ram
}

// Mount places a device in an I/O slot, replacing whatever was there.
func (b *Bus) Mount(slot int, d Device) error {
	if slot < 0 || slot >= isa.DeviceSlots {
		return fmt.Errorf("device slot %d out of range 0-%d", slot, isa.DeviceSlots-1)
	}
	b.devices[slot] = d
	return nil
}

// Device returns the device in slot, or nil.
func (b *Bus) Device(slot int) Device {
	if slot < 0 || slot >= isa.DeviceSlots {
		return nil
	}
	return b.devices[slot]
}

// Read performs an uncached bus read.
func (b *Bus) Read(addr uint16) byte {
	switch isa.RegionOf(addr) {
	case isa.RegionROM:
		return b.rom.Read(addr)
	case isa.RegionIO:
		port := addr - isa.IOBase
		d := b.devices[port/isa.PortsPerSlot]
		if d == nil {
			return 0
		}
		return d.Read(byte(port % isa.PortsPerSlot))
	}
	return b.ram.Read(addr)
}

// Write performs a bus write. ROM writes are dropped with a warning. RAM
// writes invalidate the address in every attached cache.
func (b *Bus) Write(addr uint16, val byte) {
	switch isa.RegionOf(addr) {
	case isa.RegionROM:
		b.log.WithFields(logrus.Fields{"addr": fmt.Sprintf("0x%04X", addr), "value": val}).Warn("write to ROM ignored")
		return
	case isa.RegionIO:
		port := addr - isa.IOBase
		d := b.devices[port/isa.PortsPerSlot]
		if d == nil {
			b.log.WithField("addr", fmt.Sprintf("0x%04X", addr)).Debug("write to empty device slot")
			return
		}
		d.Write(byte(port%isa.PortsPerSlot), val)
		return
	}
	b.ram.Write(addr, val)
	for _, c := range b.caches {
		c.Invalidate(addr)
	}
}

// NewAccessor attaches cache to the bus and returns the accessor a CPU
// uses for all of its memory traffic.
func (b *Bus) NewAccessor(cache *L1Cache) *Accessor {
	if cache != nil {
		b.caches = append(b.caches, cache)
	}
	return &Accessor{bus: b, cache: cache}
}

// FlushCaches empties every attached cache.
func (b *Bus) FlushCaches() {
	for _, c := range b.caches {
		c.Flush()
	}
}

// ClearRAM zeroes [start, end] and drops any cached copies.
func (b *Bus) ClearRAM(start, end uint16) {
	b.ram.Clear(start, end)
	b.FlushCaches()
}

// Tick advances every device that does background work.
func (b *Bus) Tick() {
	for _, d := range b.devices {
		if t, ok := d.(Ticker); ok {
			t.Tick()
		}
	}
}

// Reset resets every resettable device.
func (b *Bus) Reset() {
	for _, d := range b.devices {
		if r, ok := d.(Resetter); ok {
			r.Reset()
		}
	}
}

// Accessor is a CPU's view of the bus: RAM reads go through the CPU's L1
// cache, everything else goes straight to the bus.
type Accessor struct {
	bus   *Bus
	cache *L1Cache
}

func (a *Accessor) Read(addr uint16) byte {
	if isa.RegionOf(addr) != isa.RegionRAM || a.cache == nil {
		return a.bus.Read(addr)
	}
	if v, ok := a.cache.Lookup(addr); ok {
		return v
	}
	v := a.bus.ram.Read(addr)
	a.cache.Fill(addr, v)
	return v
}

func (a *Accessor) Write(addr uint16, val byte) {
	a.bus.Write(addr, val)
}

func (a *Accessor) Cache() *L1Cache {
	return a.cache
}

func (a *Accessor) Bus() *Bus {
	return a.bus
}
