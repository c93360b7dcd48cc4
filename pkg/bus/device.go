package bus

// Device is anything mounted in one of the sixteen I/O slots. Ports are
// 0-15 within the device's slot.
type Device interface {
	Read(port byte) byte
	Write(port byte, value byte)
}

// Resetter is implemented by devices that can return to power-on state.
type Resetter interface {
	Reset()
}

// Ticker is implemented by devices that do background work once per
// machine tick, before any CPU runs.
type Ticker interface {
	Tick()
}

// DeviceFunc adapts a pair of functions to the Device interface.
type DeviceFunc struct {
	ReadFunc  func(port byte) byte
	WriteFunc func(port byte, value byte)
}

func (d DeviceFunc) Read(port byte) byte {
	if d.ReadFunc != nil {
		return d.ReadFunc(port)
	}
	return 0
}

func (d DeviceFunc) Write(port byte, value byte) {
	if d.WriteFunc != nil {
		d.WriteFunc(port, value)
	}
}

// Stateful is implemented by devices whose registers are saved with a
// hibernated machine.
type Stateful interface {
	SaveState() []byte
	LoadState(data []byte) error
}
