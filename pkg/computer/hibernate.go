package computer

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/cpu"
	"gocpu8/pkg/interrupt"
	"gocpu8/pkg/isa"
)

// ErrSnapshotMismatch is returned when a hibernation archive was taken on a
// machine with a different topology.
var ErrSnapshotMismatch = errors.New("snapshot does not match machine")

const snapshotVersion = 1

// machineState is the JSON part of a hibernation archive.
type machineState struct {
	Version     int             `json:"version"`
	Ticks       uint64          `json:"ticks"`
	CPUs        []cpu.State     `json:"cpus"`
	Interrupts  interrupt.State `json:"interrupts"`
	Breakpoints []uint16        `json:"breakpoints"`
	Devices     map[int]string  `json:"devices"`
}

// HibernateToBytes serialises the machine into an in-memory ZIP archive:
// machine_state.json, rom.bin, ram.bin and device_N.bin for every device
// that keeps state.
func (m *Computer) HibernateToBytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := machineState{
		Version:     snapshotVersion,
		Ticks:       m.ticks,
		Interrupts:  m.irq.State(),
		Breakpoints: m.sortedBreakpoints(),
		Devices:     make(map[int]string),
	}
	for _, c := range m.cpus {
		state.CPUs = append(state.CPUs, c.State())
	}
	for slot := 0; slot < isa.DeviceSlots; slot++ {
		if d := m.bus.Device(slot); d != nil {
			state.Devices[slot] = fmt.Sprintf("%T", d)
		}
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal machine_state: %w", err)
	}
	if err := writeZipEntry(zw, "machine_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "rom.bin", m.bus.ROM().Bytes()); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "ram.bin", m.bus.RAM().Bytes()); err != nil {
		return nil, err
	}

	for slot := range state.Devices {
		if sd, ok := m.bus.Device(slot).(bus.Stateful); ok {
			if err := writeZipEntry(zw, fmt.Sprintf("device_%d.bin", slot), sd.SaveState()); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies an archive produced by HibernateToBytes. The
// machine must have the same number of CPUs and cores, and stateful devices
// must already be mounted in the same slots.
func (m *Computer) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "machine_state.json")
	if err != nil {
		return err
	}
	var state machineState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal machine_state: %w", err)
	}
	if state.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d: %w", state.Version, snapshotVersion, ErrSnapshotMismatch)
	}
	rom, err := readZipEntry(fileMap, "rom.bin")
	if err != nil {
		return err
	}
	ram, err := readZipEntry(fileMap, "ram.bin")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(state.CPUs) != len(m.cpus) {
		return fmt.Errorf("snapshot has %d cpus, machine has %d: %w", len(state.CPUs), len(m.cpus), ErrSnapshotMismatch)
	}
	for i, cs := range state.CPUs {
		if len(cs.Cores) != m.cpus[i].CoreCount() {
			return fmt.Errorf("cpu %d: snapshot has %d cores, machine has %d: %w", i, len(cs.Cores), m.cpus[i].CoreCount(), ErrSnapshotMismatch)
		}
	}

	if err := m.bus.ROM().Load(rom); err != nil {
		return err
	}
	if err := m.bus.RAM().Restore(ram); err != nil {
		return err
	}
	for i, cs := range state.CPUs {
		if err := m.cpus[i].Restore(cs); err != nil {
			return err
		}
	}
	m.bus.FlushCaches()
	m.irq.Restore(state.Interrupts)
	m.ticks = state.Ticks
	m.breakpoints = make(map[uint16]struct{}, len(state.Breakpoints))
	for _, addr := range state.Breakpoints {
		m.breakpoints[addr] = struct{}{}
	}

	for slot, typeName := range state.Devices {
		d := m.bus.Device(slot)
		if d == nil || fmt.Sprintf("%T", d) != typeName {
			m.log.WithFields(logrus.Fields{"slot": slot, "device": typeName}).Warn("hibernated device not mounted, state skipped")
			continue
		}
		sd, ok := d.(bus.Stateful)
		if !ok {
			continue
		}
		if binData, err := readZipEntry(fileMap, fmt.Sprintf("device_%d.bin", slot)); err == nil {
			if err := sd.LoadState(binData); err != nil {
				return fmt.Errorf("load device %d state: %w", slot, err)
			}
		}
	}
	return nil
}

// HibernateToFile writes the hibernation archive to path.
func (m *Computer) HibernateToFile(path string) error {
	data, err := m.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from path and applies it.
func (m *Computer) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
