package utils

import (
	"io"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/computer"
	"gocpu8/pkg/peripherals"
	"gocpu8/pkg/vfs"
)

// Device slots used by every front-end.
const (
	ConsoleSlot = 1
	TimerSlot   = 2
	DiskSlot    = 3
)

// LoadMachineConfig reads a TOML machine config and returns it with the
// directory its relative paths are taken from. An empty path gives the
// default config.
func LoadMachineConfig(path string) (computer.Config, string, error) {
	if path == "" {
		return computer.DefaultConfig(), "", nil
	}
	fullPath, dir, err := GetPathInfo(path)
	if err != nil {
		return computer.Config{}, "", err
	}
	cfg, err := computer.LoadConfig(fullPath)
	if err != nil {
		return computer.Config{}, "", err
	}
	return cfg, dir, nil
}

// Devices are the peripherals mounted by MountStandardDevices.
type Devices struct {
	Console *peripherals.Console
	Timer   *peripherals.Timer
	Disk    *peripherals.Disk

	diskDir string
}

// MountStandardDevices mounts a console writing to out, an interval timer
// and a disk. The disk mirrors the config's disk directory, taken relative
// to baseDir; with no directory it lives in memory only.
func MountStandardDevices(m *computer.Computer, out io.Writer, baseDir string) (*Devices, error) {
	d := &Devices{
		Console: peripherals.NewConsole(out),
		Timer:   peripherals.NewTimer(m.Interrupts()),
		diskDir: ResolvePath(baseDir, m.Config().Disk),
	}
	store := vfs.NewStore(0)
	if d.diskDir != "" {
		if err := store.Load(d.diskDir); err != nil {
			return nil, err
		}
	}
	d.Disk = peripherals.NewDisk(m.Bus(), store)

	for _, mount := range []struct {
		slot int
		dev  bus.Device
	}{
		{ConsoleSlot, d.Console},
		{TimerSlot, d.Timer},
		{DiskSlot, d.Disk},
	} {
		if err := m.Mount(mount.slot, mount.dev); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Sync writes changed disk files back to the disk directory.
func (d *Devices) Sync() error {
	if d.diskDir == "" || !d.Disk.Store().Dirty() {
		return nil
	}
	return d.Disk.Store().Persist(d.diskDir)
}
