package computer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/cpu"
	"gocpu8/pkg/isa"
)

// ErrBadConfig is wrapped by every configuration validation failure.
var ErrBadConfig = errors.New("invalid machine configuration")

// Upper bounds for the topology. CPU and core indices must fit the 4-bit
// routing fields of the interrupt controller.
const (
	MaxCPUs        = 16
	MaxCoresPerCPU = 16
)

// SyscallFunc handles one SYSCALL number. It runs on the ticking goroutine
// in the middle of an instruction, so it must not call back into the
// Computer; memory is reached through the bus it is given.
type SyscallFunc func(core *cpu.Core, b *bus.Bus) error

// Config describes a machine. The memory map and instruction set are fixed
// and deliberately absent.
type Config struct {
	CPUs          int      `toml:"cpus"`
	CoresPerCPU   int      `toml:"cores_per_cpu"`
	CacheSize     int      `toml:"cache_size"`
	ClockHz       int      `toml:"clock_hz"`
	InterruptSlot int      `toml:"interrupt_slot"`
	Breakpoints   []uint16 `toml:"breakpoints"`

	// Image files loaded by the front-ends. Empty means none.
	ROM     string `toml:"rom"`
	OS      string `toml:"os"`
	Program string `toml:"program"`
	// Disk is the host directory mirrored by the disk device.
	Disk string `toml:"disk"`

	// LogLevel, when set, is applied to Logger by New. A machine with a
	// LogLevel and no Logger gets a logger of its own.
	LogLevel string `toml:"log_level"`

	Logger   *logrus.Logger       `toml:"-"`
	Syscalls map[byte]SyscallFunc `toml:"-"`
}

// DefaultConfig is a single CPU with a single core.
func DefaultConfig() Config {
	return Config{
		CPUs:          1,
		CoresPerCPU:   1,
		CacheSize:     bus.DefaultCacheSize,
		InterruptSlot: 0,
	}
}

// Validate checks ranges and fills in a logger if none is set.
func (c *Config) Validate() error {
	switch {
	case c.CPUs < 1 || c.CPUs > MaxCPUs:
		return fmt.Errorf("cpus = %d, want 1-%d: %w", c.CPUs, MaxCPUs, ErrBadConfig)
	case c.CoresPerCPU < 1 || c.CoresPerCPU > MaxCoresPerCPU:
		return fmt.Errorf("cores_per_cpu = %d, want 1-%d: %w", c.CoresPerCPU, MaxCoresPerCPU, ErrBadConfig)
	case c.CacheSize < 1:
		return fmt.Errorf("cache_size = %d, must be positive: %w", c.CacheSize, ErrBadConfig)
	case c.ClockHz < 0:
		return fmt.Errorf("clock_hz = %d, must not be negative: %w", c.ClockHz, ErrBadConfig)
	case c.InterruptSlot < 0 || c.InterruptSlot >= isa.DeviceSlots:
		return fmt.Errorf("interrupt_slot = %d, want 0-%d: %w", c.InterruptSlot, isa.DeviceSlots-1, ErrBadConfig)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %v: %w", err, ErrBadConfig)
		}
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return nil
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are an
// error so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config %s: unknown keys %s: %w", path, strings.Join(keys, ", "), ErrBadConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
