package computer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
cpus = 2
cores_per_cpu = 4
cache_size = 32
clock_hz = 1000
interrupt_slot = 3
breakpoints = [0x4000, 0x4010]
program = "hello.bin"
log_level = "debug"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.CPUs)
	assert.Equal(t, 4, cfg.CoresPerCPU)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.Equal(t, 1000, cfg.ClockHz)
	assert.Equal(t, 3, cfg.InterruptSlot)
	assert.Equal(t, []uint16{0x4000, 0x4010}, cfg.Breakpoints)
	assert.Equal(t, "hello.bin", cfg.Program)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotNil(t, cfg.Logger)
}

func TestLoadConfig_DefaultsForMissingKeys(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "cpus = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.CPUs)
	assert.Equal(t, 1, cfg.CoresPerCPU)
	assert.Equal(t, DefaultConfig().CacheSize, cfg.CacheSize)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "cpus = 1\ncors_per_cpu = 2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadConfig))
	assert.Contains(t, err.Error(), "cors_per_cpu")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "cpus = \n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "cpus = 17\n"))
	assert.True(t, errors.Is(err, ErrBadConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no cpus", func(c *Config) { c.CPUs = 0 }},
		{"too many cores", func(c *Config) { c.CoresPerCPU = MaxCoresPerCPU + 1 }},
		{"empty cache", func(c *Config) { c.CacheSize = 0 }},
		{"negative clock", func(c *Config) { c.ClockHz = -1 }},
		{"interrupt slot", func(c *Config) { c.InterruptSlot = 16 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadConfig))
		})
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Same(t, logrus.StandardLogger(), cfg.Logger)
}

func TestNew_AppliesLogLevel(t *testing.T) {
	l := logrus.New()
	cfg := DefaultConfig()
	cfg.Logger = l
	cfg.LogLevel = "warn"
	_, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNew_LogLevelLeavesStandardLoggerAlone(t *testing.T) {
	std := logrus.StandardLogger()
	before := std.GetLevel()
	cfg := DefaultConfig()
	cfg.Logger = nil
	cfg.LogLevel = "panic"
	m, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, before, std.GetLevel())
	assert.NotSame(t, std, m.Config().Logger)
	assert.Equal(t, logrus.PanicLevel, m.Config().Logger.GetLevel())
}
