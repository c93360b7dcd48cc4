// Package utils has the file helpers shared by the front-ends: path
// resolution relative to a config file and loading of ROM, OS and program
// images from raw binaries or assembly source.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocpu8/pkg/asm"
	"gocpu8/pkg/computer"
	"gocpu8/pkg/isa"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	parentDir = filepath.Dir(fullPath)
	return fullPath, parentDir, nil
}

// ResolvePath interprets path relative to baseDir unless it is absolute or
// baseDir is empty.
func ResolvePath(baseDir, path string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// IsSource reports whether path names assembly source rather than a binary.
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asm", ".s":
		return true
	}
	return false
}

// ReadImage reads a memory image. Assembly source is assembled for origin;
// anything else is taken as raw bytes.
func ReadImage(path string, origin uint16) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !IsSource(path) {
		return data, nil
	}
	code, _, err := asm.NewAssembler(origin).Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", path, err)
	}
	return code, nil
}

// LoadImages loads the ROM, OS and program images named in the machine's
// config. Relative paths are taken from baseDir.
func LoadImages(m *computer.Computer, baseDir string) error {
	cfg := m.Config()
	images := []struct {
		path   string
		origin uint16
		load   func([]byte) error
	}{
		{cfg.ROM, isa.ROMStart, m.LoadROM},
		{cfg.OS, isa.OSStart, m.LoadOS},
		{cfg.Program, isa.ProgramStart, m.LoadProgram},
	}
	for _, img := range images {
		if img.path == "" {
			continue
		}
		path := ResolvePath(baseDir, img.path)
		data, err := ReadImage(path, img.origin)
		if err != nil {
			return err
		}
		if err := img.load(data); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
