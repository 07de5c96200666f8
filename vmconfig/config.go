// Package vmconfig supplies the VM layout constants the metadata layer
// depends on: field modifier bit assignments and the offsets of the
// annotation structures inside the VM's class records. The configuration
// is a handle passed explicitly into constructors, never read from a
// process global, so tests can run against synthetic layouts.
package vmconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Field modifier bits as stored in the VM field table. The public set
// (everything in DefaultFieldModifiers) is visible through
// Field.Modifiers; the internal bits are only reachable through the
// dedicated predicates.
const (
	AccPublic    uint32 = 0x0001
	AccPrivate   uint32 = 0x0002
	AccProtected uint32 = 0x0004
	AccStatic    uint32 = 0x0008
	AccFinal     uint32 = 0x0010
	AccVolatile  uint32 = 0x0040
	AccTransient uint32 = 0x0080
	AccSynthetic uint32 = 0x1000
	AccEnum      uint32 = 0x4000

	// Internal-only bits, excluded from the public modifier view.
	AccFieldInternal uint32 = 0x0400
	AccFieldStable   uint32 = 0x0020
)

// DefaultFieldModifiers is the publicly defined field modifier set.
const DefaultFieldModifiers = AccPublic | AccPrivate | AccProtected |
	AccStatic | AccFinal | AccVolatile | AccTransient | AccSynthetic | AccEnum

// Config carries the VM's modifier bit assignments and annotation metadata
// offsets. Values not present in a loaded vulcan.toml keep their defaults.
type Config struct {
	// FieldModifiers masks raw modifiers down to the public set.
	FieldModifiers uint32 `toml:"field-modifiers"`

	// Single-bit modifier constants.
	AccStatic    uint32 `toml:"acc-static"`
	AccInternal  uint32 `toml:"acc-internal"`
	AccSynthetic uint32 `toml:"acc-synthetic"`
	AccStable    uint32 `toml:"acc-stable"`

	// Offsets of the annotation structures within VM metadata memory:
	// class record + ClassAnnotationsOffset      -> annotations blob
	// blob         + FieldAnnotationsOffset      -> per-field table
	// table        + FieldAnnotationsBaseOffset
	//              + PointerSize*index           -> field's annotation data
	ClassAnnotationsOffset     int64 `toml:"class-annotations-offset"`
	FieldAnnotationsOffset     int64 `toml:"field-annotations-offset"`
	FieldAnnotationsBaseOffset int64 `toml:"field-annotations-base-offset"`

	// PointerSize is the pointer width in bytes within metadata memory.
	PointerSize int `toml:"pointer-size"`
}

// Default returns the compiled-in configuration for the current VM build.
func Default() *Config {
	return &Config{
		FieldModifiers:             DefaultFieldModifiers,
		AccStatic:                  AccStatic,
		AccInternal:                AccFieldInternal,
		AccSynthetic:               AccSynthetic,
		AccStable:                  AccFieldStable,
		ClassAnnotationsOffset:     0xD0,
		FieldAnnotationsOffset:     16,
		FieldAnnotationsBaseOffset: 16,
		PointerSize:                8,
	}
}

// Validate checks the configuration for values the metadata layer cannot
// operate with.
func (c *Config) Validate() error {
	if c.PointerSize != 4 && c.PointerSize != 8 {
		return fmt.Errorf("vmconfig: pointer size %d not supported", c.PointerSize)
	}
	if c.AccStatic == 0 {
		return errors.New("vmconfig: acc-static bit not set")
	}
	if c.AccInternal&c.FieldModifiers != 0 {
		return errors.New("vmconfig: internal bit overlaps public modifier set")
	}
	if c.AccStable&c.FieldModifiers != 0 {
		return errors.New("vmconfig: stable bit overlaps public modifier set")
	}
	return nil
}

// Load parses a vulcan.toml file. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for a vulcan.toml file and
// loads the first one found. Returns the default configuration when no
// file exists anywhere up the tree.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		path := filepath.Join(dir, "vulcan.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
