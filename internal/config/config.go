// Package config loads the machine description consumed by the VMM
// entry points.
package config

import (
	"fmt"
	"os"

	"github.com/tinyrange/microvm/internal/gic"
	"gopkg.in/yaml.v3"
)

// Machine describes one microVM.
type Machine struct {
	Name     string `yaml:"name,omitempty"`
	CPUs     int    `yaml:"cpus,omitempty"`
	MemoryMB uint64 `yaml:"memoryMB,omitempty"`

	GIC GIC `yaml:"gic,omitempty"`

	// Trace names a file to receive the VMM trace log. Empty disables
	// tracing.
	Trace string `yaml:"trace,omitempty"`
}

// GIC carries interrupt-controller overrides.
type GIC struct {
	// Version pins the controller revision ("v2" or "v3"). Empty lets the
	// kernel negotiation pick.
	Version string `yaml:"version,omitempty"`
}

// ResolveVersion maps the configured revision string onto the lifecycle
// manager's version tags.
func (g GIC) ResolveVersion() (gic.Version, error) {
	switch g.Version {
	case "":
		return gic.VersionUnknown, nil
	case "v2":
		return gic.Version2, nil
	case "v3":
		return gic.Version3, nil
	default:
		return gic.VersionUnknown, fmt.Errorf("config: unknown gic version %q", g.Version)
	}
}

func (m *Machine) normalize() {
	if m.Name == "" {
		m.Name = "microvm"
	}
	if m.CPUs == 0 {
		m.CPUs = 1
	}
	if m.MemoryMB == 0 {
		m.MemoryMB = 128
	}
}

// Parse decodes a machine description and applies defaults.
func Parse(data []byte) (Machine, error) {
	var m Machine
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Machine{}, fmt.Errorf("config: parse machine config: %w", err)
	}
	if m.CPUs < 0 {
		return Machine{}, fmt.Errorf("config: cpus must not be negative")
	}
	if _, err := m.GIC.ResolveVersion(); err != nil {
		return Machine{}, err
	}
	m.normalize()
	return m, nil
}

// Load reads and parses the machine description at path.
func Load(path string) (Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}
