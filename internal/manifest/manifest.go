// Package manifest reads and writes abi.toml, the published list of syscall
// numbers a kernel build must agree with.
package manifest

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest represents an abi.toml file.
type Manifest struct {
	ABI      ABI     `toml:"abi"`
	Syscalls []Entry `toml:"syscall"`
}

type ABI struct {
	Version string `toml:"version"`
}

// Entry is one published syscall.
type Entry struct {
	Name   string `toml:"name"`
	NR     uint32 `toml:"nr"`
	Band   string `toml:"band"`
	Domain string `toml:"domain"`
}

// Load parses an abi.toml file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &m, nil
}

// New builds a manifest from the syscalls a kernel registers.
func New(version string, entries []Entry) *Manifest {
	m := &Manifest{ABI: ABI{Version: version}, Syscalls: slices.Clone(entries)}
	slices.SortFunc(m.Syscalls, func(a, b Entry) int {
		return int(a.NR) - int(b.NR)
	})
	return m
}

// Write encodes the manifest as TOML.
func (m *Manifest) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("cannot encode manifest: %w", err)
	}
	return nil
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Mismatch describes one disagreement between a manifest and a kernel.
type Mismatch struct {
	Name     string
	Manifest *Entry
	Kernel   *Entry
}

func (m Mismatch) String() string {
	switch {
	case m.Manifest == nil:
		return fmt.Sprintf("%s: registered by the kernel but not published", m.Name)
	case m.Kernel == nil:
		return fmt.Sprintf("%s: published but not registered by the kernel", m.Name)
	}
	return fmt.Sprintf("%s: published %#04x/%s/%s, kernel %#04x/%s/%s", m.Name,
		m.Manifest.NR, m.Manifest.Band, m.Manifest.Domain,
		m.Kernel.NR, m.Kernel.Band, m.Kernel.Domain)
}

// VerifyError lists every mismatch Verify found.
type VerifyError struct {
	Mismatches []Mismatch
}

func (e *VerifyError) Error() string {
	lines := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		lines[i] = "  " + m.String()
	}
	return "ABI inconsistency found:\n" + strings.Join(lines, "\n")
}

// Verify compares the published syscalls against what a kernel registers,
// matching entries by name. It returns a *VerifyError on any disagreement.
func (m *Manifest) Verify(kernel []Entry) error {
	published := make(map[string]*Entry, len(m.Syscalls))
	for i := range m.Syscalls {
		published[m.Syscalls[i].Name] = &m.Syscalls[i]
	}
	var mismatches []Mismatch
	seen := make(map[string]bool, len(kernel))
	for i := range kernel {
		k := &kernel[i]
		seen[k.Name] = true
		p, ok := published[k.Name]
		if !ok {
			mismatches = append(mismatches, Mismatch{Name: k.Name, Kernel: k})
		} else if *p != *k {
			mismatches = append(mismatches, Mismatch{Name: k.Name, Manifest: p, Kernel: k})
		}
	}
	for i := range m.Syscalls {
		p := &m.Syscalls[i]
		if !seen[p.Name] {
			mismatches = append(mismatches, Mismatch{Name: p.Name, Manifest: p})
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	slices.SortFunc(mismatches, func(a, b Mismatch) int {
		return strings.Compare(a.Name, b.Name)
	})
	return &VerifyError{Mismatches: mismatches}
}
