package hnx

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	KernelMajor      = 0
	KernelMinor      = 3
	KernelPatch      = 0
	KernelPrerelease = "alpha.1"
)

// Version is an ABI version. Only Major and Minor take part in compatibility
// checks; Patch, Prerelease and Build are advisory.
type Version struct {
	Major      uint32
	Minor      uint32
	Patch      uint32
	Prerelease string
	Build      string
}

// KernelVersion is the ABI version this module implements.
var KernelVersion = Version{Major: KernelMajor, Minor: KernelMinor, Patch: KernelPatch, Prerelease: KernelPrerelease}

// ParseVersion parses <major>.<minor>.<patch>[-<prerelease>][+<build>].
// Major must fit in 16 bits, minor and patch in 8, so that every parsed
// version has a distinct packed form.
func ParseVersion(s string) (Version, error) {
	v := "v" + strings.TrimPrefix(s, "v")
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("invalid abi version %q", s)
	}
	pre, build := semver.Prerelease(v), semver.Build(v)
	core := strings.TrimSuffix(strings.TrimSuffix(v, build), pre)
	parts := strings.Split(core[1:], ".")
	// semver accepts the v1 and v1.2 shorthands; the abi string does not.
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid abi version %q: want major.minor.patch", s)
	}
	ver := Version{
		Prerelease: strings.TrimPrefix(pre, "-"),
		Build:      strings.TrimPrefix(build, "+"),
	}
	for i, p := range []*uint32{&ver.Major, &ver.Minor, &ver.Patch} {
		n, err := strconv.ParseUint(parts[i], 10, packedBits[i])
		if err != nil {
			return Version{}, fmt.Errorf("invalid abi version %q: %w", s, err)
		}
		*p = uint32(n)
	}
	return ver, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		sb.WriteString("-" + v.Prerelease)
	}
	if v.Build != "" {
		sb.WriteString("+" + v.Build)
	}
	return sb.String()
}

// packedBits is the width of major, minor and patch in the packed layout.
var packedBits = [3]int{16, 8, 8}

// Packed returns the version in the (major<<16 | minor<<8 | patch) layout.
// ParseVersion never yields components wider than the layout; wider fields
// set by hand are truncated.
func (v Version) Packed() uint32 {
	return (v.Major&0xffff)<<16 | (v.Minor&0xff)<<8 | v.Patch&0xff
}

// CheckCompatible reports whether a caller built against callerMajor.callerMinor
// may talk to a kernel at version v.
func (v Version) CheckCompatible(callerMajor, callerMinor uint32) bool {
	return callerMajor == v.Major && callerMinor <= v.Minor
}

// CheckCompatible checks a caller against KernelVersion.
func CheckCompatible(callerMajor, callerMinor uint32) bool {
	return KernelVersion.CheckCompatible(callerMajor, callerMinor)
}
