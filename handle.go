package hnx

import "strings"

// Handle is a client-local capability reference.
type Handle uint32

// HandleInvalid is never allocated.
const HandleInvalid Handle = 0

// ObjectType tags the variant of a kernel object.
type ObjectType uint8

const (
	ObjAny ObjectType = iota
	ObjChannel
	ObjProcess
	ObjThread
	ObjVMO
	ObjEndpoint
	ObjSocket
)

func (t ObjectType) String() string {
	switch t {
	case ObjAny:
		return "any"
	case ObjChannel:
		return "channel"
	case ObjProcess:
		return "process"
	case ObjThread:
		return "thread"
	case ObjVMO:
		return "vmo"
	case ObjEndpoint:
		return "endpoint"
	case ObjSocket:
		return "socket"
	}
	return "invalid"
}

// Rights is the set of operations a handle permits on its object.
type Rights uint32

const (
	RightDuplicate Rights = 1 << iota
	RightRead
	RightWrite
	RightExecute
	RightMap
	RightGetProperty
	RightSetProperty
	RightEnumerate
	RightDestroy

	RightsNone  Rights = 0
	RightsIO    Rights = RightRead | RightWrite
	RightsBasic Rights = RightDuplicate | RightsIO

	// SameRights asks a duplicate to keep the source rights.
	SameRights Rights = 1 << 31
)

// Contains reports whether r holds every right in want.
func (r Rights) Contains(want Rights) bool {
	return r&want == want
}

func (r Rights) String() string {
	if r == RightsNone {
		return "none"
	}
	names := []string{"duplicate", "read", "write", "execute", "map", "get_property", "set_property", "enumerate", "destroy"}
	var set []string
	for i, name := range names {
		if r&(1<<i) != 0 {
			set = append(set, name)
		}
	}
	if r&SameRights != 0 {
		set = append(set, "same_rights")
	}
	return strings.Join(set, "|")
}
