package hnx

// Request is a raw syscall as issued by a client. Args carries the register
// arguments; Data stands in for the user buffer the call reads from.
type Request struct {
	NR   NR       `cbor:"1,keyasint"`
	Args []uint64 `cbor:"2,keyasint,omitempty"`
	Data []byte   `cbor:"3,keyasint,omitempty"`
}

// Arg returns argument i, or 0 when the request carries fewer arguments.
func (r Request) Arg(i int) uint64 {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return 0
}

// Response is the raw result of a syscall. Code is encoded in the domain of
// the band the syscall belongs to.
type Response struct {
	Code int32    `cbor:"1,keyasint"`
	Out  []uint64 `cbor:"2,keyasint,omitempty"`
	Data []byte   `cbor:"3,keyasint,omitempty"`
}

// Failed reports whether the response carries an error code in either domain.
func (r Response) Failed() bool {
	return r.Code != 0
}
