// Package wire frames raw syscall requests and responses as CBOR, for traces
// and replay.
package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/wnxd/hnx"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalRequest serializes a Request to CBOR bytes.
func MarshalRequest(r hnx.Request) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRequest deserializes a Request from CBOR bytes.
func UnmarshalRequest(data []byte) (hnx.Request, error) {
	var r hnx.Request
	if err := cbor.Unmarshal(data, &r); err != nil {
		return hnx.Request{}, fmt.Errorf("wire: unmarshal request: %w", err)
	}
	return r, nil
}

// MarshalResponse serializes a Response to CBOR bytes.
func MarshalResponse(r hnx.Response) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalResponse deserializes a Response from CBOR bytes.
func UnmarshalResponse(data []byte) (hnx.Response, error) {
	var r hnx.Response
	if err := cbor.Unmarshal(data, &r); err != nil {
		return hnx.Response{}, fmt.Errorf("wire: unmarshal response: %w", err)
	}
	return r, nil
}

// Encoder writes a stream of concatenated CBOR items.
type Encoder struct {
	enc *cbor.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: cborEncMode.NewEncoder(w)}
}

func (e *Encoder) WriteRequest(r hnx.Request) error {
	return e.enc.Encode(r)
}

func (e *Encoder) WriteResponse(r hnx.Response) error {
	return e.enc.Encode(r)
}

// Decoder reads a stream written by an Encoder. The read methods return
// io.EOF once the stream ends cleanly.
type Decoder struct {
	dec *cbor.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: cbor.NewDecoder(r)}
}

func (d *Decoder) ReadRequest() (hnx.Request, error) {
	var r hnx.Request
	if err := d.dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return hnx.Request{}, io.EOF
		}
		return hnx.Request{}, fmt.Errorf("wire: decode request: %w", err)
	}
	return r, nil
}

func (d *Decoder) ReadResponse() (hnx.Response, error) {
	var r hnx.Response
	if err := d.dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return hnx.Response{}, io.EOF
		}
		return hnx.Response{}, fmt.Errorf("wire: decode response: %w", err)
	}
	return r, nil
}
