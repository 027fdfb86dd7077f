// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture stores captured IR frames as a CBOR stream: one Header
// followed by any number of Records.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

// Stream identification
const (
	Magic   = "mistral-capture"
	Version = 1
)

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("capture: not a capture stream")

// Header opens a capture stream
type Header struct {
	Magic   string    `cbor:"0,keyasint"`
	Version uint      `cbor:"1,keyasint"`
	Session uuid.UUID `cbor:"2,keyasint"`
	Variant string    `cbor:"3,keyasint"`
	Started time.Time `cbor:"4,keyasint"`
}

// Record is one captured frame. Codes uses one byte per code as on the link.
type Record struct {
	Time    time.Time `cbor:"0,keyasint"`
	Address uint64    `cbor:"1,keyasint"`
	Codes   []byte    `cbor:"2,keyasint"`
	Error   string    `cbor:"3,keyasint,omitempty"`
}

// NewRecord builds a record from decoded codes and the decode result
func NewRecord(at time.Time, address uint64, codes []aircode.Code, decodeErr error) Record {
	r := Record{
		Time:    at,
		Address: address,
		Codes:   irlink.CodesToBytes(codes),
	}
	if decodeErr != nil {
		r.Error = aircode.ErrorKind(decodeErr)
	}
	return r
}

// Frame returns the record's code sequence
func (r Record) Frame() ([]aircode.Code, error) {
	return irlink.BytesToCodes(r.Codes)
}

// Decode decodes the record's codes with v
func (r Record) Decode(v aircode.Variant) (aircode.Controller, error) {
	codes, err := r.Frame()
	if err != nil {
		return aircode.Controller{}, err
	}
	return v.Decode(codes)
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a capture stream.
// A Writer is not safe for concurrent use.
type Writer struct {
	enc    *cbor.Encoder
	header Header
}

// NewWriter starts a capture stream on w with a fresh session id
func NewWriter(w io.Writer, variant string) (*Writer, error) {
	header := Header{
		Magic:   Magic,
		Version: Version,
		Session: uuid.New(),
		Variant: variant,
		Started: time.Now(),
	}
	enc := encMode.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc, header: header}, nil
}

// Header returns the stream header
func (w *Writer) Header() Header {
	return w.header
}

// Write appends a record
func (w *Writer) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// Reader reads a capture stream
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the stream header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var header Header
	if err := dec.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty stream", ErrNotCapture)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if header.Magic != Magic {
		return nil, ErrNotCapture
	}
	if header.Version != Version {
		return nil, fmt.Errorf("capture: unsupported version %d", header.Version)
	}
	return &Reader{dec: dec, header: header}, nil
}

// Header returns the stream header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every remaining record
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
