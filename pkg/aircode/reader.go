// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

// codeReader consumes a code slice front to back.
type codeReader struct {
	codes []Code
	pos   int
}

func newCodeReader(codes []Code) *codeReader {
	return &codeReader{codes: codes}
}

// next returns the next code, or ErrEOF when the slice is exhausted
func (r *codeReader) next() (Code, error) {
	if r.pos >= len(r.codes) {
		return 0, ErrEOF
	}
	c := r.codes[r.pos]
	r.pos++
	return c, nil
}

func (r *codeReader) bit() (bool, error) {
	c, err := r.next()
	if err != nil {
		return false, err
	}
	return c.Bit()
}

// bits reads width data codes, least-significant bit first.
func (r *codeReader) bits(width int) (uint8, error) {
	var v uint8
	for i := 0; i < width; i++ {
		c, err := r.next()
		if err != nil {
			return 0, err
		}
		b, err := c.Byte()
		if err != nil {
			return 0, err
		}
		v |= b << i
	}
	return v, nil
}

// expect consumes one code and requires it to be the given marker.
func (r *codeReader) expect(marker Code) error {
	c, err := r.next()
	if err != nil {
		return err
	}
	if c != marker {
		return ErrInvalidMarker
	}
	return nil
}

// skip consumes width data codes without interpreting them.
func (r *codeReader) skip(width int) error {
	_, err := r.bits(width)
	return err
}

// block copies the next len(dst) codes verbatim. Markers are copied too so
// that magic comparison reports the block rather than the marker.
func (r *codeReader) block(dst []Code) error {
	for i := range dst {
		c, err := r.next()
		if err != nil {
			return err
		}
		dst[i] = c
	}
	return nil
}

// emitter pushes codes into an iterator yield function and stops quietly
// once the consumer has had enough.
type emitter struct {
	yield   func(Code) bool
	stopped bool
}

func (e *emitter) code(c Code) {
	if e.stopped {
		return
	}
	if !e.yield(c) {
		e.stopped = true
	}
}

func (e *emitter) bit(b bool) {
	e.code(CodeFromBit(b))
}

// bits emits the low width bits of v, least-significant bit first.
func (e *emitter) bits(v uint8, width int) {
	for i := 0; i < width; i++ {
		e.bit(v>>i&1 != 0)
	}
}

func (e *emitter) codes(cs []Code) {
	for _, c := range cs {
		e.code(c)
	}
}

func (e *emitter) repeat(c Code, n int) {
	for i := 0; i < n; i++ {
		e.code(c)
	}
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
