//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package codec splits a byte stream into discrete frames and back.
//
// A Codec is a pure buffer transformation: it does not read or write by
// itself and can be used over any byte stream. Framed couples a Codec with
// an io.ReadWriter, such as a serial.Stream, to read and write whole
// frames.
package codec

import "errors"

// ErrFrameTooLarge is returned when a frame exceeds the maximum length of
// its codec. Decoders resynchronise after reporting it: the offending frame
// is dropped and decoding continues with the next one.
var ErrFrameTooLarge = errors.New("codec: frame too large")

// ErrInvalidFrame is returned by Encode when a frame cannot be represented
// by the codec, for example a line containing its own delimiter.
var ErrInvalidFrame = errors.New("codec: invalid frame")

// DefaultMaxLength is the maximum frame length used when none is given.
const DefaultMaxLength = 64 * 1024

// Codec is a stateful frame decoder and a stateless frame encoder.
type Codec interface {
	// Decode appends p to the decoder state and returns the next complete
	// frame, or nil if more input is needed. A single call returns at most
	// one frame: call Decode(nil) to get further frames already buffered.
	// The returned frame is owned by the caller.
	Decode(p []byte) ([]byte, error)

	// Encode returns frame with its delimiter or header applied.
	Encode(frame []byte) ([]byte, error)
}

// compact drops the first n bytes of buf, reusing its storage.
func compact(buf []byte, n int) []byte {
	return append(buf[:0], buf[n:]...)
}
