//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package codec

import (
	"encoding/binary"
	"fmt"
)

// LengthCodec frames data with a big-endian length header of 2 or 4 bytes
// preceding each payload.
type LengthCodec struct {
	headerSize int
	maxLength  int

	buf  []byte
	skip uint64
}

var _ Codec = (*LengthCodec)(nil)

// NewLengthCodec returns a codec whose frames carry a headerSize bytes
// length prefix. A maxLength <= 0 selects the largest length the header
// can express, capped at DefaultMaxLength.
func NewLengthCodec(headerSize int, maxLength int) (*LengthCodec, error) {
	var limit int
	switch headerSize {
	case 2:
		limit = 0xFFFF
	case 4:
		limit = DefaultMaxLength
	default:
		return nil, fmt.Errorf("codec: invalid length header size %d", headerSize)
	}
	if maxLength <= 0 {
		maxLength = limit
		if maxLength > DefaultMaxLength {
			maxLength = DefaultMaxLength
		}
	}
	if headerSize == 2 && maxLength > 0xFFFF {
		return nil, fmt.Errorf("codec: max length %d does not fit a 2 bytes header", maxLength)
	}
	return &LengthCodec{headerSize: headerSize, maxLength: maxLength}, nil
}

// length decodes the header. It is kept unsigned so that a 4 bytes header
// can't turn negative on 32 bit platforms.
func (c *LengthCodec) length() uint64 {
	if c.headerSize == 2 {
		return uint64(binary.BigEndian.Uint16(c.buf))
	}
	return uint64(binary.BigEndian.Uint32(c.buf))
}

// Decode implements Codec. A header announcing more than the maximum length
// makes Decode return ErrFrameTooLarge once; the announced payload is then
// skipped as it arrives, without being buffered.
func (c *LengthCodec) Decode(p []byte) ([]byte, error) {
	c.buf = append(c.buf, p...)
	if c.skipPayload() {
		return nil, nil
	}
	if len(c.buf) < c.headerSize {
		return nil, nil
	}
	size := c.length()
	if size > uint64(c.maxLength) {
		c.buf = compact(c.buf, c.headerSize)
		c.skip = size
		c.skipPayload()
		return nil, ErrFrameTooLarge
	}
	end := c.headerSize + int(size)
	if len(c.buf) < end {
		return nil, nil
	}
	frame := append([]byte{}, c.buf[c.headerSize:end]...)
	c.buf = compact(c.buf, end)
	return frame, nil
}

// skipPayload drops buffered bytes of an oversized frame. It reports
// whether more of them are still expected.
func (c *LengthCodec) skipPayload() bool {
	if c.skip == 0 {
		return false
	}
	n := len(c.buf)
	if c.skip < uint64(n) {
		n = int(c.skip)
	}
	c.buf = compact(c.buf, n)
	c.skip -= uint64(n)
	return c.skip > 0
}

// Encode implements Codec.
func (c *LengthCodec) Encode(frame []byte) ([]byte, error) {
	if len(frame) > c.maxLength {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, c.headerSize, c.headerSize+len(frame))
	if c.headerSize == 2 {
		binary.BigEndian.PutUint16(out, uint16(len(frame)))
	} else {
		binary.BigEndian.PutUint32(out, uint32(len(frame)))
	}
	return append(out, frame...), nil
}
