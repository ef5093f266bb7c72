//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package codec

import "bytes"

// LineCodec frames data as delimiter terminated lines. The delimiter is not
// part of the decoded frames.
type LineCodec struct {
	delim     []byte
	maxLength int

	buf        []byte
	scanned    int
	discarding bool
}

var _ Codec = (*LineCodec)(nil)

// NewLineCodec returns a codec for newline terminated lines of at most
// maxLength bytes. A maxLength <= 0 selects DefaultMaxLength.
func NewLineCodec(maxLength int) *LineCodec {
	return NewDelimiterCodec([]byte("\n"), maxLength)
}

// NewDelimiterCodec is like NewLineCodec with a custom delimiter, for
// example "\r\n". It panics if delim is empty.
func NewDelimiterCodec(delim []byte, maxLength int) *LineCodec {
	if len(delim) == 0 {
		panic("codec: empty delimiter")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &LineCodec{delim: append([]byte(nil), delim...), maxLength: maxLength}
}

// Decode implements Codec. Once a line grows past the maximum length,
// ErrFrameTooLarge is returned and the rest of that line, up to and
// including the next delimiter, is silently discarded.
func (c *LineCodec) Decode(p []byte) ([]byte, error) {
	c.buf = append(c.buf, p...)
	for {
		// a delimiter may straddle the previous scan boundary
		start := c.scanned - len(c.delim) + 1
		if start < 0 {
			start = 0
		}
		i := bytes.Index(c.buf[start:], c.delim)
		if i >= 0 {
			i += start
		}

		if c.discarding {
			if i < 0 {
				c.keepTail()
				return nil, nil
			}
			c.buf = compact(c.buf, i+len(c.delim))
			c.scanned = 0
			c.discarding = false
			continue
		}

		if i < 0 {
			if len(c.buf) < c.maxLength+len(c.delim) {
				c.scanned = len(c.buf)
				return nil, nil
			}
			c.discarding = true
			c.keepTail()
			return nil, ErrFrameTooLarge
		}

		end := i + len(c.delim)
		if i > c.maxLength {
			c.buf = compact(c.buf, end)
			c.scanned = 0
			return nil, ErrFrameTooLarge
		}
		frame := append([]byte{}, c.buf[:i]...)
		c.buf = compact(c.buf, end)
		c.scanned = 0
		return frame, nil
	}
}

// keepTail drops everything but a possible delimiter prefix at the end of
// the buffer.
func (c *LineCodec) keepTail() {
	keep := len(c.delim) - 1
	if keep > len(c.buf) {
		keep = len(c.buf)
	}
	c.buf = compact(c.buf, len(c.buf)-keep)
	c.scanned = len(c.buf)
}

// Encode implements Codec.
func (c *LineCodec) Encode(frame []byte) ([]byte, error) {
	if len(frame) > c.maxLength {
		return nil, ErrFrameTooLarge
	}
	if bytes.Contains(frame, c.delim) {
		return nil, ErrInvalidFrame
	}
	out := make([]byte, 0, len(frame)+len(c.delim))
	out = append(out, frame...)
	return append(out, c.delim...), nil
}
