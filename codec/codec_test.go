//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// decodeAll feeds input one chunk at a time and collects every frame and
// error in order.
func decodeAll(c Codec, chunks ...[]byte) ([][]byte, []error) {
	var frames [][]byte
	var errs []error
	collect := func(p []byte) {
		frame, err := c.Decode(p)
		for frame != nil || err != nil {
			if err != nil {
				errs = append(errs, err)
			} else {
				frames = append(frames, frame)
			}
			frame, err = c.Decode(nil)
		}
	}
	for _, chunk := range chunks {
		collect(chunk)
	}
	return frames, errs
}

func split(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}

func TestLineCodecRoundTrip(t *testing.T) {
	frames := [][]byte{[]byte("hello"), {}, []byte("world"), []byte("a longer line with spaces")}
	enc := NewLineCodec(64)
	var stream []byte
	for _, f := range frames {
		data, err := enc.Encode(f)
		require.NoError(t, err)
		stream = append(stream, data...)
	}

	for _, size := range []int{1, 2, 3, 7, len(stream)} {
		got, errs := decodeAll(NewLineCodec(64), split(stream, size)...)
		require.Empty(t, errs)
		require.Equal(t, frames, got, "chunk size %d", size)

		var out []byte
		for _, f := range got {
			data, err := enc.Encode(f)
			require.NoError(t, err)
			out = append(out, data...)
		}
		require.Equal(t, stream, out)
	}
}

func TestLineCodecMultiByteDelimiter(t *testing.T) {
	c := NewDelimiterCodec([]byte("\r\n"), 16)
	got, errs := decodeAll(c, []byte("one\r"), []byte("\ntwo\r\nthr"), []byte("ee\r"), []byte("\n"))
	require.Empty(t, errs)
	require.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, got)
}

func TestLineCodecIncomplete(t *testing.T) {
	c := NewLineCodec(16)
	frame, err := c.Decode([]byte("partial"))
	require.NoError(t, err)
	require.Nil(t, frame)
	frame, err = c.Decode(nil)
	require.NoError(t, err)
	require.Nil(t, frame)
	frame, err = c.Decode([]byte(" line\n"))
	require.NoError(t, err)
	require.Equal(t, []byte("partial line"), frame)
}

func TestLineCodecFrameTooLargeResync(t *testing.T) {
	c := NewLineCodec(4)
	long := bytes.Repeat([]byte("x"), 10)

	// the oversize is detected before the delimiter arrives
	got, errs := decodeAll(c, []byte("ok\n"), long[:5], long[5:], []byte("\nnext\n"))
	require.Equal(t, [][]byte{[]byte("ok"), []byte("next")}, got)
	require.Equal(t, []error{ErrFrameTooLarge}, errs)

	// and when the whole oversized line is in one chunk
	got, errs = decodeAll(NewLineCodec(4), []byte("toolong\nfine\n"))
	require.Equal(t, [][]byte{[]byte("fine")}, got)
	require.Equal(t, []error{ErrFrameTooLarge}, errs)
}

func TestLineCodecMaxLengthBoundary(t *testing.T) {
	got, errs := decodeAll(NewLineCodec(4), []byte("abcd\n"))
	require.Empty(t, errs)
	require.Equal(t, [][]byte{[]byte("abcd")}, got)

	got, errs = decodeAll(NewLineCodec(4), []byte("abcde\n"))
	require.Empty(t, got)
	require.Equal(t, []error{ErrFrameTooLarge}, errs)
}

func TestLineCodecEncodeErrors(t *testing.T) {
	c := NewLineCodec(4)
	_, err := c.Encode([]byte("abcde"))
	require.ErrorIs(t, err, ErrFrameTooLarge)
	_, err = c.Encode([]byte("a\nb"))
	require.ErrorIs(t, err, ErrInvalidFrame)
	require.Panics(t, func() { NewDelimiterCodec(nil, 4) })
}

func TestLengthCodecRoundTrip(t *testing.T) {
	for _, header := range []int{2, 4} {
		enc, err := NewLengthCodec(header, 32)
		require.NoError(t, err)
		frames := [][]byte{[]byte("hello"), {}, []byte{0, '\n', 0xFF}, bytes.Repeat([]byte("z"), 32)}
		var stream []byte
		for _, f := range frames {
			data, err := enc.Encode(f)
			require.NoError(t, err)
			require.Len(t, data, header+len(f))
			stream = append(stream, data...)
		}

		for _, size := range []int{1, 3, len(stream)} {
			dec, err := NewLengthCodec(header, 32)
			require.NoError(t, err)
			got, errs := decodeAll(dec, split(stream, size)...)
			require.Empty(t, errs)
			require.Equal(t, frames, got, "header %d chunk size %d", header, size)
		}
	}
}

func TestLengthCodecHeaderIsBigEndian(t *testing.T) {
	c, err := NewLengthCodec(2, 0)
	require.NoError(t, err)
	data, err := c.Encode([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 3, 'a', 'b', 'c'}, data)

	c, err = NewLengthCodec(4, 0)
	require.NoError(t, err)
	data, err = c.Encode(make([]byte, 0x102))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 1, 2}, data[:4])
}

func TestLengthCodecFrameTooLargeResync(t *testing.T) {
	c, err := NewLengthCodec(2, 4)
	require.NoError(t, err)
	oversized := append([]byte{0, 8}, []byte("12345678")...)
	good := []byte{0, 2, 'o', 'k'}

	stream := append(append([]byte{}, oversized...), good...)
	for _, size := range []int{1, 3, len(stream)} {
		c, err = NewLengthCodec(2, 4)
		require.NoError(t, err)
		got, errs := decodeAll(c, split(stream, size)...)
		require.Equal(t, [][]byte{[]byte("ok")}, got, "chunk size %d", size)
		require.Equal(t, []error{ErrFrameTooLarge}, errs)
	}

	_, err = c.Encode([]byte("12345"))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestLengthCodecHugeHeader(t *testing.T) {
	c, err := NewLengthCodec(4, 0)
	require.NoError(t, err)

	// the top bit of the header must not make the length negative
	var frame []byte
	require.NotPanics(t, func() {
		frame, err = c.Decode([]byte{0x80, 0, 0, 0, 'x'})
	})
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.Nil(t, frame)

	frame, err = c.Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.Nil(t, frame)
	require.Equal(t, uint64(0x80000000-1-4), c.skip)
}

func TestLengthCodecInvalidConfig(t *testing.T) {
	_, err := NewLengthCodec(3, 10)
	require.Error(t, err)
	_, err = NewLengthCodec(2, 0x10000)
	require.Error(t, err)
}
