//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package codec

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// trickleRW returns at most one byte per Read and accepts at most two
// bytes per Write, reporting the rest as a short write.
type trickleRW struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (rw *trickleRW) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return rw.in.Read(p)
}

func (rw *trickleRW) Write(p []byte) (int, error) {
	if len(p) > 2 {
		n, _ := rw.out.Write(p[:2])
		return n, io.ErrShortWrite
	}
	return rw.out.Write(p)
}

func TestFramedReadWrite(t *testing.T) {
	rw := &trickleRW{in: bytes.NewReader([]byte("first\nsecond\n"))}
	f := NewFramed(rw, NewLineCodec(0))

	frame, err := f.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), frame)
	frame, err = f.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), frame)
	_, err = f.ReadFrame()
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, f.WriteFrame([]byte("reply")))
	require.Equal(t, "reply\n", rw.out.String())
}

func TestFramedSeveralFramesInOneRead(t *testing.T) {
	var out bytes.Buffer
	f := NewFramed(struct {
		io.Reader
		io.Writer
	}{bytes.NewReader([]byte{0, 1, 'a', 0, 1, 'b'}), &out}, mustLength(t, 2, 0))

	frame, err := f.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), frame)
	frame, err = f.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("b"), frame)
}

func TestFramedReportsOversizeAndContinues(t *testing.T) {
	rw := &trickleRW{in: bytes.NewReader([]byte("waytoolong\nok\n"))}
	f := NewFramed(rw, NewLineCodec(4))
	_, err := f.ReadFrame()
	require.ErrorIs(t, err, ErrFrameTooLarge)
	frame, err := f.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), frame)
}

func TestFramedCanceledContext(t *testing.T) {
	rw := &trickleRW{in: bytes.NewReader(nil)}
	f := NewFramed(rw, NewLineCodec(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.ReadFrameContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, f.WriteFrameContext(ctx, []byte("x")), context.Canceled)
}

func mustLength(t *testing.T, header, maxLength int) *LengthCodec {
	c, err := NewLengthCodec(header, maxLength)
	require.NoError(t, err)
	return c
}
