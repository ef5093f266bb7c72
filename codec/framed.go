//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package codec

import (
	"context"
	"errors"
	"io"
)

// contextReader is implemented by streams able to abandon a pending read,
// like serial.Stream.
type contextReader interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

type contextWriter interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// Framed reads and writes whole frames over a byte stream.
type Framed struct {
	rw    io.ReadWriter
	codec Codec
	buf   []byte
}

// NewFramed returns a Framed using codec over rw.
func NewFramed(rw io.ReadWriter, codec Codec) *Framed {
	return &Framed{rw: rw, codec: codec, buf: make([]byte, 4096)}
}

// ReadFrame waits for the next complete frame.
func (f *Framed) ReadFrame() ([]byte, error) {
	return f.ReadFrameContext(context.Background())
}

// ReadFrameContext is like ReadFrame but gives up when ctx is done, if the
// underlying stream supports it. Bytes received before the cancellation
// stay buffered in the codec. An oversized frame is reported with
// ErrFrameTooLarge and the next call goes on with the following frame.
func (f *Framed) ReadFrameContext(ctx context.Context) ([]byte, error) {
	frame, err := f.codec.Decode(nil)
	for frame == nil && err == nil {
		var n int
		n, err = f.read(ctx, f.buf)
		if n > 0 {
			var derr error
			frame, derr = f.codec.Decode(f.buf[:n])
			if frame != nil || derr != nil {
				// a read error is reported again on the next call
				return frame, derr
			}
		}
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
	}
	return frame, err
}

func (f *Framed) read(ctx context.Context, p []byte) (int, error) {
	if r, ok := f.rw.(contextReader); ok {
		return r.ReadContext(ctx, p)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.rw.Read(p)
}

// WriteFrame encodes frame and writes all of it.
func (f *Framed) WriteFrame(frame []byte) error {
	return f.WriteFrameContext(context.Background(), frame)
}

// WriteFrameContext is like WriteFrame but gives up when ctx is done, if
// the underlying stream supports it. Short writes are continued until the
// whole frame is out.
func (f *Framed) WriteFrameContext(ctx context.Context, frame []byte) error {
	data, err := f.codec.Encode(frame)
	if err != nil {
		return err
	}
	for len(data) > 0 {
		n, err := f.write(ctx, data)
		data = data[n:]
		if err != nil && !errors.Is(err, io.ErrShortWrite) {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

func (f *Framed) write(ctx context.Context, p []byte) (int, error) {
	if w, ok := f.rw.(contextWriter); ok {
		return w.WriteContext(ctx, p)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.rw.Write(p)
}
