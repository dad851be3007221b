// Package bep reads and writes Bazel's Build Event Protocol in its binary file format,
// as written by --build_event_binary_file.
//
// The file is a sequence of BuildEvent protos, each preceded by its length as a varint.
// Framing (Reader / Writer) is kept separate from decoding the events themselves.
package bep

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxLengthBytes is the most bytes we'll accept for a single length prefix.
const maxLengthBytes = 9

// MaxMessageSize is the largest single message we'll read. Nothing Bazel writes comes close.
const MaxMessageSize = 256 << 20

// ErrLengthTooLong is returned when a length prefix runs on for too many bytes.
var ErrLengthTooLong = errors.New("varint length prefix too long")

// A Reader splits a stream into length-prefixed messages.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a new Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next message in the stream. It returns io.EOF if the stream ends cleanly
// between two messages; ending anywhere else is io.ErrUnexpectedEOF.
func (r *Reader) Next() ([]byte, error) {
	length, err := r.readLength()
	if err != nil {
		return nil, err
	} else if length > MaxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds maximum size of %d", length, MaxMessageSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	} else if err != nil {
		return nil, err
	}
	return buf, nil
}

// readLength reads a little-endian base-128 varint.
func (r *Reader) readLength() (uint64, error) {
	var length uint64
	for i := 0; i < maxLengthBytes; i++ {
		b, err := r.r.ReadByte()
		if err == io.EOF && i > 0 {
			return 0, io.ErrUnexpectedEOF
		} else if err != nil {
			return 0, err
		}
		length |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return length, nil
		}
	}
	return 0, ErrLengthTooLong
}

// A Writer writes length-prefixed messages to a stream.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter returns a new Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes a single message.
func (w *Writer) Write(msg []byte) error {
	w.buf = protowire.AppendVarint(w.buf[:0], uint64(len(msg)))
	w.buf = append(w.buf, msg...)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteEvent encodes and writes a single event.
func (w *Writer) WriteEvent(event *Event) error {
	return w.Write(Encode(event))
}
