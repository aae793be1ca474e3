package bgen

import (
	"errors"
	"fmt"
	"io"
	"slices"
)

// FormatError reports a field that could not be decoded, with the byte
// offset at which it starts.
type FormatError struct {
	Offset int64
	Field  string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bgen: %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var errWidth = errors.New("integer width must be between 1 and 8 bytes")

// ReadUintLE decodes a little-endian unsigned integer of width bytes from
// the front of buf.
func ReadUintLE(buf []byte, width int) (uint64, error) {
	if width < 1 || width > 8 {
		return 0, errWidth
	}
	if len(buf) < width {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// PutUintLE encodes v as a little-endian integer of width bytes at the front
// of buf. It fails if v does not fit.
func PutUintLE(buf []byte, v uint64, width int) error {
	if width < 1 || width > 8 {
		return errWidth
	}
	if len(buf) < width {
		return io.ErrShortBuffer
	}
	if width < 8 && v>>(8*uint(width)) != 0 {
		return fmt.Errorf("value %d does not fit in %d bytes", v, width)
	}
	for i := 0; i < width; i++ {
		buf[i] = byte(v >> (8 * uint(i)))
	}
	return nil
}

// AppendUintLE appends the low width bytes of v, little-endian, to dst.
func AppendUintLE(dst []byte, v uint64, width int) []byte {
	for i := 0; i < width; i++ {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// byteReader decodes fields from an in-memory block, checking every read
// against the block's length.
type byteReader struct {
	buf  []byte
	pos  int
	base int64
}

func (r *byteReader) offset() int64 { return r.base + int64(r.pos) }

func (r *byteReader) remaining() int { return len(r.buf) - r.pos }

func (r *byteReader) bytes(n int, field string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, &FormatError{Offset: r.offset(), Field: field, Err: io.ErrUnexpectedEOF}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) uint(width int, field string) (uint64, error) {
	b, err := r.bytes(width, field)
	if err != nil {
		return 0, err
	}
	return ReadUintLE(b, width)
}

// fieldReader decodes fields from a stream, tracking the offset and reusing
// one scratch buffer.
type fieldReader struct {
	r       io.Reader
	offset  int64
	scratch []byte
}

func newFieldReader(r io.Reader) *fieldReader {
	return &fieldReader{r: r}
}

// readStep bounds how far a buffer grows ahead of the bytes actually read,
// so a corrupt length cannot force a large allocation.
const readStep = 1 << 16

// readGrowing reads n bytes from r into buf[:0], growing buf as data
// arrives. It returns what was read along with any error.
func readGrowing(r io.Reader, buf []byte, n int) ([]byte, error) {
	buf = buf[:0]
	for len(buf) < n {
		step := min(n-len(buf), readStep)
		buf = slices.Grow(buf, step)
		got, err := io.ReadFull(r, buf[len(buf):len(buf)+step])
		buf = buf[:len(buf)+got]
		if err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// read returns the next n bytes. The result is valid until the next call.
func (f *fieldReader) read(n int, field string) ([]byte, error) {
	start := f.offset
	if n < 0 {
		return nil, &FormatError{Offset: start, Field: field, Err: fmt.Errorf("negative length %d", n)}
	}
	buf, err := readGrowing(f.r, f.scratch, n)
	f.scratch = buf
	f.offset += int64(len(buf))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FormatError{Offset: start, Field: field, Err: err}
	}
	return buf, nil
}

func (f *fieldReader) uint(width int, field string) (uint64, error) {
	b, err := f.read(width, field)
	if err != nil {
		return 0, err
	}
	return ReadUintLE(b, width)
}

// lengthPrefixed reads a width-byte length followed by that many bytes.
func (f *fieldReader) lengthPrefixed(width int, field string) (string, error) {
	n, err := f.uint(width, field+" length")
	if err != nil {
		return "", err
	}
	b, err := f.read(int(n), field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type discarder interface {
	Discard(n int) (int, error)
}

// skip advances n bytes without decoding them.
func (f *fieldReader) skip(n int64, field string) error {
	start := f.offset
	var got int64
	var err error
	if d, ok := f.r.(discarder); ok {
		var m int
		m, err = d.Discard(int(n))
		got = int64(m)
	} else {
		got, err = io.CopyN(io.Discard, f.r, n)
	}
	f.offset += got
	if err == nil && got < n {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return &FormatError{Offset: start, Field: field, Err: err}
	}
	return nil
}

// uintOrEOF reads a width-byte integer, reporting a clean end of stream
// separately from a truncated field.
func (f *fieldReader) uintOrEOF(width int, field string) (uint64, bool, error) {
	if cap(f.scratch) < width {
		f.scratch = make([]byte, width)
	}
	buf := f.scratch[:width]
	got, err := io.ReadFull(f.r, buf)
	start := f.offset
	f.offset += int64(got)
	if err == io.EOF {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, &FormatError{Offset: start, Field: field, Err: err}
	}
	v, _ := ReadUintLE(buf, width)
	return v, false, nil
}
