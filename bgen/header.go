package bgen

import (
	"fmt"
	"io"
	"math"
)

// MagicNumber contains the value required to confirm that a file is BGEN-conformant
const MagicNumber = "bgen"

// headerFixedSize counts the header block's fixed fields: its own length,
// the variant and sample counts, the magic number and the flags.
const headerFixedSize = 20

// Header is the header block that follows the leading offset of a BGEN file.
type Header struct {
	NumberOfVariants uint32
	NumberOfSamples  uint32
	Magic            [4]byte
	FreeData         string
	Flags            Flags
}

// NewHeader returns a header carrying the magic number.
func NewHeader(nSamples uint32, freeData string, flags Flags) *Header {
	h := &Header{NumberOfSamples: nSamples, FreeData: freeData, Flags: flags}
	copy(h.Magic[:], MagicNumber)
	return h
}

// HeaderBlockSize is the length of a header block with the given free data.
func HeaderBlockSize(freeData string) uint32 {
	return headerFixedSize + uint32(len(freeData))
}

// BlockSize is the encoded length of h.
func (h *Header) BlockSize() uint32 { return HeaderBlockSize(h.FreeData) }

func (h *Header) Layout() Layout { return h.Flags.Layout() }

// validate checks the fields a reader relies on.
func (h *Header) validate() error {
	if string(h.Magic[:]) != MagicNumber && h.Magic != [4]byte{} {
		return fmt.Errorf("The BGEN header magic number is expected to be %q or four zero bytes, but instead resolved to byte slice %v", MagicNumber, h.Magic[:])
	}
	if l := h.Layout(); l != LayoutV10 && l != LayoutV11 {
		return fmt.Errorf("unsupported layout %d in flags 0x%08x", l, uint32(h.Flags))
	}
	return nil
}

// AppendHeader appends the encoded header block to dst.
func AppendHeader(dst []byte, h *Header) []byte {
	dst = AppendUintLE(dst, uint64(h.BlockSize()), 4)
	dst = AppendUintLE(dst, uint64(h.NumberOfVariants), 4)
	dst = AppendUintLE(dst, uint64(h.NumberOfSamples), 4)
	dst = append(dst, h.Magic[:]...)
	dst = append(dst, h.FreeData...)
	return AppendUintLE(dst, uint64(h.Flags), 4)
}

// WriteHeader writes the encoded header block to w.
func WriteHeader(w io.Writer, h *Header) error {
	_, err := w.Write(AppendHeader(nil, h))
	return err
}

// ReadOffset reads the leading u32, the distance from the end of the offset
// field to the first variant block.
func ReadOffset(r io.Reader) (uint32, error) {
	return readOffset(newFieldReader(r))
}

func readOffset(f *fieldReader) (uint32, error) {
	v, err := f.uint(4, "offset")
	return uint32(v), err
}

// AppendOffset appends the leading u32 offset to dst.
func AppendOffset(dst []byte, offset uint32) []byte {
	return AppendUintLE(dst, uint64(offset), 4)
}

// ReadHeader reads and validates a header block.
func ReadHeader(r io.Reader) (*Header, error) {
	return readHeader(newFieldReader(r), math.MaxUint32)
}

// readHeader reads a header block of at most maxSize bytes.
func readHeader(f *fieldReader, maxSize uint64) (*Header, error) {
	start := f.offset
	size, err := f.uint(4, "header length")
	if err != nil {
		return nil, err
	}
	if size < headerFixedSize {
		return nil, &FormatError{Offset: start, Field: "header length", Err: fmt.Errorf("%d is shorter than the %d fixed bytes", size, headerFixedSize)}
	}
	if size > maxSize {
		return nil, &FormatError{Offset: start, Field: "header length", Err: fmt.Errorf("%d exceeds the %d bytes before the first variant", size, maxSize)}
	}
	block, err := f.read(int(size)-4, "header block")
	if err != nil {
		return nil, err
	}
	r := byteReader{buf: block, base: start + 4}
	h := &Header{}
	nVariants, _ := r.uint(4, "number of variants")
	nSamples, _ := r.uint(4, "number of samples")
	magic, _ := r.bytes(4, "magic number")
	free, _ := r.bytes(int(size)-headerFixedSize, "free data")
	flags, err := r.uint(4, "flags")
	if err != nil {
		return nil, err
	}
	h.NumberOfVariants = uint32(nVariants)
	h.NumberOfSamples = uint32(nSamples)
	copy(h.Magic[:], magic)
	h.FreeData = string(free)
	h.Flags = Flags(flags)
	if err := h.validate(); err != nil {
		return nil, &FormatError{Offset: start, Field: "header block", Err: err}
	}
	return h, nil
}
