package bgen

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/carbocation/genfile"
	"github.com/klauspost/compress/zlib"
)

// Codec encodes and decodes the variant blocks of one file. It owns the
// reusable zlib streams and scratch buffers, so it must not be shared between
// goroutines.
type Codec struct {
	header  *Header
	layout  Layout
	encoder *Encoder

	zr         io.ReadCloser
	zw         *zlib.Writer
	compressed bytes.Buffer
	raw        []byte
}

// NewCodec returns a codec for files with header h. The encoder is only used
// when writing and may be nil for a reader.
func NewCodec(h *Header, encoder *Encoder) *Codec {
	if encoder == nil {
		encoder = NewEncoder(h.Layout(), nil)
	}
	return &Codec{header: h, layout: h.Layout(), encoder: encoder}
}

func (c *Codec) nSamples() uint32 { return c.header.NumberOfSamples }

// probabilityBytes is the uncompressed size of one probability block.
func (c *Codec) probabilityBytes() int { return int(c.nSamples()) * bytesPerSample }

// readIdentifyingData decodes an identifying block. eof is set, with a nil
// error, when the stream ends cleanly before the block starts.
func (c *Codec) readIdentifyingData(f *fieldReader) (id *genfile.VariantIdentifyingData, eof bool, err error) {
	start := f.offset
	n, eof, err := f.uintOrEOF(4, "variant sample count")
	if eof || err != nil {
		return nil, eof, err
	}
	if uint32(n) != c.nSamples() {
		return nil, false, &FormatError{Offset: start, Field: "variant sample count", Err: fmt.Errorf("%d samples, header says %d", n, c.nSamples())}
	}
	if c.layout == LayoutV10 {
		id, err = c.readV10(f)
	} else {
		id, err = c.readV11(f)
	}
	return id, false, err
}

func (c *Codec) readV10(f *fieldReader) (*genfile.VariantIdentifyingData, error) {
	maxSize, err := f.uint(1, "maximum identifier size")
	if err != nil {
		return nil, err
	}
	padded := func(field string) (string, error) {
		at := f.offset
		s, err := f.lengthPrefixed(1, field)
		if err != nil {
			return "", err
		}
		if uint64(len(s)) > maxSize {
			return "", &FormatError{Offset: at, Field: field, Err: fmt.Errorf("length %d exceeds maximum identifier size %d", len(s), maxSize)}
		}
		return s, f.skip(int64(maxSize)-int64(len(s)), field+" padding")
	}
	snpid, err := padded("SNPID")
	if err != nil {
		return nil, err
	}
	rsid, err := padded("RSID")
	if err != nil {
		return nil, err
	}
	code, err := f.uint(1, "chromosome")
	if err != nil {
		return nil, err
	}
	pos, err := f.uint(4, "position")
	if err != nil {
		return nil, err
	}

	var alleles [2]string
	for i := range alleles {
		if c.header.Flags.MultiCharacterAlleles() {
			alleles[i], err = f.lengthPrefixed(1, "allele")
		} else {
			var b []byte
			if b, err = f.read(1, "allele"); err == nil {
				alleles[i] = string(b)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return genfile.NewVariantWithSNPID(snpid, rsid,
		genfile.NewGenomePosition(genfile.ChromosomeFromCode(uint8(code)), uint32(pos)),
		alleles[0], alleles[1]), nil
}

func (c *Codec) readV11(f *fieldReader) (*genfile.VariantIdentifyingData, error) {
	snpid, err := f.lengthPrefixed(2, "SNPID")
	if err != nil {
		return nil, err
	}
	rsid, err := f.lengthPrefixed(2, "RSID")
	if err != nil {
		return nil, err
	}
	chrom, err := f.lengthPrefixed(2, "chromosome")
	if err != nil {
		return nil, err
	}
	pos, err := f.uint(4, "position")
	if err != nil {
		return nil, err
	}
	a, err := f.lengthPrefixed(4, "allele")
	if err != nil {
		return nil, err
	}
	b, err := f.lengthPrefixed(4, "allele")
	if err != nil {
		return nil, err
	}
	return genfile.NewVariantWithSNPID(snpid, rsid,
		genfile.NewGenomePosition(genfile.Chromosome(chrom), uint32(pos)), a, b), nil
}

// readProbabilities decodes the probability block that follows an
// identifying block.
func (c *Codec) readProbabilities(f *fieldReader, set genfile.GenotypeProbabilitySetter) error {
	var raw []byte
	if c.header.Flags.Compressed() {
		n, err := f.uint(4, "compressed probability length")
		if err != nil {
			return err
		}
		start := f.offset
		data, err := f.read(int(n), "compressed probability data")
		if err != nil {
			return err
		}
		if raw, err = c.inflate(data); err != nil {
			return &FormatError{Offset: start, Field: "compressed probability data", Err: err}
		}
	} else {
		var err error
		if raw, err = f.read(c.probabilityBytes(), "probability data"); err != nil {
			return err
		}
	}
	return DecodeProbabilities(raw, c.nSamples(), c.layout.Factor(), set)
}

func (c *Codec) inflate(data []byte) ([]byte, error) {
	var err error
	if c.zr == nil {
		c.zr, err = zlib.NewReader(bytes.NewReader(data))
	} else {
		err = c.zr.(zlib.Resetter).Reset(bytes.NewReader(data), nil)
	}
	if err != nil {
		return nil, err
	}
	raw, err := readGrowing(c.zr, c.raw, c.probabilityBytes())
	c.raw = raw
	if err != nil {
		return nil, fmt.Errorf("inflating %d bytes: %w", c.probabilityBytes(), err)
	}
	return raw, nil
}

// skipProbabilities moves past a probability block without decoding it.
func (c *Codec) skipProbabilities(f *fieldReader) error {
	if c.header.Flags.Compressed() {
		n, err := f.uint(4, "compressed probability length")
		if err != nil {
			return err
		}
		return f.skip(int64(n), "compressed probability data")
	}
	return f.skip(int64(c.probabilityBytes()), "probability data")
}

// AppendIdentifyingData appends the identifying block for id. Only biallelic
// variants can be stored. The SNPID written is id.SNPID(), so at most one
// alternate identifier survives.
func (c *Codec) AppendIdentifyingData(dst []byte, id *genfile.VariantIdentifyingData) ([]byte, error) {
	if id.NumberOfAlleles() != 2 {
		return dst, &genfile.OperationUnsupportedError{Op: fmt.Sprintf("write %d-allele variant %s to BGEN", id.NumberOfAlleles(), id.RSID())}
	}
	dst = AppendUintLE(dst, uint64(c.nSamples()), 4)
	snpid, rsid := id.SNPID().String(), id.RSID().String()
	a, b := id.Allele(0).String(), id.Allele(1).String()
	pos := id.Position()

	if c.layout == LayoutV11 {
		chrom := pos.Chromosome.String()
		for _, s := range []string{snpid, rsid, chrom} {
			if len(s) > math.MaxUint16 {
				return dst, fmt.Errorf("identifier %.20q... is longer than %d bytes", s, math.MaxUint16)
			}
			dst = AppendUintLE(dst, uint64(len(s)), 2)
			dst = append(dst, s...)
		}
		dst = AppendUintLE(dst, uint64(pos.Position), 4)
		for _, s := range []string{a, b} {
			dst = AppendUintLE(dst, uint64(len(s)), 4)
			dst = append(dst, s...)
		}
		return dst, nil
	}

	multi := c.header.Flags.MultiCharacterAlleles()
	sized := []string{snpid, rsid}
	if multi {
		sized = append(sized, a, b)
	}
	maxSize := 0
	for _, s := range sized {
		if len(s) > maxSize {
			maxSize = len(s)
		}
	}
	if maxSize > math.MaxUint8 {
		return dst, fmt.Errorf("variant %s: v1.0 fields are limited to %d bytes", rsid, math.MaxUint8)
	}
	if !multi && (len(a) != 1 || len(b) != 1) {
		return dst, &genfile.OperationUnsupportedError{Op: fmt.Sprintf("write alleles %q/%q without the multi-character allele flag", a, b)}
	}
	dst = append(dst, byte(maxSize))
	for _, s := range []string{snpid, rsid} {
		dst = append(dst, byte(len(s)))
		dst = append(dst, s...)
		for i := len(s); i < maxSize; i++ {
			dst = append(dst, ' ')
		}
	}
	dst = append(dst, pos.Chromosome.Code())
	dst = AppendUintLE(dst, uint64(pos.Position), 4)
	if multi {
		dst = append(dst, byte(len(a)))
		dst = append(dst, a...)
		dst = append(dst, byte(len(b)))
		return append(dst, b...), nil
	}
	return append(dst, a[0], b[0]), nil
}

// AppendProbabilities appends the probability block for probs, which must
// hold one entry per sample.
func (c *Codec) AppendProbabilities(dst []byte, probs []genfile.GenotypeProbabilities) ([]byte, error) {
	if len(probs) != int(c.nSamples()) {
		return dst, &genfile.InconsistentSampleCountError{Expected: c.nSamples(), Got: uint32(len(probs))}
	}
	raw, err := c.encoder.AppendProbabilities(c.raw[:0], probs)
	if err != nil {
		return dst, err
	}
	c.raw = raw
	if !c.header.Flags.Compressed() {
		return append(dst, raw...), nil
	}

	c.compressed.Reset()
	if c.zw == nil {
		c.zw = zlib.NewWriter(&c.compressed)
	} else {
		c.zw.Reset(&c.compressed)
	}
	if _, err := c.zw.Write(raw); err != nil {
		return dst, err
	}
	if err := c.zw.Close(); err != nil {
		return dst, err
	}
	dst = AppendUintLE(dst, uint64(c.compressed.Len()), 4)
	return append(dst, c.compressed.Bytes()...), nil
}
