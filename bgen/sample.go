package bgen

import (
	"fmt"
	"io"
)

type Sample struct {
	SampleID string
}

// SampleBlockSize is the encoded length of a sample identifier block.
func SampleBlockSize(samples []Sample) uint32 {
	size := uint32(8)
	for _, s := range samples {
		size += 2 + uint32(len(s.SampleID))
	}
	return size
}

// AppendSamples appends a sample identifier block: its length, the number
// of samples, then each identifier with a u16 length prefix.
func AppendSamples(dst []byte, samples []Sample) ([]byte, error) {
	dst = AppendUintLE(dst, uint64(SampleBlockSize(samples)), 4)
	dst = AppendUintLE(dst, uint64(len(samples)), 4)
	for _, s := range samples {
		if len(s.SampleID) > 0xFFFF {
			return dst, fmt.Errorf("sample identifier of %d bytes is too long", len(s.SampleID))
		}
		dst = AppendUintLE(dst, uint64(len(s.SampleID)), 2)
		dst = append(dst, s.SampleID...)
	}
	return dst, nil
}

// ReadSamples reads a sample identifier block for nSamples samples.
func ReadSamples(r io.Reader, nSamples uint32) ([]Sample, error) {
	return readSamples(newFieldReader(r), nSamples)
}

func readSamples(f *fieldReader, nSamples uint32) ([]Sample, error) {
	start := f.offset
	size, err := f.uint(4, "sample block length")
	if err != nil {
		return nil, err
	}
	n, err := f.uint(4, "sample block count")
	if err != nil {
		return nil, err
	}
	if uint32(n) != nSamples {
		return nil, &FormatError{Offset: start + 4, Field: "sample block count", Err: fmt.Errorf("%d samples, header says %d", n, nSamples)}
	}

	samples := make([]Sample, 0, min(nSamples, 1<<16))
	for i := uint32(0); i < nSamples; i++ {
		id, err := f.lengthPrefixed(2, "sample identifier")
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{SampleID: id})
	}
	if got := f.offset - start; got != int64(size) {
		return nil, &FormatError{Offset: start, Field: "sample block length", Err: fmt.Errorf("block declares %d bytes but holds %d", size, got)}
	}
	return samples, nil
}

// SampleIDs returns the identifiers of samples.
func SampleIDs(samples []Sample) []string {
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.SampleID
	}
	return ids
}
