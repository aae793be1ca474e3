package bgen

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"go.uber.org/zap"
)

// VariantWriter accepts one variant at a time.
type VariantWriter interface {
	WriteVariant(id *genfile.VariantIdentifyingData, probs []genfile.GenotypeProbabilities) error
	NumberOfSamples() uint32
	Close() error
}

// SinkOptions configure a new BGEN file.
type SinkOptions struct {
	NumberOfSamples uint32
	FreeData        string

	// Flags selects the layout, compression and, for v1.0, multi-character
	// alleles. FlagSampleIdentifiers is set from SampleIDs.
	Flags Flags

	// SampleIDs, if non-nil, are written as a sample identifier block.
	SampleIDs []string

	// IndexPath, if set, receives a .bgi index when the sink is closed.
	IndexPath string

	// Strict rejects probabilities outside [0, 1] instead of clamping them.
	Strict bool

	Logger *zap.Logger
}

// DefaultFlags selects compressed layout v1.1.
var DefaultFlags = FlagCompressed.WithLayout(LayoutV11)

// Sink writes a BGEN file. The header is written with a provisional variant
// count and rewritten by Close.
type Sink struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	header *Header
	codec  *Codec
	index  *IndexWriter
	logger *zap.Logger

	// offset counts bytes written so far.
	offset       int64
	firstVariant int64
	buf          []byte
	closed       bool
}

// NewSink creates the file at path and writes its preamble.
func NewSink(path string, opts SinkOptions) (*Sink, error) {
	flags := opts.Flags
	var samples []Sample
	if opts.SampleIDs != nil {
		if uint32(len(opts.SampleIDs)) != opts.NumberOfSamples {
			return nil, &genfile.InconsistentSampleCountError{Expected: opts.NumberOfSamples, Got: uint32(len(opts.SampleIDs))}
		}
		flags |= FlagSampleIdentifiers
		samples = make([]Sample, len(opts.SampleIDs))
		for i, id := range opts.SampleIDs {
			samples[i] = Sample{SampleID: id}
		}
	} else {
		flags &^= FlagSampleIdentifiers
	}
	header := NewHeader(opts.NumberOfSamples, opts.FreeData, flags)
	if err := header.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	encoder := NewEncoder(header.Layout(), logger)
	encoder.Strict = opts.Strict

	preamble := AppendOffset(nil, 0)
	preamble = AppendHeader(preamble, header)
	if samples != nil {
		var err error
		if preamble, err = AppendSamples(preamble, samples); err != nil {
			return nil, err
		}
	}
	// The offset excludes its own four bytes.
	if err := PutUintLE(preamble, uint64(len(preamble)-4), 4); err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, &genfile.ResourceError{Path: path, Err: err}
	}
	s := &Sink{
		path:         path,
		file:         file,
		w:            bufio.NewWriterSize(file, 1<<16),
		header:       header,
		codec:        NewCodec(header, encoder),
		logger:       logger,
		firstVariant: int64(len(preamble)),
	}
	if opts.IndexPath != "" {
		if s.index, err = CreateIndex(opts.IndexPath); err != nil {
			file.Close()
			return nil, err
		}
	}
	if err := s.write(preamble); err != nil {
		s.abort()
		return nil, err
	}
	return s, nil
}

func (s *Sink) write(b []byte) error {
	n, err := s.w.Write(b)
	s.offset += int64(n)
	if err != nil {
		return &genfile.ResourceError{Path: s.path, Err: err}
	}
	return nil
}

func (s *Sink) abort() {
	if s.index != nil {
		s.index.Abort()
	}
	s.file.Close()
}

func (s *Sink) Path() string { return s.path }

func (s *Sink) Header() *Header { return s.header }

func (s *Sink) NumberOfSamples() uint32 { return s.header.NumberOfSamples }

// NumberOfVariants counts the variants written so far.
func (s *Sink) NumberOfVariants() uint32 { return s.header.NumberOfVariants }

// Offset is the number of bytes written so far.
func (s *Sink) Offset() int64 { return s.offset }

// WriteVariant appends one variant block.
func (s *Sink) WriteVariant(id *genfile.VariantIdentifyingData, probs []genfile.GenotypeProbabilities) error {
	_, _, err := s.writeVariant(id, probs)
	return err
}

// writeVariant returns the byte range the block occupies.
func (s *Sink) writeVariant(id *genfile.VariantIdentifyingData, probs []genfile.GenotypeProbabilities) (start, end int64, err error) {
	if s.closed {
		return 0, 0, errors.New("bgen: write to closed sink")
	}
	buf, err := s.codec.AppendIdentifyingData(s.buf[:0], id)
	if err != nil {
		return 0, 0, err
	}
	if buf, err = s.codec.AppendProbabilities(buf, probs); err != nil {
		return 0, 0, fmt.Errorf("variant %s: %w", id.RSID(), err)
	}
	s.buf = buf

	start = s.offset
	if err := s.write(buf); err != nil {
		return 0, 0, err
	}
	s.header.NumberOfVariants++
	if s.index != nil {
		if err := s.index.Add(NewVariantIndex(id, start, s.offset)); err != nil {
			return 0, 0, err
		}
	}
	return start, s.offset, nil
}

// Close rewrites the header with the final variant count, closes the file
// and finishes the index.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.finish(); err != nil {
		s.abort()
		return err
	}
	if s.index != nil {
		if err := s.index.Finish(s.path); err != nil {
			return err
		}
	}
	s.logger.Debug("closed bgen sink",
		zap.String("path", s.path),
		zap.Uint32("variants", s.header.NumberOfVariants),
		zap.Int64("bytes", s.offset),
	)
	return nil
}

func (s *Sink) finish() error {
	if err := s.w.Flush(); err != nil {
		return &genfile.ResourceError{Path: s.path, Err: err}
	}
	if _, err := s.file.WriteAt(AppendHeader(nil, s.header), 4); err != nil {
		return &genfile.ResourceError{Path: s.path, Err: err}
	}
	if err := s.file.Close(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// WriteFromSource copies every remaining variant of src to sink. It returns
// the number of variants written.
func WriteFromSource(sink VariantWriter, src genfile.VariantDataSource) (int, error) {
	if sink.NumberOfSamples() != src.NumberOfSamples() {
		return 0, &genfile.InconsistentSampleCountError{Expected: sink.NumberOfSamples(), Got: src.NumberOfSamples()}
	}
	var (
		probs []genfile.GenotypeProbabilities
		n     int
	)
	err := genfile.EachVariant(src, func(id *genfile.VariantIdentifyingData) error {
		var err error
		if probs, err = genfile.ReadGenotypes(src, probs); err != nil {
			return err
		}
		if err := sink.WriteVariant(id, probs); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
