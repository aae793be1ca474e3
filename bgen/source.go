package bgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"go.uber.org/zap"
)

func init() {
	genfile.RegisterFileType("bgen", []string{".bgen"}, func(ctx context.Context, path string, opts genfile.Options) (genfile.VariantDataSource, error) {
		src, err := OpenSource(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		return genfile.Cache(src), nil
	})
}

// Source reads a BGEN file as a genfile.SingleShotSource. Wrap it with
// genfile.Cache, or use OpenFile, to get a full VariantDataSource.
type Source struct {
	in      *genfile.Input
	f       *fieldReader
	header  *Header
	samples []Sample
	codec   *Codec
	logger  *zap.Logger

	// firstVariant is the stream offset of the first variant block.
	firstVariant int64
	read         uint32
	pending      bool
}

// OpenFile opens a BGEN file with default options and caches its
// identifying data.
func OpenFile(path string) (*genfile.CachingSource, error) {
	src, err := OpenSource(context.Background(), path, genfile.Options{})
	if err != nil {
		return nil, err
	}
	return genfile.Cache(src), nil
}

// OpenSource reads the offset, header and optional sample block of the BGEN
// file at path and leaves the source positioned at the first variant.
func OpenSource(ctx context.Context, path string, opts genfile.Options) (*Source, error) {
	in, err := genfile.OpenInput(ctx, path, opts.Compression)
	if err != nil {
		return nil, err
	}
	s := &Source{in: in, f: newFieldReader(in), logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if err := s.readPreamble(); err != nil {
		in.Close()
		return nil, err
	}
	s.logger.Debug("opened bgen",
		zap.String("path", path),
		zap.Stringer("layout", s.header.Layout()),
		zap.Bool("compressed", s.header.Flags.Compressed()),
		zap.Uint32("variants", s.header.NumberOfVariants),
		zap.Uint32("samples", s.header.NumberOfSamples),
	)
	return s, nil
}

func (s *Source) readPreamble() error {
	offset, err := readOffset(s.f)
	if err != nil {
		return s.malformed(err)
	}
	if s.header, err = readHeader(s.f, uint64(offset)); err != nil {
		return s.malformed(err)
	}
	if s.header.Flags.HasSampleIdentifiers() {
		if s.samples, err = readSamples(s.f, s.header.NumberOfSamples); err != nil {
			return s.malformed(err)
		}
	}
	s.firstVariant = int64(offset) + 4
	if s.firstVariant < s.f.offset {
		return &genfile.MalformedInputError{
			Source: s.in.Path(),
			Offset: 0,
			Reason: fmt.Sprintf("offset %d points inside the %d header bytes", offset, s.f.offset-4),
		}
	}
	if err := s.f.skip(s.firstVariant-s.f.offset, "gap before first variant"); err != nil {
		return s.malformed(err)
	}
	s.codec = NewCodec(s.header, nil)
	return nil
}

// malformed converts codec errors to the genfile taxonomy.
func (s *Source) malformed(err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return &genfile.MalformedInputError{Source: s.in.Path(), Offset: fe.Offset, Reason: fe.Field, Err: fe.Err}
	}
	return pfx.Err(err)
}

func (s *Source) Header() *Header { return s.header }

// Samples returns the sample identifier block, or nil if the file has none.
func (s *Source) Samples() []Sample { return s.samples }

func (s *Source) NumberOfSamples() uint32 { return s.header.NumberOfSamples }

func (s *Source) TotalNumberOfSNPs() (int, bool) { return int(s.header.NumberOfVariants), true }

func (s *Source) ReadIdentifyingData() (*genfile.VariantIdentifyingData, error) {
	if s.pending {
		if err := s.IgnoreProbabilityData(); err != nil {
			return nil, err
		}
	}
	if s.read == s.header.NumberOfVariants {
		return nil, genfile.ErrExhausted
	}
	at := s.f.offset
	id, eof, err := s.codec.readIdentifyingData(s.f)
	if eof {
		return nil, &genfile.MalformedInputError{
			Source: s.in.Path(),
			Offset: at,
			Reason: fmt.Sprintf("file ends after %d of %d variants", s.read, s.header.NumberOfVariants),
		}
	}
	if err != nil {
		return nil, s.malformed(err)
	}
	s.read++
	s.pending = true
	return id, nil
}

func (s *Source) ReadProbabilityData(set genfile.GenotypeProbabilitySetter) error {
	if !s.pending {
		return genfile.ErrProtocolViolation
	}
	s.pending = false
	if err := s.codec.readProbabilities(s.f, set); err != nil {
		return s.malformed(err)
	}
	return nil
}

func (s *Source) IgnoreProbabilityData() error {
	if !s.pending {
		return genfile.ErrProtocolViolation
	}
	s.pending = false
	if err := s.codec.skipProbabilities(s.f); err != nil {
		return s.malformed(err)
	}
	return nil
}

// ResetToStart rewinds the input and skips back to the first variant.
func (s *Source) ResetToStart() error {
	if err := s.in.Rewind(); err != nil {
		return err
	}
	s.f = newFieldReader(s.in)
	if err := s.f.skip(s.firstVariant, "preamble"); err != nil {
		return s.malformed(err)
	}
	s.read = 0
	s.pending = false
	return nil
}

func (s *Source) Spec() string { return "bgen:" + s.in.Path() }

func (s *Source) Close() error { return s.in.Close() }
