package genfile

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Rack joins sources that cover the same variants over disjoint samples.
// Only variants whose position appears in every source are served; the
// samples of source i follow those of sources 0..i-1.
type Rack struct {
	cursor
	sources    []VariantDataSource
	offsets    []uint32
	nSamples   uint32
	comparator *CompareFields
	positions  []GenomePosition

	merged *VariantIdentifyingData
	flips  []bool

	logger *zap.Logger
}

// RackOption configures a Rack.
type RackOption func(*Rack)

// WithComparator sets the fields used to decide that variants from two
// sources are the same. Its first field must be position.
func WithComparator(c *CompareFields) RackOption {
	return func(r *Rack) { r.comparator = c }
}

// WithRackLogger sets the rack's logger.
func WithRackLogger(logger *zap.Logger) RackOption {
	return func(r *Rack) { r.logger = logger }
}

// NewRack builds a rack over sources. Every source is scanned once to find
// the positions they share, then reset. Each source must list its variants
// in non-decreasing position order. The rack owns the sources.
func NewRack(sources []VariantDataSource, opts ...RackOption) (*Rack, error) {
	r := &Rack{
		sources:    sources,
		comparator: MustCompareFields(DefaultCompareFields),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if fields := r.comparator.Fields(); len(fields) == 0 || fields[0] != FieldPosition {
		return nil, fmt.Errorf("rack comparator must begin with position, got %q", r.comparator.String())
	}

	r.offsets = make([]uint32, len(sources))
	r.flips = make([]bool, len(sources))
	for i, s := range sources {
		r.offsets[i] = r.nSamples
		r.nSamples += s.NumberOfSamples()
	}

	for i, s := range sources {
		positions, err := scanPositions(s)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			r.positions = positions
		} else {
			r.positions = intersectPositions(r.positions, positions)
		}
		if err := s.ResetToStart(); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("rack built",
		zap.Int("sources", len(sources)),
		zap.Uint32("samples", r.nSamples),
		zap.Int("shared_variants", len(r.positions)),
	)
	return r, nil
}

// scanPositions reads every position of s from the start, checking that
// they do not decrease.
func scanPositions(s VariantDataSource) ([]GenomePosition, error) {
	if err := s.ResetToStart(); err != nil {
		return nil, err
	}
	var positions []GenomePosition
	err := EachVariant(s, func(id *VariantIdentifyingData) error {
		pos := id.Position()
		if n := len(positions); n > 0 && pos.Less(positions[n-1]) {
			return &MalformedInputError{
				Source: s.Spec(),
				Offset: int64(n),
				Reason: fmt.Sprintf("variants must be in non-decreasing position order, but %s follows %s", pos, positions[n-1]),
			}
		}
		positions = append(positions, pos)
		return s.IgnoreProbabilityData()
	})
	return positions, err
}

// intersectPositions merges two sorted position lists, keeping each position
// as many times as it occurs in both.
func intersectPositions(a, b []GenomePosition) []GenomePosition {
	var result []GenomePosition
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].Compare(b[j]); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			result = append(result, a[i])
			i++
			j++
		}
	}
	return result
}

func (r *Rack) NumberOfSamples() uint32 { return r.nSamples }

func (r *Rack) TotalNumberOfSNPs() (int, bool) { return len(r.positions), true }

func (r *Rack) NumberOfSources() int { return len(r.sources) }

// Source returns the i'th source.
func (r *Rack) Source(i int) VariantDataSource { return r.sources[i] }

// SampleOffset is the index, within the rack, of source i's first sample.
func (r *Rack) SampleOffset(i int) uint32 { return r.offsets[i] }

// GetIdentifyingData aligns every source on the next shared position and
// returns the first source's variant, with the identifiers of the others
// added as alternates.
func (r *Rack) GetIdentifyingData() (*VariantIdentifyingData, error) {
	if r.state == IdentifyingDataRead {
		return r.merged, nil
	}
	if len(r.sources) == 0 || r.read >= len(r.positions) {
		return nil, ErrExhausted
	}
	target := r.positions[r.read]

	reference, err := r.advanceFirst(target)
	if err != nil {
		return nil, err
	}
	merged := reference.Clone()
	for i := 1; i < len(r.sources); i++ {
		id, err := r.advanceToMatch(i, target, reference)
		if err != nil {
			return nil, err
		}
		r.flips[i] = r.comparator.FlipAlleles && allelesFlipped(reference, id)
		for _, alt := range id.Identifiers() {
			merged.AddIdentifier(alt.String())
		}
	}
	r.merged = merged
	r.identified()
	return merged, nil
}

func (r *Rack) advanceFirst(target GenomePosition) (*VariantIdentifyingData, error) {
	s := r.sources[0]
	for {
		id, err := s.GetIdentifyingData()
		if errors.Is(err, ErrExhausted) {
			return nil, &MissingSNPError{SourceIndex: 0, Position: target}
		}
		if err != nil {
			return nil, err
		}
		switch c := id.Position().Compare(target); {
		case c < 0:
			if err := s.IgnoreProbabilityData(); err != nil {
				return nil, err
			}
		case c > 0:
			return nil, &MissingSNPError{SourceIndex: 0, Position: target}
		default:
			return id, nil
		}
	}
}

// advanceToMatch moves source i to the next variant at target that the
// comparator considers equal to reference.
func (r *Rack) advanceToMatch(i int, target GenomePosition, reference *VariantIdentifyingData) (*VariantIdentifyingData, error) {
	s := r.sources[i]
	mismatched := false
	fail := func() error {
		if mismatched {
			return &SNPMismatchError{SourceIndex: i, Position: target}
		}
		return &MissingSNPError{SourceIndex: i, Position: target}
	}
	for {
		id, err := s.GetIdentifyingData()
		if errors.Is(err, ErrExhausted) {
			return nil, fail()
		}
		if err != nil {
			return nil, err
		}
		c := id.Position().Compare(target)
		if c > 0 {
			return nil, fail()
		}
		if c == 0 && r.comparator.Equal(id, reference) {
			return id, nil
		}
		if c == 0 {
			mismatched = true
			r.logger.Debug("rack skipped mismatching variant",
				zap.Int("source", i),
				zap.String("variant", id.String()),
				zap.String("reference", reference.String()),
			)
		}
		if err := s.IgnoreProbabilityData(); err != nil {
			return nil, err
		}
	}
}

// ReadProbabilityData reads each source in turn, shifting its sample
// indices by the samples of the sources before it.
func (r *Rack) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if err := r.consume(); err != nil {
		return err
	}
	r.merged = nil
	for i, s := range r.sources {
		offset, flip := r.offsets[i], r.flips[i]
		err := s.ReadProbabilityData(func(sample uint32, aa, ab, bb float64) {
			if flip {
				aa, bb = bb, aa
			}
			set(sample+offset, aa, ab, bb)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Rack) IgnoreProbabilityData() error {
	if err := r.consume(); err != nil {
		return err
	}
	r.merged = nil
	for _, s := range r.sources {
		if err := s.IgnoreProbabilityData(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rack) ResetToStart() error {
	for _, s := range r.sources {
		if err := s.ResetToStart(); err != nil {
			return err
		}
	}
	r.merged = nil
	r.reset()
	return nil
}

func (r *Rack) Spec() string {
	specs := make([]string, len(r.sources))
	for i, s := range r.sources {
		specs[i] = s.Spec()
	}
	return "rack:" + strings.Join(specs, ",")
}

// Summary lists each source's sample range.
func (r *Rack) Summary(prefix string) string {
	var b strings.Builder
	for i, s := range r.sources {
		fmt.Fprintf(&b, "%scohort %d: samples %d-%d %q\n", prefix, i+1, r.offsets[i], r.offsets[i]+s.NumberOfSamples(), s.Spec())
	}
	fmt.Fprintf(&b, "%sTotal all cohorts: %d samples, %d shared variants (%s).\n", prefix, r.nSamples, len(r.positions), r.comparator)
	return b.String()
}

// Close closes every source and returns the first error.
func (r *Rack) Close() error {
	var first error
	for _, s := range r.sources {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
