package genfile

import (
	"errors"
	"fmt"
)

// GenotypeProbabilitySetter receives the genotype probabilities of one sample
// at the current variant.
type GenotypeProbabilitySetter func(sample uint32, aa, ab, bb float64)

// GenotypeProbabilities holds the three genotype probabilities of one sample.
type GenotypeProbabilities struct {
	AA, AB, BB float64
}

// VariantDataSource is the pull-based cursor every format adapter and every
// decorator implements. Variants are read in two phases: GetIdentifyingData
// (idempotent until the variant is consumed), then exactly one of
// ReadProbabilityData or IgnoreProbabilityData.
//
// A VariantDataSource is not safe for concurrent use.
type VariantDataSource interface {
	// NumberOfSamples is the number of samples every variant carries.
	NumberOfSamples() uint32

	// TotalNumberOfSNPs reports the number of variants, if known.
	TotalNumberOfSNPs() (int, bool)

	// GetIdentifyingData returns the current variant, or ErrExhausted. The
	// returned value is owned by the source and valid until the variant is
	// consumed; callers that keep it must Clone it.
	GetIdentifyingData() (*VariantIdentifyingData, error)

	// ReadProbabilityData calls set for every sample in order, then moves to
	// the next variant.
	ReadProbabilityData(set GenotypeProbabilitySetter) error

	// IgnoreProbabilityData moves to the next variant without decoding.
	IgnoreProbabilityData() error

	// ResetToStart rewinds to the first variant.
	ResetToStart() error

	// Spec describes the source for diagnostics.
	Spec() string

	Close() error
}

// SingleShotSource is the minimal interface a format adapter implements:
// ReadIdentifyingData advances on every call. Cache turns a SingleShotSource
// into a VariantDataSource.
type SingleShotSource interface {
	NumberOfSamples() uint32
	TotalNumberOfSNPs() (int, bool)
	ReadIdentifyingData() (*VariantIdentifyingData, error)
	ReadProbabilityData(set GenotypeProbabilitySetter) error
	IgnoreProbabilityData() error
	ResetToStart() error
	Spec() string
	Close() error
}

// CursorState is the position of a source within the two-phase read.
type CursorState int

const (
	AwaitingIdentifyingData CursorState = iota
	IdentifyingDataRead
)

func (s CursorState) String() string {
	switch s {
	case AwaitingIdentifyingData:
		return "AwaitingIdentifyingData"
	case IdentifyingDataRead:
		return "IdentifyingDataRead"
	default:
		return "Illegal state"
	}
}

// cursor tracks the protocol state shared by every decorator.
type cursor struct {
	state CursorState
	read  int
}

func (c *cursor) identified() { c.state = IdentifyingDataRead }

// consume checks that identifying data was read and moves back to awaiting.
func (c *cursor) consume() error {
	if c.state != IdentifyingDataRead {
		return ErrProtocolViolation
	}
	c.state = AwaitingIdentifyingData
	c.read++
	return nil
}

func (c *cursor) reset() {
	c.state = AwaitingIdentifyingData
	c.read = 0
}

// State reports where the source is in the two-phase read.
func (c *cursor) State() CursorState { return c.state }

// NumberOfVariantsRead counts variants consumed since the last reset.
func (c *cursor) NumberOfVariantsRead() int { return c.read }

// ListVariants rewinds src, returns a copy of every variant's identifying
// data, and rewinds again.
func ListVariants(src VariantDataSource) ([]*VariantIdentifyingData, error) {
	if err := src.ResetToStart(); err != nil {
		return nil, err
	}
	var result []*VariantIdentifyingData
	if n, ok := src.TotalNumberOfSNPs(); ok {
		result = make([]*VariantIdentifyingData, 0, n)
	}
	err := EachVariant(src, func(id *VariantIdentifyingData) error {
		result = append(result, id.Clone())
		return src.IgnoreProbabilityData()
	})
	if err != nil {
		return nil, err
	}
	if err := src.ResetToStart(); err != nil {
		return nil, err
	}
	return result, nil
}

// EachVariant calls fn for every remaining variant of src. fn must consume
// the variant's probability data. Iteration stops at exhaustion or at the
// first error.
func EachVariant(src VariantDataSource, fn func(*VariantIdentifyingData) error) error {
	for {
		id, err := src.GetIdentifyingData()
		if errors.Is(err, ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
}

// ReadGenotypes reads the current variant's probabilities into buf, which is
// grown to NumberOfSamples entries and returned.
func ReadGenotypes(src VariantDataSource, buf []GenotypeProbabilities) ([]GenotypeProbabilities, error) {
	n := int(src.NumberOfSamples())
	if cap(buf) < n {
		buf = make([]GenotypeProbabilities, n)
	}
	buf = buf[:n]
	var outOfRange error
	err := src.ReadProbabilityData(func(i uint32, aa, ab, bb float64) {
		if int(i) >= n {
			if outOfRange == nil {
				outOfRange = fmt.Errorf("%s: sample index %d out of range [0,%d)", src.Spec(), i, n)
			}
			return
		}
		buf[i] = GenotypeProbabilities{AA: aa, AB: ab, BB: bb}
	})
	if err != nil {
		return buf, err
	}
	return buf, outOfRange
}
