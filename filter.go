package genfile

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
)

// Filter serves only the variants of a source that match a predicate.
type Filter struct {
	cursor
	source    VariantDataSource
	predicate Predicate

	// excluded holds the ordinals, within source, of rejected variants.
	excluded *roaring.Bitmap
	total    int
	ordinal  uint32
	current  *VariantIdentifyingData

	onFilteredOut func(id *VariantIdentifyingData)
	logger        *zap.Logger
}

// NewFilter scans source once to decide which variants predicate keeps,
// then resets it. The filter owns source.
func NewFilter(source VariantDataSource, predicate Predicate) (*Filter, error) {
	f := &Filter{
		source:    source,
		predicate: predicate,
		excluded:  roaring.New(),
		logger:    zap.NewNop(),
	}
	if err := source.ResetToStart(); err != nil {
		return nil, err
	}
	var ordinal uint32
	err := EachVariant(source, func(id *VariantIdentifyingData) error {
		if predicate.Match(id) {
			f.total++
		} else {
			f.excluded.Add(ordinal)
		}
		ordinal++
		return source.IgnoreProbabilityData()
	})
	if err != nil {
		return nil, err
	}
	if err := source.ResetToStart(); err != nil {
		return nil, err
	}
	return f, nil
}

// SetLogger sets the logger filtered-out variants are reported to.
func (f *Filter) SetLogger(logger *zap.Logger) {
	f.logger = logger
}

// OnFilteredOut registers fn to receive each variant the filter skips. The
// variant is only valid for the duration of the call.
func (f *Filter) OnFilteredOut(fn func(id *VariantIdentifyingData)) {
	f.onFilteredOut = fn
}

// NumberOfExcluded is the number of variants the predicate rejected.
func (f *Filter) NumberOfExcluded() int { return int(f.excluded.GetCardinality()) }

func (f *Filter) NumberOfSamples() uint32 { return f.source.NumberOfSamples() }

func (f *Filter) TotalNumberOfSNPs() (int, bool) { return f.total, true }

func (f *Filter) GetIdentifyingData() (*VariantIdentifyingData, error) {
	if f.state == IdentifyingDataRead {
		return f.current, nil
	}
	for {
		id, err := f.source.GetIdentifyingData()
		if err != nil {
			return nil, err
		}
		if !f.excluded.Contains(f.ordinal) {
			f.current = id
			f.identified()
			return id, nil
		}
		f.logger.Debug("variant filtered out",
			zap.String("variant", id.String()),
			zap.String("predicate", f.predicate.String()),
		)
		if f.onFilteredOut != nil {
			f.onFilteredOut(id)
		}
		if err := f.source.IgnoreProbabilityData(); err != nil {
			return nil, err
		}
		f.ordinal++
	}
}

func (f *Filter) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if err := f.consume(); err != nil {
		return err
	}
	f.ordinal++
	f.current = nil
	return f.source.ReadProbabilityData(set)
}

func (f *Filter) IgnoreProbabilityData() error {
	if err := f.consume(); err != nil {
		return err
	}
	f.ordinal++
	f.current = nil
	return f.source.IgnoreProbabilityData()
}

func (f *Filter) ResetToStart() error {
	f.reset()
	f.ordinal = 0
	f.current = nil
	return f.source.ResetToStart()
}

func (f *Filter) Spec() string {
	return "filtered:" + f.source.Spec()
}

// Summary describes the predicate and how many variants it kept.
func (f *Filter) Summary() string {
	return fmt.Sprintf("%s: kept %d, excluded %d", f.predicate, f.total, f.NumberOfExcluded())
}

func (f *Filter) Close() error { return f.source.Close() }
