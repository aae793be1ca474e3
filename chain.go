package genfile

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Chain concatenates sources that share the same samples. Variants are read
// from each source in turn.
type Chain struct {
	cursor
	sources  []VariantDataSource
	current  int
	nSamples uint32

	onSourceChange func(index int)
	logger         *zap.Logger
}

// NewChain builds a chain over sources, resetting each one. All sources must
// report the same number of samples. The chain owns the sources.
func NewChain(sources ...VariantDataSource) (*Chain, error) {
	c := &Chain{logger: zap.NewNop()}
	for _, s := range sources {
		if err := c.AddSource(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetLogger sets the logger used to report source changes.
func (c *Chain) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

// OnSourceChange registers fn to be called with the new source index
// whenever the chain moves on to the next source.
func (c *Chain) OnSourceChange(fn func(index int)) {
	c.onSourceChange = fn
}

// AddSource appends source to the chain and resets it.
func (c *Chain) AddSource(source VariantDataSource) error {
	if len(c.sources) == 0 {
		c.nSamples = source.NumberOfSamples()
	} else if got := source.NumberOfSamples(); got != c.nSamples {
		return &InconsistentSampleCountError{SourceIndex: len(c.sources), Expected: c.nSamples, Got: got}
	}
	if err := source.ResetToStart(); err != nil {
		return err
	}
	c.sources = append(c.sources, source)
	return nil
}

func (c *Chain) NumberOfSamples() uint32 { return c.nSamples }

func (c *Chain) NumberOfSources() int { return len(c.sources) }

// Source returns the i'th source.
func (c *Chain) Source(i int) VariantDataSource { return c.sources[i] }

// SourceSNPCount reports the number of variants in the i'th source, if known.
func (c *Chain) SourceSNPCount(i int) (int, bool) {
	return c.sources[i].TotalNumberOfSNPs()
}

// CurrentSource is the index of the source currently being read.
func (c *Chain) CurrentSource() int { return c.current }

func (c *Chain) TotalNumberOfSNPs() (int, bool) {
	total := 0
	for _, s := range c.sources {
		n, ok := s.TotalNumberOfSNPs()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (c *Chain) GetIdentifyingData() (*VariantIdentifyingData, error) {
	for c.current < len(c.sources) {
		id, err := c.sources[c.current].GetIdentifyingData()
		if err == nil {
			c.identified()
			return id, nil
		}
		if !errors.Is(err, ErrExhausted) {
			return nil, err
		}
		c.moveToNextSource()
	}
	return nil, ErrExhausted
}

func (c *Chain) moveToNextSource() {
	c.current++
	c.logger.Debug("chain moved to next source",
		zap.Int("index", c.current),
		zap.Int("sources", len(c.sources)),
	)
	if c.onSourceChange != nil {
		c.onSourceChange(c.current)
	}
}

func (c *Chain) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if err := c.consume(); err != nil {
		return err
	}
	return c.sources[c.current].ReadProbabilityData(set)
}

func (c *Chain) IgnoreProbabilityData() error {
	if err := c.consume(); err != nil {
		return err
	}
	return c.sources[c.current].IgnoreProbabilityData()
}

func (c *Chain) ResetToStart() error {
	for _, s := range c.sources {
		if err := s.ResetToStart(); err != nil {
			return err
		}
	}
	c.current = 0
	c.reset()
	return nil
}

func (c *Chain) Spec() string {
	specs := make([]string, len(c.sources))
	for i, s := range c.sources {
		specs[i] = s.Spec()
	}
	return "chain:" + strings.Join(specs, ",")
}

// Summary describes each source and the totals, one line each, with every
// line starting with prefix.
func (c *Chain) Summary(prefix string) string {
	var b strings.Builder
	for i, s := range c.sources {
		if n, ok := c.SourceSNPCount(i); ok {
			fmt.Fprintf(&b, "%s (%7d snps)  %q\n", prefix, n, s.Spec())
		} else {
			fmt.Fprintf(&b, "%s (not computed)  %q\n", prefix, s.Spec())
		}
	}
	if total, ok := c.TotalNumberOfSNPs(); ok {
		fmt.Fprintf(&b, "%s (total %d snps in %d sources).\n", prefix, total, len(c.sources))
	} else {
		fmt.Fprintf(&b, "%s (total %d sources, number of snps not computed).\n", prefix, len(c.sources))
	}
	fmt.Fprintf(&b, "%sNumber of samples: %d\n", prefix, c.nSamples)
	return b.String()
}

// Close closes every source and returns the first error.
func (c *Chain) Close() error {
	var first error
	for _, s := range c.sources {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
