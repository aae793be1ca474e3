package genfile

// CachingSource remembers the identifying data of the current variant until
// its probability data is consumed, so a SingleShotSource can be read
// idempotently.
type CachingSource struct {
	cursor
	source SingleShotSource
	cached *VariantIdentifyingData
}

// Cache wraps source so that GetIdentifyingData may be called repeatedly.
// The CachingSource owns source from here on.
func Cache(source SingleShotSource) *CachingSource {
	return &CachingSource{source: source}
}

func (c *CachingSource) NumberOfSamples() uint32 { return c.source.NumberOfSamples() }

func (c *CachingSource) TotalNumberOfSNPs() (int, bool) { return c.source.TotalNumberOfSNPs() }

func (c *CachingSource) GetIdentifyingData() (*VariantIdentifyingData, error) {
	if c.state == IdentifyingDataRead {
		return c.cached, nil
	}
	id, err := c.source.ReadIdentifyingData()
	if err != nil {
		return nil, err
	}
	c.cached = id
	c.identified()
	return id, nil
}

func (c *CachingSource) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if err := c.consume(); err != nil {
		return err
	}
	c.cached = nil
	return c.source.ReadProbabilityData(set)
}

func (c *CachingSource) IgnoreProbabilityData() error {
	if err := c.consume(); err != nil {
		return err
	}
	c.cached = nil
	return c.source.IgnoreProbabilityData()
}

func (c *CachingSource) ResetToStart() error {
	c.reset()
	c.cached = nil
	return c.source.ResetToStart()
}

func (c *CachingSource) Spec() string { return c.source.Spec() }

func (c *CachingSource) Close() error { return c.source.Close() }

// Unwrap returns the wrapped source.
func (c *CachingSource) Unwrap() SingleShotSource { return c.source }
