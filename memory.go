package genfile

import (
	"fmt"
)

// Record is one variant with its per-sample probabilities.
type Record struct {
	ID            *VariantIdentifyingData
	Probabilities []GenotypeProbabilities
}

// MemorySource serves a fixed list of records. It is a SingleShotSource;
// wrap it with Cache, or use NewMemorySource which does so.
type MemorySource struct {
	name     string
	nSamples uint32
	records  []Record
	next     int
}

// NewMemorySource returns a cached source over records, each of which must
// carry nSamples probabilities.
func NewMemorySource(name string, nSamples uint32, records []Record) (*CachingSource, error) {
	for i, r := range records {
		if len(r.Probabilities) != int(nSamples) {
			return nil, &MalformedInputError{
				Source: name,
				Offset: int64(i),
				Reason: fmt.Sprintf("record has %d samples, expected %d", len(r.Probabilities), nSamples),
			}
		}
	}
	return Cache(&MemorySource{name: name, nSamples: nSamples, records: records}), nil
}

func (m *MemorySource) NumberOfSamples() uint32 { return m.nSamples }

func (m *MemorySource) TotalNumberOfSNPs() (int, bool) { return len(m.records), true }

func (m *MemorySource) ReadIdentifyingData() (*VariantIdentifyingData, error) {
	if m.next >= len(m.records) {
		return nil, ErrExhausted
	}
	return m.records[m.next].ID, nil
}

func (m *MemorySource) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if m.next >= len(m.records) {
		return ErrProtocolViolation
	}
	for i, p := range m.records[m.next].Probabilities {
		set(uint32(i), p.AA, p.AB, p.BB)
	}
	m.next++
	return nil
}

func (m *MemorySource) IgnoreProbabilityData() error {
	if m.next >= len(m.records) {
		return ErrProtocolViolation
	}
	m.next++
	return nil
}

func (m *MemorySource) ResetToStart() error {
	m.next = 0
	return nil
}

func (m *MemorySource) Spec() string { return "memory:" + m.name }

func (m *MemorySource) Close() error { return nil }
