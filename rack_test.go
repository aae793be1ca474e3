package genfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(rsid string, pos uint32, probs []GenotypeProbabilities, alleles ...string) Record {
	return Record{
		ID:            NewVariantIdentifyingData(rsid, NewGenomePosition("1", pos), alleles...),
		Probabilities: probs,
	}
}

func TestRackJoinsSharedPositions(t *testing.T) {
	s1 := mustMemorySource(t, "a", 2, 10, 20, 30)
	s2 := mustMemorySource(t, "b", 3, 10, 15, 20, 30)
	direct := testRecords(3, 10, 15, 20, 30)

	rack, err := NewRack([]VariantDataSource{s1, s2})
	require.NoError(t, err)

	assert.Equal(t, uint32(5), rack.NumberOfSamples())
	total, ok := rack.TotalNumberOfSNPs()
	require.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, uint32(2), rack.SampleOffset(1))
	assert.Equal(t, "rack:memory:a,memory:b", rack.Spec())

	id, err := rack.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs10", id.RSID().String())
	require.NoError(t, rack.IgnoreProbabilityData())

	id, err = rack.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs20", id.RSID().String())

	got, err := ReadGenotypes(rack, nil)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for j := 0; j < 3; j++ {
		assert.Equal(t, direct[2].Probabilities[j], got[2+j], "sample %d of second source", j)
	}
	assert.Equal(t, testRecords(2, 10, 20, 30)[1].Probabilities, got[:2])

	id, err = rack.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs30", id.RSID().String())
	require.NoError(t, rack.IgnoreProbabilityData())

	_, err = rack.GetIdentifyingData()
	assert.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, rack.ResetToStart())
	assert.Equal(t, []string{"rs10", "rs20", "rs30"}, collectRSIDs(t, rack))
}

func TestRackMismatch(t *testing.T) {
	p := []GenotypeProbabilities{{AA: 1}}
	s1, err := NewMemorySource("a", 1, []Record{
		record("rs10", 10, p, "A", "G"),
		record("rs20", 20, p, "A", "G"),
	})
	require.NoError(t, err)
	s2, err := NewMemorySource("b", 1, []Record{
		record("rs10", 10, p, "A", "G"),
		record("rsOther", 20, p, "A", "G"),
	})
	require.NoError(t, err)

	rack, err := NewRack([]VariantDataSource{s1, s2})
	require.NoError(t, err)

	_, err = rack.GetIdentifyingData()
	require.NoError(t, err)
	require.NoError(t, rack.IgnoreProbabilityData())

	_, err = rack.GetIdentifyingData()
	var mismatch *SNPMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.SourceIndex)
	assert.True(t, mismatch.Position.Equal(NewGenomePosition("1", 20)))
}

func TestRackMissing(t *testing.T) {
	p := []GenotypeProbabilities{{AA: 1}}
	s1, err := NewMemorySource("a", 1, []Record{
		record("rsA", 20, p, "A", "G"),
		record("rsB", 20, p, "A", "G"),
	})
	require.NoError(t, err)
	s2, err := NewMemorySource("b", 1, []Record{
		record("rsB", 20, p, "A", "G"),
		record("rsA", 20, p, "A", "G"),
	})
	require.NoError(t, err)

	rack, err := NewRack([]VariantDataSource{s1, s2})
	require.NoError(t, err)
	total, _ := rack.TotalNumberOfSNPs()
	assert.Equal(t, 2, total)

	id, err := rack.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rsA", id.RSID().String())
	require.NoError(t, rack.IgnoreProbabilityData())

	_, err = rack.GetIdentifyingData()
	var missing *MissingSNPError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, missing.SourceIndex)
}

func TestRackFlipsAlleles(t *testing.T) {
	s1, err := NewMemorySource("a", 1, []Record{
		record("rs10", 10, []GenotypeProbabilities{{AA: 0.7, AB: 0.2, BB: 0.1}}, "A", "G"),
	})
	require.NoError(t, err)
	s2, err := NewMemorySource("b", 1, []Record{
		record("rs10", 10, []GenotypeProbabilities{{AA: 0.6, AB: 0.3, BB: 0.1}}, "G", "A"),
	})
	require.NoError(t, err)

	c := MustCompareFields("position,rsid,alleles")
	c.FlipAlleles = true
	rack, err := NewRack([]VariantDataSource{s1, s2}, WithComparator(c))
	require.NoError(t, err)

	_, err = rack.GetIdentifyingData()
	require.NoError(t, err)
	got, err := ReadGenotypes(rack, nil)
	require.NoError(t, err)
	assert.Equal(t, GenotypeProbabilities{AA: 0.7, AB: 0.2, BB: 0.1}, got[0])
	assert.Equal(t, GenotypeProbabilities{AA: 0.1, AB: 0.3, BB: 0.6}, got[1])
}

func TestRackRejectsUnsortedSource(t *testing.T) {
	s1 := mustMemorySource(t, "a", 1, 10, 20)
	s2 := mustMemorySource(t, "b", 1, 20, 10)

	_, err := NewRack([]VariantDataSource{s1, s2})
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "memory:b", malformed.Source)
}

func TestRackComparatorMustStartWithPosition(t *testing.T) {
	_, err := NewRack(
		[]VariantDataSource{mustMemorySource(t, "a", 1, 10)},
		WithComparator(MustCompareFields("rsid,position")),
	)
	assert.Error(t, err)
}
