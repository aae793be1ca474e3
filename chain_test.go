package genfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainConcatenatesInOrder(t *testing.T) {
	s1 := mustMemorySource(t, "a", 2, 10, 20)
	empty := mustMemorySource(t, "empty", 2)
	s2 := mustMemorySource(t, "b", 2, 5, 30, 40)

	chain, err := NewChain(s1, empty, s2)
	require.NoError(t, err)

	total, ok := chain.TotalNumberOfSNPs()
	require.True(t, ok)
	assert.Equal(t, 5, total)
	assert.Equal(t, uint32(2), chain.NumberOfSamples())
	assert.Equal(t, "chain:memory:a,memory:empty,memory:b", chain.Spec())

	var changes []int
	chain.OnSourceChange(func(i int) { changes = append(changes, i) })

	assert.Equal(t, []string{"rs10", "rs20", "rs5", "rs30", "rs40"}, collectRSIDs(t, chain))
	assert.Equal(t, []int{1, 2, 3}, changes)

	_, err = chain.GetIdentifyingData()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 5, chain.NumberOfVariantsRead())

	require.NoError(t, chain.ResetToStart())
	assert.Equal(t, []string{"rs10", "rs20", "rs5", "rs30", "rs40"}, collectRSIDs(t, chain))
}

func TestChainForwardsProbabilities(t *testing.T) {
	s1 := mustMemorySource(t, "a", 2, 10)
	s2 := mustMemorySource(t, "b", 2, 20)
	chain, err := NewChain(s1, s2)
	require.NoError(t, err)

	direct := testRecords(2, 20)[0].Probabilities

	_, err = chain.GetIdentifyingData()
	require.NoError(t, err)
	require.NoError(t, chain.IgnoreProbabilityData())

	id, err := chain.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs20", id.RSID().String())
	got, err := ReadGenotypes(chain, nil)
	require.NoError(t, err)
	assert.Equal(t, direct, got)
}

func TestChainRejectsMismatchedSamples(t *testing.T) {
	_, err := NewChain(mustMemorySource(t, "a", 2, 10), mustMemorySource(t, "b", 3, 10))

	var mismatch *InconsistentSampleCountError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.SourceIndex)
	assert.Equal(t, uint32(2), mismatch.Expected)
	assert.Equal(t, uint32(3), mismatch.Got)
}

func TestChainUnknownTotal(t *testing.T) {
	known := mustMemorySource(t, "a", 1, 10)
	unknown := &unknownCountSource{mustMemorySource(t, "b", 1, 20)}
	chain, err := NewChain(known, unknown)
	require.NoError(t, err)

	_, ok := chain.TotalNumberOfSNPs()
	assert.False(t, ok)
	assert.Contains(t, chain.Summary("  "), "not computed")
}

func TestChainProtocolViolation(t *testing.T) {
	chain, err := NewChain(mustMemorySource(t, "a", 1, 10))
	require.NoError(t, err)
	assert.ErrorIs(t, chain.IgnoreProbabilityData(), ErrProtocolViolation)
}

// unknownCountSource hides the wrapped source's variant count.
type unknownCountSource struct {
	VariantDataSource
}

func (unknownCountSource) TotalNumberOfSNPs() (int, bool) { return 0, false }
