package bgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/genfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quantum = 1.0 / 65535

type testVariant struct {
	id    *genfile.VariantIdentifyingData
	probs []genfile.GenotypeProbabilities
}

func variantAt(chrom genfile.Chromosome, pos uint32, nSamples int, alleles ...string) testVariant {
	if len(alleles) == 0 {
		alleles = []string{"A", "G"}
	}
	id := genfile.NewVariantWithSNPID(fmt.Sprintf("S%d", pos), fmt.Sprintf("rs%d", pos), genfile.NewGenomePosition(chrom, pos), alleles...)
	probs := make([]genfile.GenotypeProbabilities, nSamples)
	for i := range probs {
		v := float64(int(pos)%97+i) / 200
		probs[i] = genfile.GenotypeProbabilities{AA: v, AB: 0.5 - v/2, BB: 0.25}
	}
	return testVariant{id: id, probs: probs}
}

func writeBGEN(t *testing.T, path string, opts SinkOptions, variants ...testVariant) {
	t.Helper()
	sink, err := NewSink(path, opts)
	require.NoError(t, err)
	for _, v := range variants {
		require.NoError(t, sink.WriteVariant(v.id, v.probs))
	}
	require.NoError(t, sink.Close())
}

func readAll(t *testing.T, src genfile.VariantDataSource) []testVariant {
	t.Helper()
	var out []testVariant
	require.NoError(t, genfile.EachVariant(src, func(id *genfile.VariantIdentifyingData) error {
		probs, err := genfile.ReadGenotypes(src, nil)
		out = append(out, testVariant{id: id.Clone(), probs: probs})
		return err
	}))
	return out
}

func assertSameVariants(t *testing.T, want, got []testVariant, tolerance float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].id.Equal(got[i].id), "variant %d: want %v, got %v", i, want[i].id, got[i].id)
		require.Len(t, got[i].probs, len(want[i].probs))
		for j, p := range want[i].probs {
			assert.InDelta(t, p.AA, got[i].probs[j].AA, tolerance)
			assert.InDelta(t, p.AB, got[i].probs[j].AB, tolerance)
			assert.InDelta(t, p.BB, got[i].probs[j].BB, tolerance)
		}
	}
}

func TestTwoVariantThreeSampleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.bgen")
	first := testVariant{
		id: genfile.NewVariantWithSNPID("S1", "rs1", genfile.NewGenomePosition("1", 1000), "A", "G"),
		probs: []genfile.GenotypeProbabilities{
			{AA: 1, AB: 0, BB: 0},
			{AA: 0, AB: 1, BB: 0},
			{AA: 0, AB: 0, BB: 1},
		},
	}
	second := variantAt("1", 2000, 3)
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 3, Flags: Flags(0).WithLayout(LayoutV11)}, first, second)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	n, known := src.TotalNumberOfSNPs()
	assert.True(t, known)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 3, src.NumberOfSamples())

	id, err := src.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs1", id.RSID().String())
	assert.True(t, id.Position().Equal(genfile.NewGenomePosition("1", 1000)))
	assert.Equal(t, "A", id.Allele(0).String())
	assert.Equal(t, "G", id.Allele(1).String())

	var values []float64
	require.NoError(t, src.ReadProbabilityData(func(i uint32, aa, ab, bb float64) {
		values = append(values, aa, ab, bb)
	}))
	want := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	require.Len(t, values, len(want))
	for i := range want {
		assert.InDelta(t, want[i], values[i], quantum)
	}

	_, err = src.GetIdentifyingData()
	require.NoError(t, err)
	require.NoError(t, src.IgnoreProbabilityData())

	_, err = src.GetIdentifyingData()
	assert.ErrorIs(t, err, genfile.ErrExhausted)
	_, err = src.GetIdentifyingData()
	assert.ErrorIs(t, err, genfile.ErrExhausted)
}

func TestRoundTripV11(t *testing.T) {
	variants := []testVariant{
		variantAt("01", 100, 5),
		variantAt("02", 200, 5, "AT", "GCC"),
		variantAt("0X", 300, 5, "C", "T"),
	}
	for _, compressed := range []bool{false, true} {
		t.Run(fmt.Sprintf("compressed=%v", compressed), func(t *testing.T) {
			flags := Flags(0).WithLayout(LayoutV11)
			if compressed {
				flags |= FlagCompressed
			}
			path := filepath.Join(t.TempDir(), "roundtrip.bgen")
			writeBGEN(t, path, SinkOptions{NumberOfSamples: 5, FreeData: "free", Flags: flags}, variants...)

			src, err := OpenSource(context.Background(), path, genfile.Options{})
			require.NoError(t, err)
			defer src.Close()
			assert.Equal(t, "free", src.Header().FreeData)
			assert.Equal(t, compressed, src.Header().Flags.Compressed())
			assert.Equal(t, MagicNumber, string(src.Header().Magic[:]))

			cached := genfile.Cache(src)
			assertSameVariants(t, variants, readAll(t, cached), quantum)

			require.NoError(t, cached.ResetToStart())
			assertSameVariants(t, variants, readAll(t, cached), quantum)
		})
	}
}

func TestRoundTripV10(t *testing.T) {
	variants := []testVariant{
		variantAt("01", 100, 2),
		variantAt("22", 200, 2),
	}
	path := filepath.Join(t.TempDir(), "v10.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 2, Flags: FlagCompressed}, variants...)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()
	assertSameVariants(t, variants, readAll(t, src), 1.0/10000)
}

func TestV10MultiCharacterAlleles(t *testing.T) {
	variants := []testVariant{variantAt("03", 5, 1, "ACGT", "A")}
	path := filepath.Join(t.TempDir(), "multi.bgen")

	sink, err := NewSink(path, SinkOptions{NumberOfSamples: 1})
	require.NoError(t, err)
	err = sink.WriteVariant(variants[0].id, variants[0].probs)
	var unsupported *genfile.OperationUnsupportedError
	assert.ErrorAs(t, err, &unsupported)
	require.NoError(t, sink.Close())

	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: FlagMultiCharacterAlleles}, variants...)
	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()
	assertSameVariants(t, variants, readAll(t, src), 1.0/10000)
}

func TestSampleIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.bgen")
	writeBGEN(t, path, SinkOptions{
		NumberOfSamples: 2,
		SampleIDs:       []string{"alice", "bob"},
		Flags:           DefaultFlags,
	}, variantAt("01", 1, 2))

	src, err := OpenSource(context.Background(), path, genfile.Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.True(t, src.Header().Flags.HasSampleIdentifiers())
	assert.Equal(t, []string{"alice", "bob"}, SampleIDs(src.Samples()))
	assert.Len(t, readAll(t, genfile.Cache(src)), 1)

	_, err = NewSink(filepath.Join(t.TempDir(), "bad.bgen"), SinkOptions{NumberOfSamples: 3, SampleIDs: []string{"x"}})
	var mismatch *genfile.InconsistentSampleCountError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSinkRejectsWrongSampleCount(t *testing.T) {
	sink, err := NewSink(filepath.Join(t.TempDir(), "short.bgen"), SinkOptions{NumberOfSamples: 3, Flags: DefaultFlags})
	require.NoError(t, err)
	defer sink.Close()
	v := variantAt("01", 1, 2)
	err = sink.WriteVariant(v.id, v.probs)
	var mismatch *genfile.InconsistentSampleCountError
	assert.ErrorAs(t, err, &mismatch)
	assert.Zero(t, sink.NumberOfVariants())
}

func TestSinkClampsOrRejects(t *testing.T) {
	v := variantAt("01", 1, 1)
	v.probs[0] = genfile.GenotypeProbabilities{AA: 1.2, AB: -0.1, BB: 0.5}

	path := filepath.Join(t.TempDir(), "clamped.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags}, v)
	src, err := OpenFile(path)
	require.NoError(t, err)
	got := readAll(t, src)
	require.NoError(t, src.Close())
	require.Len(t, got, 1)
	assert.InDelta(t, 1, got[0].probs[0].AA, quantum)
	assert.InDelta(t, 0, got[0].probs[0].AB, quantum)

	sink, err := NewSink(filepath.Join(t.TempDir(), "strict.bgen"), SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags, Strict: true})
	require.NoError(t, err)
	defer sink.Close()
	assert.ErrorIs(t, sink.WriteVariant(v.id, v.probs), ErrProbabilityOutOfRange)
}

func TestSourceProtocolViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags}, variantAt("01", 1, 1))
	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	assert.ErrorIs(t, src.IgnoreProbabilityData(), genfile.ErrProtocolViolation)
	assert.ErrorIs(t, src.ReadProbabilityData(func(uint32, float64, float64, float64) {}), genfile.ErrProtocolViolation)
}

func TestTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "full.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 4, Flags: DefaultFlags}, variantAt("01", 1, 4), variantAt("01", 2, 4))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	t.Run("mid block", func(t *testing.T) {
		short := filepath.Join(dir, "short.bgen")
		require.NoError(t, os.WriteFile(short, data[:len(data)-3], 0644))
		src, err := OpenFile(short)
		require.NoError(t, err)
		defer src.Close()
		err = genfile.EachVariant(src, func(*genfile.VariantIdentifyingData) error {
			return src.IgnoreProbabilityData()
		})
		var malformed *genfile.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, short, malformed.Source)
		assert.Greater(t, malformed.Offset, int64(0))
	})

	t.Run("missing variant", func(t *testing.T) {
		// Keep the header's count of two but drop the second block.
		first := firstBlockEnd(t, path)
		require.Less(t, first, len(data))
		short := filepath.Join(dir, "one.bgen")
		require.NoError(t, os.WriteFile(short, data[:first], 0644))

		cached, err := OpenFile(short)
		require.NoError(t, err)
		defer cached.Close()
		_, err = cached.GetIdentifyingData()
		require.NoError(t, err)
		require.NoError(t, cached.IgnoreProbabilityData())
		_, err = cached.GetIdentifyingData()
		var malformed *genfile.MalformedInputError
		require.ErrorAs(t, err, &malformed)
		assert.False(t, errors.Is(err, genfile.ErrExhausted))
	})

	t.Run("header", func(t *testing.T) {
		short := filepath.Join(dir, "header.bgen")
		require.NoError(t, os.WriteFile(short, data[:10], 0644))
		_, err := OpenFile(short)
		var malformed *genfile.MalformedInputError
		assert.ErrorAs(t, err, &malformed)
	})
}

func firstBlockEnd(t *testing.T, path string) int {
	t.Helper()
	src, err := OpenSource(context.Background(), path, genfile.Options{})
	require.NoError(t, err)
	defer src.Close()
	_, err = src.ReadIdentifyingData()
	require.NoError(t, err)
	require.NoError(t, src.IgnoreProbabilityData())
	return int(src.f.offset)
}

func TestBadMagicAndOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags}, variantAt("01", 1, 1))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	copy(bad[16:20], "nope")
	badPath := filepath.Join(dir, "magic.bgen")
	require.NoError(t, os.WriteFile(badPath, bad, 0644))
	_, err = OpenFile(badPath)
	var malformed *genfile.MalformedInputError
	assert.ErrorAs(t, err, &malformed)

	zero := append([]byte(nil), data...)
	copy(zero[16:20], []byte{0, 0, 0, 0})
	zeroPath := filepath.Join(dir, "zero.bgen")
	require.NoError(t, os.WriteFile(zeroPath, zero, 0644))
	src, err := OpenFile(zeroPath)
	require.NoError(t, err)
	assert.Len(t, readAll(t, src), 1)
	src.Close()

	inside := append([]byte(nil), data...)
	require.NoError(t, PutUintLE(inside, 8, 4))
	insidePath := filepath.Join(dir, "inside.bgen")
	require.NoError(t, os.WriteFile(insidePath, inside, 0644))
	_, err = OpenFile(insidePath)
	assert.ErrorAs(t, err, &malformed)
}

func TestOffsetGapIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.bgen")
	want := []testVariant{variantAt("01", 1, 1)}
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags}, want...)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	offset, err := ReadUintLE(data, 4)
	require.NoError(t, err)
	gapped := append([]byte(nil), data[:4+offset]...)
	gapped = append(gapped, "padding!"...)
	gapped = append(gapped, data[4+offset:]...)
	require.NoError(t, PutUintLE(gapped, offset+8, 4))
	gapPath := filepath.Join(dir, "gap.bgen")
	require.NoError(t, os.WriteFile(gapPath, gapped, 0644))

	src, err := OpenFile(gapPath)
	require.NoError(t, err)
	defer src.Close()
	assertSameVariants(t, want, readAll(t, src), quantum)
	require.NoError(t, src.ResetToStart())
	assertSameVariants(t, want, readAll(t, src), quantum)
}

func TestOpenRegistersBGEN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.bgen")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 1, Flags: DefaultFlags}, variantAt("01", 1, 1))

	name, err := genfile.DetectFileType(path)
	require.NoError(t, err)
	assert.Equal(t, "bgen", name)

	src, err := genfile.Open(context.Background(), path, genfile.Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "bgen:"+path, src.Spec())
	assert.Len(t, readAll(t, src), 1)
}

func TestWriteFromSourceChain(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bgen")
	b := filepath.Join(dir, "b.bgen")
	va := []testVariant{variantAt("01", 1, 2), variantAt("01", 2, 2)}
	vb := []testVariant{variantAt("02", 1, 2)}
	writeBGEN(t, a, SinkOptions{NumberOfSamples: 2, Flags: DefaultFlags}, va...)
	writeBGEN(t, b, SinkOptions{NumberOfSamples: 2, Flags: DefaultFlags}, vb...)

	src, err := genfile.OpenAll(context.Background(), []string{a, b}, genfile.Options{})
	require.NoError(t, err)
	defer src.Close()
	n, known := src.TotalNumberOfSNPs()
	assert.True(t, known)
	assert.Equal(t, 3, n)

	out := filepath.Join(dir, "out.bgen")
	sink, err := NewSink(out, SinkOptions{NumberOfSamples: 2, Flags: DefaultFlags})
	require.NoError(t, err)
	written, err := WriteFromSource(sink, src)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, 3, written)

	merged, err := OpenFile(out)
	require.NoError(t, err)
	defer merged.Close()
	assertSameVariants(t, append(va, vb...), readAll(t, merged), quantum)

	wrong, err := NewSink(filepath.Join(dir, "wrong.bgen"), SinkOptions{NumberOfSamples: 5, Flags: DefaultFlags})
	require.NoError(t, err)
	defer wrong.Close()
	_, err = WriteFromSource(wrong, src)
	var mismatch *genfile.InconsistentSampleCountError
	assert.ErrorAs(t, err, &mismatch)
}
