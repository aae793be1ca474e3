package genfile

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genFixture = "S1 rs1 1000 A G 1 0 0 0 1 0\n" +
	"S2 rs2 2000 C T 0.25 0.5 0.25 0 0 1\n"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGENSourceReads(t *testing.T) {
	path := writeFile(t, "test.gen", []byte(genFixture))

	src, err := Open(context.Background(), path, Options{Chromosome: "01"})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, uint32(2), src.NumberOfSamples())
	total, ok := src.TotalNumberOfSNPs()
	require.True(t, ok)
	assert.Equal(t, 2, total)

	id, err := src.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs1 [S1] 01 1000 A G", id.String())

	probs, err := ReadGenotypes(src, nil)
	require.NoError(t, err)
	assert.Equal(t, []GenotypeProbabilities{{AA: 1}, {AB: 1}}, probs)

	id, err = src.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs2", id.RSID().String())
	probs, err = ReadGenotypes(src, probs)
	require.NoError(t, err)
	assert.Equal(t, GenotypeProbabilities{AA: 0.25, AB: 0.5, BB: 0.25}, probs[0])

	_, err = src.GetIdentifyingData()
	assert.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, src.ResetToStart())
	assert.Equal(t, []string{"rs1", "rs2"}, collectRSIDs(t, src))
}

func TestGENSourceChromosomeColumn(t *testing.T) {
	path := writeFile(t, "chr.gen", []byte("chr7 S1 rs1 1000 A G 1 0 0\n"))

	src, err := OpenGEN(context.Background(), path, Options{})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, uint32(1), src.NumberOfSamples())
	id, err := src.ReadIdentifyingData()
	require.NoError(t, err)
	assert.True(t, id.Position().Equal(NewGenomePosition("07", 1000)))
}

func TestGENSourceRepeatedWhitespace(t *testing.T) {
	path := writeFile(t, "spaced.gen", []byte("S1 rs1 100 A G  1 0 0\r\n\tS2\t\trs2 200 C T 0  1 0 \n"))

	src, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, uint32(1), src.NumberOfSamples())

	id, err := src.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), id.Position().Position)
	assert.Equal(t, "G", id.Allele(1).String())
	probs, err := ReadGenotypes(src, nil)
	require.NoError(t, err)
	assert.Equal(t, []GenotypeProbabilities{{AA: 1}}, probs)

	id, err = src.GetIdentifyingData()
	require.NoError(t, err)
	assert.Equal(t, "rs2", id.RSID().String())
	assert.Equal(t, "S2", id.SNPID().String())
	probs, err = ReadGenotypes(src, probs)
	require.NoError(t, err)
	assert.Equal(t, []GenotypeProbabilities{{AB: 1}}, probs)
}

func TestGENSourceMalformedLine(t *testing.T) {
	path := writeFile(t, "bad.gen", []byte(genFixture+"S3 rs3 3000 A G 1 0\n"))

	src, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer src.Close()

	var err2 error
	for err2 == nil {
		_, err2 = src.GetIdentifyingData()
		if err2 == nil {
			require.NoError(t, src.IgnoreProbabilityData())
		}
	}
	var malformed *MalformedInputError
	require.ErrorAs(t, err2, &malformed)
	assert.Equal(t, 3, malformed.Line)
	assert.Equal(t, 7, malformed.Column)
}

func TestGENSourceBadProbability(t *testing.T) {
	path := writeFile(t, "bad.gen", []byte("S1 rs1 1000 A G 1 x 0\n"))

	src, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer src.Close()

	_, err = src.GetIdentifyingData()
	require.NoError(t, err)
	_, err = ReadGenotypes(src, nil)
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, malformed.Line)
	assert.Equal(t, 7, malformed.Column)
}

func compressWith(t *testing.T, c Compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionZStandard:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case CompressionLZ4:
		w = lz4.NewWriter(&buf)
	default:
		t.Fatalf("no writer for %s", c)
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestGENSourceCompressedInputs(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    Compression
	}{
		{"test.gen.gz", CompressionGzip},
		{"test.gen.zst", CompressionZStandard},
		{"test.gen.lz4", CompressionLZ4},
	} {
		t.Run(tc.c.String(), func(t *testing.T) {
			path := writeFile(t, tc.name, compressWith(t, tc.c, []byte(genFixture)))

			src, err := Open(context.Background(), path, Options{})
			require.NoError(t, err)
			defer src.Close()

			total, ok := src.TotalNumberOfSNPs()
			require.True(t, ok)
			assert.Equal(t, 2, total)
			assert.Equal(t, []string{"rs1", "rs2"}, collectRSIDs(t, src))

			// Compressed inputs rewind by reopening.
			require.NoError(t, src.ResetToStart())
			assert.Equal(t, []string{"rs1", "rs2"}, collectRSIDs(t, src))
		})
	}
}

func TestDetectFileType(t *testing.T) {
	name, err := DetectFileType("/data/chr1.gen.gz")
	require.NoError(t, err)
	assert.Equal(t, "gen", name)

	_, err = DetectFileType("/data/chr1.vcf")
	var unsupported *OperationUnsupportedError
	assert.ErrorAs(t, err, &unsupported)

	_, err = Open(context.Background(), "/data/x", Options{FileType: "plink"})
	assert.ErrorAs(t, err, &unsupported)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "absent.gen"), Options{})
	var resource *ResourceError
	assert.ErrorAs(t, err, &resource)
}

func TestOpenAllChainsPaths(t *testing.T) {
	a := writeFile(t, "a.gen", []byte(genFixture))
	b := writeFile(t, "b.gen", []byte("S3 rs3 3000 A G 1 0 0 0 1 0\n"))

	src, err := OpenAll(context.Background(), []string{a, b}, Options{})
	require.NoError(t, err)
	defer src.Close()

	total, _ := src.TotalNumberOfSNPs()
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"rs1", "rs2", "rs3"}, collectRSIDs(t, src))
}
