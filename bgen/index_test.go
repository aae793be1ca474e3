package bgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/genfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkWritesIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexed.bgen")
	indexPath := path + ".bgi"
	variants := []testVariant{variantAt("01", 10, 3, "A", "C"), variantAt("01", 20, 3)}
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 3, Flags: DefaultFlags, IndexPath: indexPath}, variants...)

	bgi, err := OpenBGI(indexPath)
	require.NoError(t, err)
	defer bgi.Close()

	got, err := bgi.Variants()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "01", got[0].Chromosome)
	assert.EqualValues(t, 10, got[0].Position)
	assert.Equal(t, "rs10", got[0].RSID)
	assert.EqualValues(t, 2, got[0].NAlleles)
	assert.Equal(t, "A", got[0].Allele1)
	assert.Equal(t, "C", got[0].Allele2)
	assert.Equal(t, got[0].FileStartPosition+got[0].SizeInBytes, got[1].FileStartPosition)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, info.Size(), got[1].FileStartPosition+got[1].SizeInBytes)
	assert.Equal(t, "indexed.bgen", bgi.Metadata.Filename)
	assert.EqualValues(t, info.Size(), bgi.Metadata.FileSize)
	assert.Len(t, bgi.Metadata.FirstThousandBytes, int(info.Size()))

	found, err := bgi.LookupRSID("rs20")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, got[1], found[0])
}

func TestIndexFileMatchesSinkIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.bgen")
	fromSink := filepath.Join(dir, "sink.bgi")
	fromScan := filepath.Join(dir, "scan.bgi")
	writeBGEN(t, path, SinkOptions{NumberOfSamples: 2, Flags: DefaultFlags, IndexPath: fromSink},
		variantAt("01", 1, 2), variantAt("01", 2, 2), variantAt("03", 3, 2))

	n, err := IndexFile(context.Background(), path, fromScan, genfile.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	read := func(p string) []VariantIndex {
		bgi, err := OpenBGI(p)
		require.NoError(t, err)
		defer bgi.Close()
		v, err := bgi.Variants()
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, read(fromSink), read(fromScan))
}

func TestIndexFileRejectsMissingInput(t *testing.T) {
	_, err := IndexFile(context.Background(), filepath.Join(t.TempDir(), "nope.bgen"), filepath.Join(t.TempDir(), "x.bgi"), genfile.Options{})
	var resource *genfile.ResourceError
	assert.ErrorAs(t, err, &resource)
}
