package bgen

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/carbocation/genfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hugeLength = 0xFFFFFFF0

// allocatedDuring reports the bytes allocated while fn runs.
func allocatedDuring(fn func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

// v11Preamble returns the offset and header of a one-variant, one-sample
// layout 1.1 file.
func v11Preamble(flags Flags) []byte {
	h := NewHeader(1, "", flags.WithLayout(LayoutV11))
	h.NumberOfVariants = 1
	buf := AppendOffset(nil, h.BlockSize())
	return AppendHeader(buf, h)
}

func appendString(dst []byte, s string, width int) []byte {
	dst = AppendUintLE(dst, uint64(len(s)), width)
	return append(dst, s...)
}

// v11Identifiers appends an identifying block whose second allele has the
// given declared length but holds a single byte.
func v11Identifiers(dst []byte, secondAlleleLength uint64) []byte {
	dst = AppendUintLE(dst, 1, 4)
	dst = appendString(dst, "S1", 2)
	dst = appendString(dst, "rs1", 2)
	dst = appendString(dst, "01", 2)
	dst = AppendUintLE(dst, 100, 4)
	dst = appendString(dst, "A", 4)
	dst = AppendUintLE(dst, secondAlleleLength, 4)
	return append(dst, 'G')
}

func TestOversizedLengthsAreMalformed(t *testing.T) {
	dir := t.TempDir()

	headerTooLong := AppendOffset(nil, 20)
	headerTooLong = AppendUintLE(headerTooLong, hugeLength, 4)
	headerTooLong = append(headerTooLong, make([]byte, 36)...)

	headerPastEOF := AppendOffset(nil, 0xFFFFFFFF)
	headerPastEOF = AppendUintLE(headerPastEOF, hugeLength, 4)
	headerPastEOF = append(headerPastEOF, make([]byte, 36)...)

	allele := v11Identifiers(v11Preamble(0), hugeLength)

	compressed := v11Identifiers(v11Preamble(FlagCompressed), 1)
	compressed = AppendUintLE(compressed, hugeLength, 4)
	compressed = append(compressed, 0x78, 0x9c)

	cases := map[string][]byte{
		"header longer than offset": headerTooLong,
		"header past end of file":   headerPastEOF,
		"allele length":             allele,
		"compressed length":         compressed,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".bgen")
			require.NoError(t, os.WriteFile(path, data, 0644))

			var err error
			allocated := allocatedDuring(func() {
				var src *genfile.CachingSource
				src, err = OpenFile(path)
				if err != nil {
					return
				}
				defer src.Close()
				if _, err = src.GetIdentifyingData(); err != nil {
					return
				}
				err = src.ReadProbabilityData(func(uint32, float64, float64, float64) {})
			})
			var malformed *genfile.MalformedInputError
			assert.ErrorAs(t, err, &malformed)
			assert.Less(t, allocated, uint64(64<<20))
		})
	}
}
