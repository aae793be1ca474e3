package genfile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression indicates how (and whether) an input stream is compressed.
type Compression uint32

const (
	// CompressionAuto detects compression from the file's leading bytes.
	CompressionAuto Compression = iota
	CompressionNone
	CompressionGzip
	CompressionZStandard
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZStandard:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "Illegal selection"
	}
}

// ParseCompression accepts the names String produces, plus "" for auto.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return CompressionAuto, nil
	case "none", "no_compression":
		return CompressionNone, nil
	case "gzip", "gz", "gzip_compression":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZStandard, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return CompressionAuto, fmt.Errorf("unknown compression %q", name)
}

var compressionExtensions = []struct {
	ext string
	c   Compression
}{
	{".gz", CompressionGzip},
	{".zst", CompressionZStandard},
	{".lz4", CompressionLZ4},
}

// StripCompressionExtension removes a trailing .gz, .zst or .lz4 from path
// and reports which compression it named.
func StripCompressionExtension(path string) (string, Compression) {
	for _, e := range compressionExtensions {
		if strings.HasSuffix(path, e.ext) {
			return strings.TrimSuffix(path, e.ext), e.c
		}
	}
	return path, CompressionNone
}

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// detectCompression inspects the leading bytes of a stream.
func detectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return CompressionGzip
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZStandard
	case bytes.HasPrefix(head, magicLZ4):
		return CompressionLZ4
	}
	return CompressionNone
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// decompress wraps r according to c, which must not be CompressionAuto.
func decompress(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZStandard:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, fmt.Errorf("cannot decompress %s", c)
}
