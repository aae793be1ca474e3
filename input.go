package genfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

const inputBufferSize = 1 << 16

// Input is a sequential, rewindable byte stream over a local file, standard
// input ("-") or a Google Cloud Storage object ("gs://bucket/object"),
// optionally compressed. Uncompressed local files rewind by seeking; other
// media rewind by reopening, except standard input which cannot rewind.
type Input struct {
	path        string
	compression Compression
	ctx         context.Context

	file   *os.File
	gcs    *storage.Client
	raw    io.ReadCloser
	stream io.ReadCloser
	reader *bufio.Reader
	offset int64
}

// OpenInput opens path for reading. With CompressionAuto the compression is
// detected from the stream's leading bytes.
func OpenInput(ctx context.Context, path string, compression Compression) (*Input, error) {
	in := &Input{path: path, compression: compression, ctx: ctx}
	if err := in.open(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Input) open() error {
	var err error
	switch {
	case in.path == "-":
		in.raw = io.NopCloser(os.Stdin)
	case strings.HasPrefix(in.path, "gs://"):
		in.raw, err = in.openGCS()
	default:
		in.file, err = os.Open(in.path)
		in.raw = in.file
	}
	if err != nil {
		return &ResourceError{Path: in.path, Err: err}
	}
	return in.wrap()
}

func (in *Input) openGCS() (io.ReadCloser, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(in.path, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("expected gs://bucket/object, got %q", in.path)
	}
	if in.gcs == nil {
		client, err := storage.NewClient(in.ctx)
		if err != nil {
			return nil, pfx.Err(err)
		}
		in.gcs = client
	}
	return in.gcs.Bucket(bucket).Object(object).NewReader(in.ctx)
}

func (in *Input) wrap() error {
	buffered := bufio.NewReaderSize(in.raw, inputBufferSize)
	c := in.compression
	if c == CompressionAuto {
		head, err := buffered.Peek(4)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return &ResourceError{Path: in.path, Err: err}
		}
		c = detectCompression(head)
		in.compression = c
	}
	if c == CompressionNone {
		in.stream = io.NopCloser(buffered)
		in.reader = buffered
		in.offset = 0
		return nil
	}
	stream, err := decompress(buffered, c)
	if err != nil {
		return &MalformedInputError{Source: in.path, Reason: "bad " + c.String() + " stream", Err: err}
	}
	in.stream = stream
	in.reader = bufio.NewReaderSize(stream, inputBufferSize)
	in.offset = 0
	return nil
}

// Path is the path the input was opened with.
func (in *Input) Path() string { return in.path }

// Compression is the input's compression, detected if it was opened with
// CompressionAuto.
func (in *Input) Compression() Compression { return in.compression }

// Seekable reports whether Rewind seeks rather than reopens.
func (in *Input) Seekable() bool {
	return in.file != nil && in.compression == CompressionNone
}

// Offset is the number of decompressed bytes consumed since the last rewind.
func (in *Input) Offset() int64 { return in.offset }

func (in *Input) Read(p []byte) (int, error) {
	n, err := in.reader.Read(p)
	in.offset += int64(n)
	return n, err
}

// Discard skips n bytes.
func (in *Input) Discard(n int) (int, error) {
	d, err := in.reader.Discard(n)
	in.offset += int64(d)
	return d, err
}

// ReadLine returns the next line without its terminator. It returns io.EOF
// once no bytes remain.
func (in *Input) ReadLine() (string, error) {
	line, err := in.reader.ReadString('\n')
	in.offset += int64(len(line))
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

// Rewind returns to the first byte of the input.
func (in *Input) Rewind() error {
	if in.Seekable() {
		if _, err := in.file.Seek(0, io.SeekStart); err != nil {
			return &ResourceError{Path: in.path, Err: err}
		}
		in.reader.Reset(in.file)
		in.offset = 0
		return nil
	}
	if in.path == "-" {
		return &ResourceError{Path: in.path, Err: fmt.Errorf("standard input cannot be rewound")}
	}
	in.closeStreams()
	return in.open()
}

func (in *Input) closeStreams() error {
	var first error
	if in.stream != nil {
		first = in.stream.Close()
	}
	if in.raw != nil {
		if err := in.raw.Close(); err != nil && first == nil {
			first = err
		}
	}
	in.stream, in.raw, in.file = nil, nil, nil
	return first
}

func (in *Input) Close() error {
	err := in.closeStreams()
	if in.gcs != nil {
		if cerr := in.gcs.Close(); cerr != nil && err == nil {
			err = cerr
		}
		in.gcs = nil
	}
	if err != nil {
		return pfx.Err(err)
	}
	return nil
}
