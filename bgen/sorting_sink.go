package bgen

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"github.com/zhangyunhao116/skipmap"
	"go.uber.org/zap"
)

// sortKey orders blocks by variant, then by arrival so that duplicate
// variants are all kept.
type sortKey struct {
	id  *genfile.VariantIdentifyingData
	seq uint64
}

func (a sortKey) less(b sortKey) bool {
	if c := a.id.Compare(b.id); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// block is a [start, end) byte range of the unsorted file.
type block struct {
	start, end int64
}

// SortingSink writes variants in any order and leaves a BGEN file sorted by
// position, rsid, alleles and identifiers. Blocks are written as they arrive
// and reordered by Close, which renames the file aside and copies it back.
type SortingSink struct {
	sink      *Sink
	indexPath string
	blocks    *skipmap.FuncMap[sortKey, block]
	seq       uint64
	logger    *zap.Logger
	closed    bool
}

// NewSortingSink creates a sorting sink at path. The index, if requested, is
// written after sorting.
func NewSortingSink(path string, opts SinkOptions) (*SortingSink, error) {
	indexPath := opts.IndexPath
	opts.IndexPath = ""
	sink, err := NewSink(path, opts)
	if err != nil {
		return nil, err
	}
	return &SortingSink{
		sink:      sink,
		indexPath: indexPath,
		blocks:    skipmap.NewFunc[sortKey, block](func(a, b sortKey) bool { return a.less(b) }),
		logger:    sink.logger,
	}, nil
}

func (s *SortingSink) Path() string { return s.sink.path }

func (s *SortingSink) NumberOfSamples() uint32 { return s.sink.NumberOfSamples() }

func (s *SortingSink) NumberOfVariants() uint32 { return s.sink.NumberOfVariants() }

func (s *SortingSink) WriteVariant(id *genfile.VariantIdentifyingData, probs []genfile.GenotypeProbabilities) error {
	start, end, err := s.sink.writeVariant(id, probs)
	if err != nil {
		return err
	}
	s.blocks.Store(sortKey{id: id.Clone(), seq: s.seq}, block{start: start, end: end})
	s.seq++
	return nil
}

// Close finishes the unsorted file and rewrites it in sorted order.
func (s *SortingSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.sink.Close(); err != nil {
		return err
	}

	path := s.sink.path
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return &genfile.ResourceError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	if err := os.Rename(path, tmpPath); err != nil {
		os.Remove(tmpPath)
		return &genfile.ResourceError{Path: path, Err: err}
	}

	if err := s.rewrite(tmpPath, path); err != nil {
		// The unsorted file is still complete; put it back.
		if rerr := os.Rename(tmpPath, path); rerr != nil {
			s.logger.Error("could not restore unsorted bgen",
				zap.String("path", path),
				zap.String("unsorted", tmpPath),
				zap.Error(rerr),
			)
		}
		return err
	}
	if err := os.Remove(tmpPath); err != nil {
		return &genfile.ResourceError{Path: tmpPath, Err: err}
	}
	s.logger.Debug("sorted bgen sink", zap.String("path", path), zap.Int("variants", s.blocks.Len()))
	return nil
}

// rewrite copies the blocks of the unsorted file at from to the file at to
// in sorted order, then writes the index if one was requested.
func (s *SortingSink) rewrite(from, to string) error {
	var index *IndexWriter
	if s.indexPath != "" {
		var err error
		if index, err = CreateIndex(s.indexPath); err != nil {
			return err
		}
	}
	if err := s.copySorted(from, to, index); err != nil {
		if index != nil {
			index.Abort()
		}
		return err
	}
	if index != nil {
		return index.Finish(to)
	}
	return nil
}

func (s *SortingSink) copySorted(from, to string, index *IndexWriter) error {
	in, err := os.Open(from)
	if err != nil {
		return &genfile.ResourceError{Path: from, Err: err}
	}
	defer in.Close()
	out, err := os.Create(to)
	if err != nil {
		return &genfile.ResourceError{Path: to, Err: err}
	}
	w := bufio.NewWriterSize(out, 1<<20)

	// The patched header sits in front of the first variant.
	written, err := io.Copy(w, io.NewSectionReader(in, 0, s.sink.firstVariant))
	if err != nil {
		out.Close()
		return pfx.Err(err)
	}
	s.blocks.Range(func(k sortKey, b block) bool {
		var n int64
		n, err = io.Copy(w, io.NewSectionReader(in, b.start, b.end-b.start))
		if err != nil {
			return false
		}
		if index != nil {
			if err = index.Add(NewVariantIndex(k.id, written, written+n)); err != nil {
				return false
			}
		}
		written += n
		return true
	})
	if err != nil {
		out.Close()
		return pfx.Err(err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return &genfile.ResourceError{Path: to, Err: err}
	}
	if err := out.Close(); err != nil {
		return pfx.Err(err)
	}
	return nil
}
