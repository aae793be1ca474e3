package genfile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Options guide Open.
type Options struct {
	// FileType names a registered format. If empty it is inferred from the
	// path's extension.
	FileType string

	Compression Compression

	// Chromosome is assigned to variants by formats that do not record one.
	Chromosome Chromosome

	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// OpenFunc opens a source of one format.
type OpenFunc func(ctx context.Context, path string, opts Options) (VariantDataSource, error)

type fileType struct {
	name       string
	extensions []string
	open       OpenFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[string]fileType{}
)

// RegisterFileType makes a format available to Open under name, and for
// paths ending in any of extensions. Formats register themselves from an
// init function, so importing the format's package is enough to use it.
func RegisterFileType(name string, extensions []string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("genfile: RegisterFileType called twice for " + name)
	}
	registry[name] = fileType{name: name, extensions: extensions, open: open}
}

// FileTypes lists the registered format names.
func FileTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectFileType returns the registered format whose extension path has,
// ignoring any compression extension.
func DetectFileType(path string) (string, error) {
	stripped, _ := StripCompressionExtension(path)
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, ft := range registry {
		for _, ext := range ft.extensions {
			if strings.HasSuffix(stripped, ext) {
				return ft.name, nil
			}
		}
	}
	return "", &OperationUnsupportedError{Op: fmt.Sprintf("detect file type of %q", path)}
}

// Open resolves path to a source of the format named by opts.FileType, or
// inferred from the path.
func Open(ctx context.Context, path string, opts Options) (VariantDataSource, error) {
	name := opts.FileType
	if name == "" {
		var err error
		if name, err = DetectFileType(path); err != nil {
			return nil, err
		}
	}
	registryMu.RLock()
	ft, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &OperationUnsupportedError{Op: fmt.Sprintf("open file type %q (known: %s)", name, strings.Join(FileTypes(), ","))}
	}
	opts.logger().Debug("opening source",
		zap.String("path", path),
		zap.String("type", name),
		zap.Stringer("compression", opts.Compression),
	)
	return ft.open(ctx, path, opts)
}

// OpenAll opens each path with opts. A single path yields its source; more
// yield a Chain over them in order.
func OpenAll(ctx context.Context, paths []string, opts Options) (VariantDataSource, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input paths")
	}
	sources := make([]VariantDataSource, 0, len(paths))
	closeAll := func() {
		for _, s := range sources {
			s.Close()
		}
	}
	for _, p := range paths {
		s, err := Open(ctx, p, opts)
		if err != nil {
			closeAll()
			return nil, err
		}
		sources = append(sources, s)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	chain, err := NewChain(sources...)
	if err != nil {
		closeAll()
		return nil, err
	}
	chain.SetLogger(opts.logger())
	return chain, nil
}
