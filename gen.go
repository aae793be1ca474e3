package genfile

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/carbocation/pfx"
)

func init() {
	RegisterFileType("gen", []string{".gen"}, func(ctx context.Context, path string, opts Options) (VariantDataSource, error) {
		src, err := OpenGEN(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		return Cache(src), nil
	})
}

// GENSource reads the text GEN format: one variant per line, as
//
//	[chromosome] SNPID RSID position allele1 allele2 p11 p12 p22 ...
//
// with three probabilities per sample. Whether the chromosome column is
// present is decided from the first line's column count.
type GENSource struct {
	in         *Input
	chromosome Chromosome
	hasChrom   bool
	nSamples   uint32
	total      int
	counted    bool

	pending    string
	hasPending bool
	line       int
	fields     []Slice
}

// OpenGEN opens a GEN file. opts.Chromosome is used when the file has no
// chromosome column.
func OpenGEN(ctx context.Context, path string, opts Options) (*GENSource, error) {
	in, err := OpenInput(ctx, path, opts.Compression)
	if err != nil {
		return nil, err
	}
	g := &GENSource{in: in, chromosome: opts.Chromosome}
	if g.chromosome == "" {
		g.chromosome = UnknownChromosome
	}
	if err := g.readHeader(); err != nil {
		in.Close()
		return nil, err
	}
	return g, nil
}

func (g *GENSource) readHeader() error {
	first, err := g.in.ReadLine()
	if err == io.EOF {
		g.counted = true
		return nil
	}
	if err != nil {
		return pfx.Err(err)
	}
	n := len(genFields(first, nil))
	switch {
	case n >= 5 && (n-5)%3 == 0:
		g.nSamples = uint32((n - 5) / 3)
	case n >= 6 && (n-6)%3 == 0:
		g.hasChrom = true
		g.nSamples = uint32((n - 6) / 3)
	default:
		return &MalformedInputError{Source: g.in.Path(), Line: 1, Column: n, Reason: "column count is not 5 or 6 plus three per sample"}
	}

	if g.in.Path() == "-" {
		g.pending, g.hasPending = first, true
		return nil
	}
	g.total = 1
	for {
		line, err := g.in.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pfx.Err(err)
		}
		if line != "" {
			g.total++
		}
	}
	g.counted = true
	return g.in.Rewind()
}

func (g *GENSource) columns() int {
	if g.hasChrom {
		return 6 + 3*int(g.nSamples)
	}
	return 5 + 3*int(g.nSamples)
}

func (g *GENSource) NumberOfSamples() uint32 { return g.nSamples }

func (g *GENSource) TotalNumberOfSNPs() (int, bool) { return g.total, g.counted }

func (g *GENSource) nextLine() (string, error) {
	if g.hasPending {
		g.hasPending = false
		return g.pending, nil
	}
	for {
		line, err := g.in.ReadLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		g.line++
	}
}

func (g *GENSource) ReadIdentifyingData() (*VariantIdentifyingData, error) {
	line, err := g.nextLine()
	if err == io.EOF {
		return nil, ErrExhausted
	}
	if err != nil {
		return nil, pfx.Err(err)
	}
	g.line++
	g.fields = genFields(line, nil)
	if len(g.fields) != g.columns() {
		return nil, g.malformed(len(g.fields), fmt.Sprintf("expected %d columns", g.columns()))
	}

	f := g.fields
	chromosome := g.chromosome
	if g.hasChrom {
		chromosome = Chromosome(f[0].String())
		f = f[1:]
	}
	pos, err := strconv.ParseUint(f[2].String(), 10, 32)
	if err != nil {
		return nil, g.malformed(g.column(2), "bad position")
	}
	return NewVariantWithSNPID(
		f[0].String(), f[1].String(),
		NewGenomePosition(chromosome, uint32(pos)),
		f[3].String(), f[4].String(),
	), nil
}

// genFields appends the whitespace-separated fields of line to dst. Runs of
// spaces and tabs count as one separator.
func genFields(line string, dst []Slice) []Slice {
	NewSlice(line).SplitFunc(" \t\r", func(field Slice) {
		if !field.IsEmpty() {
			dst = append(dst, field)
		}
	})
	return dst
}

// column converts an index among the fixed fields to a 1-based column.
func (g *GENSource) column(i int) int {
	if g.hasChrom {
		return i + 2
	}
	return i + 1
}

func (g *GENSource) malformed(column int, reason string) error {
	return &MalformedInputError{Source: g.in.Path(), Line: g.line, Column: column, Reason: reason}
}

func (g *GENSource) ReadProbabilityData(set GenotypeProbabilitySetter) error {
	if g.fields == nil {
		return ErrProtocolViolation
	}
	first := g.columns() - 3*int(g.nSamples)
	var p [3]float64
	for i := uint32(0); i < g.nSamples; i++ {
		for k := 0; k < 3; k++ {
			col := first + 3*int(i) + k
			v, err := strconv.ParseFloat(g.fields[col].String(), 64)
			if err != nil {
				g.fields = nil
				return g.malformed(col+1, "bad probability")
			}
			p[k] = v
		}
		set(i, p[0], p[1], p[2])
	}
	g.fields = nil
	return nil
}

func (g *GENSource) IgnoreProbabilityData() error {
	if g.fields == nil {
		return ErrProtocolViolation
	}
	g.fields = nil
	return nil
}

func (g *GENSource) ResetToStart() error {
	if err := g.in.Rewind(); err != nil {
		return err
	}
	g.line = 0
	g.fields = nil
	g.hasPending = false
	return nil
}

func (g *GENSource) Spec() string { return "gen:" + g.in.Path() }

func (g *GENSource) Close() error { return g.in.Close() }
