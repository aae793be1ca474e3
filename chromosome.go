package genfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Chromosome is the textual name of a chromosome. The names produced from
// BGEN chromosome codes are canonical ("01".."22", "0X", "0Y", "XY", "MT"),
// but other spellings ("1", "chr1", "X") are accepted and compare equal.
type Chromosome string

// UnknownChromosome is the sentinel used when a source cannot say which
// chromosome a variant lies on.
const UnknownChromosome Chromosome = "NA"

// UnknownChromosomeCode is the BGEN code for an unknown chromosome.
const UnknownChromosomeCode uint8 = 255

// ChromosomeFromCode takes the raw chromosome byte stored by BGEN layout 1.0
// and returns its standard string translation.
func ChromosomeFromCode(code uint8) Chromosome {
	switch {
	case code >= 1 && code <= 9:
		return Chromosome("0" + strconv.Itoa(int(code)))
	case code >= 10 && code <= 22:
		return Chromosome(strconv.Itoa(int(code)))
	case code == 23:
		return "0X"
	case code == 24:
		return "0Y"
	case code == 253:
		return "XY"
	case code == 254:
		return "MT"
	}

	return UnknownChromosome
}

// Code is the inverse of ChromosomeFromCode. Names that have no BGEN code
// map to UnknownChromosomeCode.
func (c Chromosome) Code() uint8 {
	switch r := c.rank(); {
	case r >= 1 && r <= 24:
		return uint8(r)
	case r == rankXY:
		return 253
	case r == rankMT:
		return 254
	}
	return UnknownChromosomeCode
}

func (c Chromosome) String() string { return string(c) }

// IsUnknown reports whether c is missing or the unknown sentinel.
func (c Chromosome) IsUnknown() bool {
	return c.rank() == rankUnknown
}

// IsAutosome reports whether c is one of the 22 numbered chromosomes.
func (c Chromosome) IsAutosome() bool {
	r := c.rank()
	return r >= 1 && r <= 22
}

// IsSexDetermining reports whether c is X or Y.
func (c Chromosome) IsSexDetermining() bool {
	r := c.rank()
	return r == 23 || r == 24
}

const (
	rankXY      = 25
	rankMT      = 26
	rankOther   = 1000
	rankUnknown = 1001
)

func (c Chromosome) rank() int {
	s := strings.ToUpper(string(c))
	s = strings.TrimPrefix(s, "CHR")
	switch s {
	case "", "NA", "?", "UNKNOWN":
		return rankUnknown
	case "X", "0X", "23":
		return 23
	case "Y", "0Y", "24":
		return 24
	case "XY", "25", "253":
		return rankXY
	case "MT", "M", "26", "254":
		return rankMT
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 22 {
		return n
	}
	return rankOther
}

// Compare orders chromosomes as numbered autosomes, X, Y, XY, MT, then any
// other names lexically, then unknown.
func (c Chromosome) Compare(other Chromosome) int {
	ra, rb := c.rank(), other.rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	case ra == rankOther:
		return strings.Compare(string(c), string(other))
	}
	return 0
}

// GenomePosition locates a variant.
type GenomePosition struct {
	Chromosome Chromosome
	Position   uint32
}

func NewGenomePosition(chromosome Chromosome, position uint32) GenomePosition {
	return GenomePosition{Chromosome: chromosome, Position: position}
}

// Compare orders positions by chromosome, then by coordinate.
func (p GenomePosition) Compare(other GenomePosition) int {
	if c := p.Chromosome.Compare(other.Chromosome); c != 0 {
		return c
	}
	switch {
	case p.Position < other.Position:
		return -1
	case p.Position > other.Position:
		return 1
	}
	return 0
}

func (p GenomePosition) Less(other GenomePosition) bool { return p.Compare(other) < 0 }

func (p GenomePosition) Equal(other GenomePosition) bool { return p.Compare(other) == 0 }

func (p GenomePosition) String() string {
	return fmt.Sprintf("%s:%d", p.Chromosome, p.Position)
}

// canonical returns a key under which equal positions collide.
func (p GenomePosition) canonical() GenomePosition {
	switch r := p.Chromosome.rank(); {
	case r < rankOther:
		return GenomePosition{Chromosome: Chromosome(strconv.Itoa(r)), Position: p.Position}
	case r == rankUnknown:
		return GenomePosition{Chromosome: UnknownChromosome, Position: p.Position}
	}
	return p
}
