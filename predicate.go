package genfile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Predicate decides whether a variant is kept by a Filter.
type Predicate interface {
	Match(id *VariantIdentifyingData) bool
	String() string
}

// PredicateFunc adapts a function to a Predicate.
type PredicateFunc func(id *VariantIdentifyingData) bool

func (f PredicateFunc) Match(id *VariantIdentifyingData) bool { return f(id) }

func (f PredicateFunc) String() string { return "func" }

type positionRange struct {
	lo, hi GenomePosition
}

// PositionInRange matches variants with lo <= position <= hi.
func PositionInRange(lo, hi GenomePosition) Predicate {
	return positionRange{lo: lo, hi: hi}
}

func (p positionRange) Match(id *VariantIdentifyingData) bool {
	pos := id.Position()
	return !pos.Less(p.lo) && !p.hi.Less(pos)
}

func (p positionRange) String() string {
	return fmt.Sprintf("position in [%s, %s]", p.lo, p.hi)
}

// ParseRange reads "chr:lo-hi", "chr:pos" or "chr" into a PositionInRange
// predicate. Both bounds are inclusive.
func ParseRange(spec string) (Predicate, error) {
	chrom, span, hasSpan := strings.Cut(strings.TrimSpace(spec), ":")
	if chrom == "" {
		return nil, fmt.Errorf("range %q has no chromosome", spec)
	}
	c := Chromosome(chrom)
	if !hasSpan {
		return PositionInRange(NewGenomePosition(c, 0), NewGenomePosition(c, math.MaxUint32)), nil
	}
	from, to, isSpan := strings.Cut(span, "-")
	lo, err := strconv.ParseUint(from, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("range %q: bad start: %w", spec, err)
	}
	hi := lo
	if isSpan {
		if hi, err = strconv.ParseUint(to, 10, 32); err != nil {
			return nil, fmt.Errorf("range %q: bad end: %w", spec, err)
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("range %q ends before it starts", spec)
	}
	return PositionInRange(NewGenomePosition(c, uint32(lo)), NewGenomePosition(c, uint32(hi))), nil
}

type idSet struct {
	ids     map[string]struct{}
	anyID   bool
	display string
}

func newIDSet(anyID bool, ids []string) idSet {
	set := idSet{ids: make(map[string]struct{}, len(ids)), anyID: anyID}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		set.ids[id] = struct{}{}
	}
	set.display = strings.Join(sorted, ",")
	return set
}

// RSIDIn matches variants whose rsid is one of ids.
func RSIDIn(ids ...string) Predicate { return newIDSet(false, ids) }

// IdentifierIn matches variants with any identifier, primary or alternate,
// in ids.
func IdentifierIn(ids ...string) Predicate { return newIDSet(true, ids) }

func (s idSet) Match(id *VariantIdentifyingData) bool {
	if _, ok := s.ids[id.RSID().String()]; ok {
		return true
	}
	if !s.anyID {
		return false
	}
	for _, alt := range id.AlternativeIdentifiers() {
		if _, ok := s.ids[alt.String()]; ok {
			return true
		}
	}
	return false
}

func (s idSet) String() string {
	if s.anyID {
		return "identifier in {" + s.display + "}"
	}
	return "rsid in {" + s.display + "}"
}

type chromosomeIs Chromosome

// ChromosomeIs matches variants on chromosome c. "1", "01" and "chr1" are
// the same chromosome.
func ChromosomeIs(c Chromosome) Predicate { return chromosomeIs(c) }

func (c chromosomeIs) Match(id *VariantIdentifyingData) bool {
	return id.Position().Chromosome.Compare(Chromosome(c)) == 0
}

func (c chromosomeIs) String() string { return "chromosome is " + string(c) }

type and []Predicate

// And matches variants every predicate matches.
func And(predicates ...Predicate) Predicate { return and(predicates) }

func (a and) Match(id *VariantIdentifyingData) bool {
	for _, p := range a {
		if !p.Match(id) {
			return false
		}
	}
	return true
}

func (a and) String() string { return joinPredicates(a, " and ") }

type or []Predicate

// Or matches variants any predicate matches.
func Or(predicates ...Predicate) Predicate { return or(predicates) }

func (o or) Match(id *VariantIdentifyingData) bool {
	for _, p := range o {
		if p.Match(id) {
			return true
		}
	}
	return false
}

func (o or) String() string { return joinPredicates(o, " or ") }

type not struct{ p Predicate }

// Not inverts p.
func Not(p Predicate) Predicate { return not{p} }

func (n not) Match(id *VariantIdentifyingData) bool { return !n.p.Match(id) }

func (n not) String() string { return "not (" + n.p.String() + ")" }

func joinPredicates(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, sep)
}
