package genfile

import (
	"fmt"
	"strings"
)

// Field names one component of a variant's identifying data.
type Field int

const (
	FieldPosition Field = iota
	FieldRSID
	FieldIDs
	FieldAlleles
)

func (f Field) String() string {
	switch f {
	case FieldPosition:
		return "position"
	case FieldRSID:
		return "rsid"
	case FieldIDs:
		return "IDs"
	case FieldAlleles:
		return "alleles"
	default:
		return "Illegal field"
	}
}

// DefaultCompareFields is the comparison used to match variants across
// sources.
const DefaultCompareFields = "position,rsid,IDs,alleles"

// CompareFields compares variants lexicographically on a chosen subset of
// fields, in the order given.
type CompareFields struct {
	fields []Field

	// FlipAlleles makes Equal accept a biallelic variant whose alleles are
	// swapped relative to the other.
	FlipAlleles bool
}

// ParseCompareFields parses a comma-separated list of field names. Accepted
// names are position, rsid, alleles, and IDs (or SNPID).
func ParseCompareFields(spec string) (*CompareFields, error) {
	var fields []Field
	for _, elt := range NewSlice(spec).Split(",") {
		name := elt.Strip(" \t\n\r").String()
		switch name {
		case "position":
			fields = append(fields, FieldPosition)
		case "rsid":
			fields = append(fields, FieldRSID)
		case "IDs", "SNPID":
			fields = append(fields, FieldIDs)
		case "alleles":
			fields = append(fields, FieldAlleles)
		default:
			return nil, fmt.Errorf("unrecognised comparison field %q in %q", name, spec)
		}
	}
	return &CompareFields{fields: fields}, nil
}

// MustCompareFields is ParseCompareFields for specs known at compile time.
func MustCompareFields(spec string) *CompareFields {
	c, err := ParseCompareFields(spec)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *CompareFields) Fields() []Field {
	return append([]Field(nil), c.fields...)
}

func (c *CompareFields) compareField(f Field, a, b *VariantIdentifyingData) int {
	switch f {
	case FieldPosition:
		return a.Position().Compare(b.Position())
	case FieldRSID:
		return a.RSID().Compare(b.RSID())
	case FieldIDs:
		return strings.Compare(a.IdentifiersString(identifierSeparator), b.IdentifiersString(identifierSeparator))
	case FieldAlleles:
		return compareAlleles(a, b)
	}
	return 0
}

// Compare returns -1, 0 or 1 as a sorts before, with or after b on the
// chosen fields.
func (c *CompareFields) Compare(a, b *VariantIdentifyingData) int {
	for _, f := range c.fields {
		if r := c.compareField(f, a, b); r != 0 {
			return r
		}
	}
	return 0
}

func (c *CompareFields) Less(a, b *VariantIdentifyingData) bool {
	return c.Compare(a, b) < 0
}

// Equal reports whether a and b agree on every chosen field.
func (c *CompareFields) Equal(a, b *VariantIdentifyingData) bool {
	for _, f := range c.fields {
		if c.compareField(f, a, b) == 0 {
			continue
		}
		if f == FieldAlleles && c.FlipAlleles && allelesFlipped(a, b) {
			continue
		}
		return false
	}
	return true
}

func allelesFlipped(a, b *VariantIdentifyingData) bool {
	if a.NumberOfAlleles() != 2 || b.NumberOfAlleles() != 2 {
		return false
	}
	return a.Allele(0).Equal(b.Allele(1)) && a.Allele(1).Equal(b.Allele(0))
}

// ComparableFieldsKnown reports whether v can be meaningfully compared. A
// variant with an allele of "?" cannot be matched on alleles.
func (c *CompareFields) ComparableFieldsKnown(v *VariantIdentifyingData) bool {
	for _, f := range c.fields {
		if f != FieldAlleles {
			continue
		}
		for _, a := range v.Alleles() {
			if a.EqualString("?") {
				return false
			}
		}
	}
	return true
}

func (c *CompareFields) String() string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
