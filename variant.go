package genfile

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// identifierSeparator separates alternate identifiers in the buffer tail.
const identifierSeparator = "\t"

// VariantIdentifyingData describes one variant: a primary identifier (the
// rsid), its position, its alleles and any alternate identifiers. All of
// the strings live in a single buffer laid out as
//
//	rsid | allele 0 | allele 1 | ... | altid1 \t altid2 ...
//
// with alleleStarts and identifiersStart marking the boundaries. Accessors
// return Slices into that buffer. Every mutation rebuilds the buffer from the
// changed field onwards and shifts each later offset by the length delta.
type VariantIdentifyingData struct {
	data             string
	alleleStarts     []uint32
	identifiersStart uint32
	position         GenomePosition
}

// NewVariantIdentifyingData constructs a variant from its rsid, position and
// alleles.
func NewVariantIdentifyingData(rsid string, position GenomePosition, alleles ...string) *VariantIdentifyingData {
	v := &VariantIdentifyingData{position: position}
	var b strings.Builder
	b.WriteString(rsid)
	v.alleleStarts = make([]uint32, len(alleles))
	for i, a := range alleles {
		v.alleleStarts[i] = uint32(b.Len())
		b.WriteString(a)
	}
	v.identifiersStart = uint32(b.Len())
	v.data = b.String()
	return v
}

// NewVariantWithSNPID is NewVariantIdentifyingData plus a SNPID, which is kept
// as an alternate identifier if it differs from the rsid.
func NewVariantWithSNPID(snpid, rsid string, position GenomePosition, alleles ...string) *VariantIdentifyingData {
	v := NewVariantIdentifyingData(rsid, position, alleles...)
	v.AddIdentifier(snpid)
	return v
}

func (v *VariantIdentifyingData) rsidEnd() uint32 {
	if len(v.alleleStarts) > 0 {
		return v.alleleStarts[0]
	}
	return v.identifiersStart
}

func (v *VariantIdentifyingData) alleleEnd(i int) uint32 {
	if i+1 < len(v.alleleStarts) {
		return v.alleleStarts[i+1]
	}
	return v.identifiersStart
}

func (v *VariantIdentifyingData) Position() GenomePosition { return v.position }

func (v *VariantIdentifyingData) SetPosition(position GenomePosition) { v.position = position }

// RSID returns the primary identifier.
func (v *VariantIdentifyingData) RSID() Slice {
	return mustSlice(v.data, 0, int(v.rsidEnd()))
}

// SNPID returns the first alternate identifier, or the rsid if there is none.
func (v *VariantIdentifyingData) SNPID() Slice {
	if int(v.identifiersStart) == len(v.data) {
		return v.RSID()
	}
	tail := mustSlice(v.data, int(v.identifiersStart), len(v.data))
	if i := tail.Find(identifierSeparator[0]); i >= 0 {
		first, _ := tail.Sub(0, i)
		return first
	}
	return tail
}

func (v *VariantIdentifyingData) NumberOfAlleles() int { return len(v.alleleStarts) }

// Allele returns the i'th allele. It panics if i is out of range.
func (v *VariantIdentifyingData) Allele(i int) Slice {
	if i < 0 || i >= len(v.alleleStarts) {
		panic(fmt.Sprintf("allele index %d out of range [0,%d)", i, len(v.alleleStarts)))
	}
	return mustSlice(v.data, int(v.alleleStarts[i]), int(v.alleleEnd(i)))
}

func (v *VariantIdentifyingData) Alleles() []Slice {
	result := make([]Slice, len(v.alleleStarts))
	for i := range v.alleleStarts {
		result[i] = v.Allele(i)
	}
	return result
}

// AlternativeIdentifiers returns every identifier other than the rsid.
func (v *VariantIdentifyingData) AlternativeIdentifiers() []Slice {
	if int(v.identifiersStart) == len(v.data) {
		return nil
	}
	return mustSlice(v.data, int(v.identifiersStart), len(v.data)).Split(identifierSeparator)
}

func (v *VariantIdentifyingData) NumberOfIdentifiers() int {
	return 1 + len(v.AlternativeIdentifiers())
}

// Identifiers returns the rsid followed by the alternate identifiers.
func (v *VariantIdentifyingData) Identifiers() []Slice {
	return append([]Slice{v.RSID()}, v.AlternativeIdentifiers()...)
}

// IdentifiersString joins the alternate identifiers with sep.
func (v *VariantIdentifyingData) IdentifiersString(sep string) string {
	return JoinSlices(v.AlternativeIdentifiers(), sep)
}

func (v *VariantIdentifyingData) shiftFrom(firstAllele int, delta int) {
	for i := firstAllele; i < len(v.alleleStarts); i++ {
		v.alleleStarts[i] = uint32(int(v.alleleStarts[i]) + delta)
	}
	v.identifiersStart = uint32(int(v.identifiersStart) + delta)
}

// SetRSID replaces the primary identifier.
func (v *VariantIdentifyingData) SetRSID(rsid string) {
	end := v.rsidEnd()
	delta := len(rsid) - int(end)
	v.data = rsid + v.data[end:]
	v.shiftFrom(0, delta)
}

// SetPrimaryID makes id the primary identifier. The previous primary
// identifier is kept as an alternate, and id is removed from the alternates
// if it was one.
func (v *VariantIdentifyingData) SetPrimaryID(id string) {
	old := v.RSID().String()
	if old == id {
		return
	}
	var keep []string
	for _, alt := range v.AlternativeIdentifiers() {
		if s := alt.String(); s != id {
			keep = append(keep, s)
		}
	}
	v.ClearIdentifiers()
	v.SetRSID(id)
	v.AddIdentifier(old)
	for _, s := range keep {
		v.AddIdentifier(s)
	}
}

// SetAllele replaces the i'th allele. It panics if i is out of range.
func (v *VariantIdentifyingData) SetAllele(i int, allele string) {
	if i < 0 || i >= len(v.alleleStarts) {
		panic(fmt.Sprintf("allele index %d out of range [0,%d)", i, len(v.alleleStarts)))
	}
	start, end := v.alleleStarts[i], v.alleleEnd(i)
	delta := len(allele) - int(end-start)
	v.data = v.data[:start] + allele + v.data[end:]
	v.shiftFrom(i+1, delta)
}

// AddAllele appends an allele after the existing ones.
func (v *VariantIdentifyingData) AddAllele(allele string) {
	at := v.identifiersStart
	v.data = v.data[:at] + allele + v.data[at:]
	v.alleleStarts = append(v.alleleStarts, at)
	v.identifiersStart += uint32(len(allele))
}

// ClearAlleles removes every allele.
func (v *VariantIdentifyingData) ClearAlleles() {
	end := v.rsidEnd()
	v.data = v.data[:end] + v.data[v.identifiersStart:]
	v.alleleStarts = v.alleleStarts[:0]
	v.identifiersStart = end
}

// SwapAlleles exchanges the two alleles of a biallelic variant.
func (v *VariantIdentifyingData) SwapAlleles() error {
	if len(v.alleleStarts) != 2 {
		return &OperationUnsupportedError{Op: fmt.Sprintf("swap alleles of a variant with %d alleles", len(v.alleleStarts))}
	}
	first, second := v.Allele(0).String(), v.Allele(1).String()
	start := v.alleleStarts[0]
	v.data = v.data[:start] + second + first + v.data[v.identifiersStart:]
	v.alleleStarts[1] = start + uint32(len(second))
	return nil
}

// AddIdentifier records id as an alternate identifier. Empty ids, the rsid
// and ids already present are ignored. Tabs in id become spaces.
func (v *VariantIdentifyingData) AddIdentifier(id string) {
	id = strings.ReplaceAll(id, identifierSeparator, " ")
	if id == "" || id == v.RSID().String() {
		return
	}
	alts := v.AlternativeIdentifiers()
	for _, alt := range alts {
		if alt.EqualString(id) {
			return
		}
	}
	if len(alts) > 0 {
		v.data += identifierSeparator + id
	} else {
		v.data += id
	}
}

// ClearIdentifiers removes every alternate identifier.
func (v *VariantIdentifyingData) ClearIdentifiers() {
	v.data = v.data[:v.identifiersStart]
}

// Clone returns an independent copy.
func (v *VariantIdentifyingData) Clone() *VariantIdentifyingData {
	c := *v
	c.alleleStarts = append([]uint32(nil), v.alleleStarts...)
	return &c
}

// Equal reports whether both variants hold the same identifiers, alleles and
// position.
func (v *VariantIdentifyingData) Equal(other *VariantIdentifyingData) bool {
	if v.data != other.data || v.identifiersStart != other.identifiersStart || len(v.alleleStarts) != len(other.alleleStarts) {
		return false
	}
	for i := range v.alleleStarts {
		if v.alleleStarts[i] != other.alleleStarts[i] {
			return false
		}
	}
	return v.position.Equal(other.position)
}

// Compare orders variants by position, rsid, alleles and then alternate
// identifiers.
func (v *VariantIdentifyingData) Compare(other *VariantIdentifyingData) int {
	if c := v.position.Compare(other.position); c != 0 {
		return c
	}
	if c := v.RSID().Compare(other.RSID()); c != 0 {
		return c
	}
	if c := compareAlleles(v, other); c != 0 {
		return c
	}
	return strings.Compare(v.data[v.identifiersStart:], other.data[other.identifiersStart:])
}

func (v *VariantIdentifyingData) Less(other *VariantIdentifyingData) bool {
	return v.Compare(other) < 0
}

func compareAlleles(a, b *VariantIdentifyingData) int {
	n := len(a.alleleStarts)
	if len(b.alleleStarts) < n {
		n = len(b.alleleStarts)
	}
	for i := 0; i < n; i++ {
		if c := a.Allele(i).Compare(b.Allele(i)); c != 0 {
			return c
		}
	}
	switch {
	case len(a.alleleStarts) < len(b.alleleStarts):
		return -1
	case len(a.alleleStarts) > len(b.alleleStarts):
		return 1
	}
	return 0
}

// Key returns a string that is equal for Equal variants, for use as a map
// key.
func (v *VariantIdentifyingData) Key() string {
	var b strings.Builder
	b.Grow(len(v.data) + 8 + 4*len(v.alleleStarts) + 16)
	b.WriteString(v.position.canonical().String())
	b.WriteByte(0)
	var word [4]byte
	for _, s := range v.alleleStarts {
		binary.LittleEndian.PutUint32(word[:], s)
		b.Write(word[:])
	}
	binary.LittleEndian.PutUint32(word[:], v.identifiersStart)
	b.Write(word[:])
	b.WriteString(v.data)
	return b.String()
}

// Hash is a 64-bit hash of Key.
func (v *VariantIdentifyingData) Hash() uint64 {
	return xxhash.Sum64String(v.Key())
}

// EstimatedBytesUsed approximates the memory held by v.
func (v *VariantIdentifyingData) EstimatedBytesUsed() int {
	return 64 + len(v.data) + 4*cap(v.alleleStarts)
}

func (v *VariantIdentifyingData) String() string {
	var b strings.Builder
	b.WriteString(v.RSID().String())
	if alts := v.AlternativeIdentifiers(); len(alts) > 0 {
		b.WriteString(" [")
		b.WriteString(JoinSlices(alts, ","))
		b.WriteString("]")
	}
	fmt.Fprintf(&b, " %s %d", v.position.Chromosome, v.position.Position)
	for _, a := range v.Alleles() {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	return b.String()
}
