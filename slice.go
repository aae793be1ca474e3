package genfile

import (
	"fmt"
	"strings"
)

// Slice is a view of part of a string owned elsewhere. Go strings are
// immutable and substrings share storage, so a Slice never copies.
type Slice struct {
	buf   string
	start int
	end   int
}

// SliceOf returns the view buf[start:end]. It fails unless
// 0 <= start <= end <= len(buf).
func SliceOf(buf string, start, end int) (Slice, error) {
	if start < 0 || start > end || end > len(buf) {
		return Slice{}, fmt.Errorf("slice [%d,%d) out of range for buffer of length %d", start, end, len(buf))
	}
	return Slice{buf: buf, start: start, end: end}, nil
}

// NewSlice views the whole of buf.
func NewSlice(buf string) Slice {
	return Slice{buf: buf, start: 0, end: len(buf)}
}

// mustSlice is for offsets the caller has already validated.
func mustSlice(buf string, start, end int) Slice {
	s, err := SliceOf(buf, start, end)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Slice) Len() int { return s.end - s.start }

func (s Slice) IsEmpty() bool { return s.end == s.start }

// Start and End report the view's bounds within the underlying buffer.
func (s Slice) Start() int { return s.start }
func (s Slice) End() int   { return s.end }

// At returns the i'th byte of the view. It panics if i is out of range, as
// indexing a string would.
func (s Slice) At(i int) byte {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("slice index %d out of range [0,%d)", i, s.Len()))
	}
	return s.buf[s.start+i]
}

// String returns the viewed substring. The result shares memory with the
// underlying buffer.
func (s Slice) String() string {
	return s.buf[s.start:s.end]
}

// Sub returns a view of s[start:end], relative to s.
func (s Slice) Sub(start, end int) (Slice, error) {
	if start < 0 || start > end || end > s.Len() {
		return Slice{}, fmt.Errorf("sub-slice [%d,%d) out of range for slice of length %d", start, end, s.Len())
	}
	return Slice{buf: s.buf, start: s.start + start, end: s.start + end}, nil
}

// Find returns the index of the first c in s at or after pos, or -1.
func (s Slice) Find(c byte, pos ...int) int {
	from := firstPos(pos)
	for i := s.start + from; i < s.end; i++ {
		if s.buf[i] == c {
			return i - s.start
		}
	}
	return -1
}

// FindFirstOf returns the index of the first byte of s, at or after pos, that
// is a member of chars, or -1.
func (s Slice) FindFirstOf(chars string, pos ...int) int {
	set := makeCharset(chars)
	return s.findFirst(&set, true, firstPos(pos))
}

// FindFirstNotOf returns the index of the first byte of s, at or after pos,
// that is not a member of chars, or -1.
func (s Slice) FindFirstNotOf(chars string, pos ...int) int {
	set := makeCharset(chars)
	return s.findFirst(&set, false, firstPos(pos))
}

// FindLastOf returns the index of the last byte of s that is a member of
// chars, or -1.
func (s Slice) FindLastOf(chars string) int {
	set := makeCharset(chars)
	return s.findLast(&set, true)
}

// FindLastNotOf returns the index of the last byte of s that is not a member
// of chars, or -1.
func (s Slice) FindLastNotOf(chars string) int {
	set := makeCharset(chars)
	return s.findLast(&set, false)
}

// Strip removes leading and trailing bytes found in chars.
func (s Slice) Strip(chars string) Slice {
	if chars == "" {
		return s
	}
	l := s.FindFirstNotOf(chars)
	if l < 0 {
		return Slice{buf: s.buf, start: s.start, end: s.start}
	}
	r := s.FindLastNotOf(chars)
	return Slice{buf: s.buf, start: s.start + l, end: s.start + r + 1}
}

// Split splits s at every byte in delims. An empty s yields a single empty
// Slice, so callers can always compare the result length against an
// expected column count.
func (s Slice) Split(delims string) []Slice {
	var result []Slice
	s.SplitFunc(delims, func(part Slice) {
		result = append(result, part)
	})
	return result
}

// SplitFunc is Split without building a result slice.
func (s Slice) SplitFunc(delims string, fn func(Slice)) {
	set := makeCharset(delims)
	last := 0
	for {
		pos := s.findFirst(&set, true, last)
		if pos < 0 {
			pos = s.Len()
		}
		fn(Slice{buf: s.buf, start: s.start + last, end: s.start + pos})
		if pos == s.Len() {
			return
		}
		last = pos + 1
	}
}

// Equal compares the viewed bytes, not the underlying buffers.
func (s Slice) Equal(other Slice) bool {
	return s.String() == other.String()
}

func (s Slice) EqualString(other string) bool {
	return s.String() == other
}

// Compare orders slices lexicographically by their bytes.
func (s Slice) Compare(other Slice) int {
	return strings.Compare(s.String(), other.String())
}

// JoinSlices concatenates the slices with sep between them.
func JoinSlices(slices []Slice, sep string) string {
	var b strings.Builder
	for i, s := range slices {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s.String())
	}
	return b.String()
}

type charset [256]bool

func makeCharset(chars string) charset {
	var set charset
	for i := 0; i < len(chars); i++ {
		set[chars[i]] = true
	}
	return set
}

func (s Slice) findFirst(set *charset, member bool, from int) int {
	if from < 0 {
		from = 0
	}
	for i := s.start + from; i < s.end; i++ {
		if set[s.buf[i]] == member {
			return i - s.start
		}
	}
	return -1
}

func (s Slice) findLast(set *charset, member bool) int {
	for i := s.end - 1; i >= s.start; i-- {
		if set[s.buf[i]] == member {
			return i - s.start
		}
	}
	return -1
}

func firstPos(pos []int) int {
	if len(pos) == 0 {
		return 0
	}
	return pos[0]
}
