package bgen

// Layout is a versioned variant structure outlined by the BGEN spec, stored
// in bits 2-5 of the header flags.
type Layout uint32

const (
	// LayoutV10 has padded single-byte-length identifiers, chromosome codes
	// and probabilities scaled by 10000.
	LayoutV10 Layout = iota
	// LayoutV11 has two-byte-length identifiers, chromosome strings and
	// probabilities scaled by 32768.
	LayoutV11
)

func (l Layout) String() string {
	switch l {
	case LayoutV10:
		return "v1.0"
	case LayoutV11:
		return "v1.1"

	default:
		return "Illegal selection"
	}
}

// Factor is the fixed-point scale of probabilities in this layout.
func (l Layout) Factor() float64 {
	if l == LayoutV10 {
		return FactorV10
	}
	return FactorV11
}

// Flags is the header's flags word.
type Flags uint32

const (
	FlagCompressed Flags = 1 << 0
	// FlagMultiCharacterAlleles lets v1.0 alleles be longer than one byte.
	FlagMultiCharacterAlleles Flags = 1 << 1
	FlagSampleIdentifiers     Flags = 1 << 31

	flagLayoutShift       = 2
	flagLayoutMask  Flags = 0xF << flagLayoutShift
)

func (f Flags) Compressed() bool { return f&FlagCompressed != 0 }

func (f Flags) MultiCharacterAlleles() bool { return f&FlagMultiCharacterAlleles != 0 }

func (f Flags) HasSampleIdentifiers() bool { return f&FlagSampleIdentifiers != 0 }

func (f Flags) Layout() Layout { return Layout((f & flagLayoutMask) >> flagLayoutShift) }

// WithLayout returns f with its layout bits replaced.
func (f Flags) WithLayout(l Layout) Flags {
	return f&^flagLayoutMask | Flags(l)<<flagLayoutShift&flagLayoutMask
}
