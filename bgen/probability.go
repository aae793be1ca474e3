package bgen

import (
	"errors"
	"fmt"
	"math"

	"github.com/carbocation/genfile"
	"go.uber.org/zap"
)

const (
	FactorV10 = 10000.0
	FactorV11 = 32768.0

	// bytesPerSample is the size of one sample's three uint16 probabilities.
	bytesPerSample = 6
)

// ErrProbabilityOutOfRange is returned by a strict Encoder for a probability
// outside [0, 1].
var ErrProbabilityOutOfRange = errors.New("probability out of range [0, 1]")

// Encoder converts probabilities to BGEN's 16-bit fixed-point form.
//
// By default a probability outside [0, 1] is clamped into range and logged
// at warn level. A Strict encoder rejects it instead.
type Encoder struct {
	Factor float64
	Strict bool
	Logger *zap.Logger
}

// NewEncoder returns a lenient encoder for layout l.
func NewEncoder(l Layout, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{Factor: l.Factor(), Logger: logger}
}

// Encode returns round(clamp(p, 0, 1) * Factor), capped at 65535.
func (e *Encoder) Encode(p float64) (uint16, error) {
	if !(p >= 0 && p <= 1) {
		if e.Strict {
			return 0, fmt.Errorf("%w: %v", ErrProbabilityOutOfRange, p)
		}
		if e.Logger != nil {
			e.Logger.Warn("clamping out-of-range probability", zap.Float64("probability", p))
		}
		switch {
		case p > 1:
			p = 1
		default:
			// Negative values and NaN.
			p = 0
		}
	}
	x := math.Floor(p*e.Factor + 0.5)
	if x > math.MaxUint16 {
		x = math.MaxUint16
	}
	return uint16(x), nil
}

// AppendProbabilities appends the fixed-point encoding of probs, three
// little-endian uint16s per sample, to dst.
func (e *Encoder) AppendProbabilities(dst []byte, probs []genfile.GenotypeProbabilities) ([]byte, error) {
	for _, p := range probs {
		for _, v := range [3]float64{p.AA, p.AB, p.BB} {
			u, err := e.Encode(v)
			if err != nil {
				return dst, err
			}
			dst = AppendUintLE(dst, uint64(u), 2)
		}
	}
	return dst, nil
}

// Decode converts a fixed-point value back to a probability.
func Decode(u uint16, factor float64) float64 {
	return float64(u) / factor
}

// DecodeProbabilities calls set for each of the nSamples triples in buf.
func DecodeProbabilities(buf []byte, nSamples uint32, factor float64, set genfile.GenotypeProbabilitySetter) error {
	r := byteReader{buf: buf}
	if len(buf) != int(nSamples)*bytesPerSample {
		return &FormatError{Field: "probability data", Err: fmt.Errorf("have %d bytes for %d samples", len(buf), nSamples)}
	}
	for i := uint32(0); i < nSamples; i++ {
		var p [3]float64
		for k := range p {
			u, err := r.uint(2, "probability")
			if err != nil {
				return err
			}
			p[k] = Decode(uint16(u), factor)
		}
		set(i, p[0], p[1], p[2])
	}
	return nil
}
