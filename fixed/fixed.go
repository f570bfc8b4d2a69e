// Package fixed implements the Q0.7 signed fixed-point format used by the
// tensor accelerators.
//
// A Q0.7 value is an int8 read as q/128. The range is asymmetric: -128 is
// the only encoding of -1.0 and there is no +1.0.
package fixed

import (
	"fmt"
	"io"
	"math"
)

// Q07 is a signed Q0.7 fixed-point value.
type Q07 int8

const (
	// Min is the smallest Q0.7 value, -1.0.
	Min Q07 = -128
	// Max is the largest Q0.7 value, 127/128.
	Max Q07 = 127
	// Scale is the number of steps per unit.
	Scale = 128
)

// MaxReal is the largest real number representable in Q0.7.
const MaxReal = float64(Max) / Scale

// Saturate clamps an integer to the int8 range.
func Saturate(v int) int8 {
	if v > math.MaxInt8 {
		return math.MaxInt8
	}
	if v < math.MinInt8 {
		return math.MinInt8
	}
	return int8(v)
}

// Quantize converts a real number to Q0.7. The product x*128 is rounded half
// away from zero and then saturated. NaN quantizes to zero.
func Quantize(x float64) Q07 {
	if math.IsNaN(x) {
		return 0
	}

	y := x * Scale
	if y >= float64(Max) {
		return Max
	}
	if y <= float64(Min) {
		return Min
	}

	return Q07(Saturate(int(math.Round(y))))
}

// Dequantize converts a Q0.7 value to a real number.
func Dequantize(q Q07) float64 {
	return float64(q) / Scale
}

// Float returns the real value of q.
func (q Q07) Float() float64 {
	return Dequantize(q)
}

// String formats q with Format.
func (q Q07) String() string {
	return Format(q)
}

// Format renders q as sign, integer digit, '.', and three fraction digits,
// using integer arithmetic only. Format(-128) is "-1.000" and Format(127) is
// "+0.992".
func Format(q Q07) string {
	sign := byte('+')
	v := int(q)
	if v < 0 {
		sign = '-'
		v = -v
	}

	ip := 0
	frac := 0
	if v == Scale {
		ip = 1
	} else {
		frac = (v*1000 + Scale/2) / Scale
	}

	if frac == 1000 {
		ip++
		frac = 0
	}

	return fmt.Sprintf("%c%d.%03d", sign, ip, frac)
}

// QuantizeSlice clips every value to [-1, MaxReal] and quantizes it.
func QuantizeSlice(values []float64) []int8 {
	out := make([]int8, len(values))
	for i, v := range values {
		v = math.Max(-1, math.Min(v, MaxReal))
		out[i] = int8(Quantize(v))
	}

	return out
}

// WriteArray writes a named array of int8 values as comma separated decimal
// text, 20 values per line.
func WriteArray(w io.Writer, name string, values []int8) error {
	if _, err := fmt.Fprintln(w, name); err != nil {
		return err
	}

	for i, v := range values {
		sep := ""
		if i != len(values)-1 {
			sep = ", "
		}
		if (i+1)%20 == 0 || i == len(values)-1 {
			sep = sep + "\n"
		}

		if _, err := fmt.Fprintf(w, "%d%s", v, sep); err != nil {
			return err
		}
	}

	return nil
}
