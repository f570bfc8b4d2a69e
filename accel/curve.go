package accel

import (
	"math"

	"github.com/sarchlab/tensorbench/fixed"
)

// TransferCurve is the exact transfer function of an elementwise unit, one
// output per Q0.7 input, indexed by the input's bit pattern.
type TransferCurve [256]int8

// Apply maps one input through the curve.
func (c *TransferCurve) Apply(x int8) int8 {
	return c[uint8(x)]
}

// CurveFunc builds a curve by evaluating f at every Q0.7 input.
func CurveFunc(f func(x int8) int8) *TransferCurve {
	var c TransferCurve
	for v := math.MinInt8; v <= math.MaxInt8; v++ {
		c[uint8(int8(v))] = f(int8(v))
	}

	return &c
}

// ReLUCurve returns max(x, 0).
func ReLUCurve() *TransferCurve {
	return CurveFunc(func(x int8) int8 {
		if x < 0 {
			return 0
		}
		return x
	})
}

// LogisticCurve returns the quantized logistic function 1/(1+exp(-gain*x))
// with x read as Q0.7. Outputs above 127/128 saturate.
func LogisticCurve(gain float64) *TransferCurve {
	return CurveFunc(func(x int8) int8 {
		v := fixed.Dequantize(fixed.Q07(x))
		return int8(fixed.Quantize(1 / (1 + math.Exp(-gain*v))))
	})
}
