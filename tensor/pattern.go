package tensor

// The generators below are closed-form in the element position so every run
// sees the same inputs. Values wrap to int8 the way the firmware casts do.

// FillPattern returns A[r,c] = (7r + 3c) - 64.
func FillPattern(n int) *Tensor {
	t := New(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			t.Set(r, c, int8(7*r+3*c-64))
		}
	}

	return t
}

// Offset returns a tensor with every element of t shifted by d.
func Offset(t *Tensor, d int) *Tensor {
	out := New(t.N)
	for i, v := range t.Data {
		out.Data[i] = int8(int(v) + d)
	}

	return out
}

// RampPattern fills packed word w with 4w-128, 4w-112, 4w-96, 4w-80 in lanes
// 0 to 3. It sweeps the whole Q0.7 input range of the activation units.
func RampPattern(n int) *Tensor {
	t := New(n)
	for i := range t.Data {
		w := i / LanesPerWord
		j := i % LanesPerWord
		t.Data[i] = int8(4*w - 128 + 16*j)
	}

	return t
}

// ModuloPattern returns element i = (i mod m) + offset.
func ModuloPattern(n, m, offset int) *Tensor {
	t := New(n)
	for i := range t.Data {
		t.Data[i] = int8(i%m + offset)
	}

	return t
}

// MakeIncreasingGen returns a generator yielding start+1, start+2, ...
// wrapping at the int8 boundary.
func MakeIncreasingGen(start int8) func() int8 {
	current := start
	return func() int8 {
		current++
		return current
	}
}

// Generate fills a tensor of side n in row-major order from gen.
func Generate(n int, gen func() int8) *Tensor {
	t := New(n)
	for i := range t.Data {
		t.Data[i] = gen()
	}

	return t
}
