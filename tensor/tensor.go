// Package tensor defines the square int8 tensors exchanged with the
// accelerators and the word packing used by the tensor windows.
package tensor

import (
	"fmt"

	"github.com/sarchlab/tensorbench/fixed"
)

// Tensor is a square N x N matrix of Q0.7 elements stored row-major.
type Tensor struct {
	N    int
	Data []int8
}

// New creates a zero tensor of side n.
func New(n int) *Tensor {
	if n < 0 {
		panic(fmt.Sprintf("negative tensor side %d", n))
	}

	return &Tensor{N: n, Data: make([]int8, n*n)}
}

// FromSlice wraps data as a tensor of side n. The tensor takes ownership of
// data.
func FromSlice(n int, data []int8) (*Tensor, error) {
	if n < 0 || len(data) != n*n {
		return nil, fmt.Errorf("tensor of side %d needs %d elements, got %d",
			n, n*n, len(data))
	}

	return &Tensor{N: n, Data: data}, nil
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// At returns the element at row r, column c.
func (t *Tensor) At(r, c int) int8 {
	return t.Data[r*t.N+c]
}

// Set writes the element at row r, column c.
func (t *Tensor) Set(r, c int, v int8) {
	t.Data[r*t.N+c] = v
}

// Q returns the element at row r, column c as a Q0.7 value.
func (t *Tensor) Q(r, c int) fixed.Q07 {
	return fixed.Q07(t.At(r, c))
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]int8, len(t.Data))
	copy(data, t.Data)

	return &Tensor{N: t.N, Data: data}
}

// Equal reports whether both tensors have the same side and elements.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.N != o.N || len(t.Data) != len(o.Data) {
		return false
	}

	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}

	return true
}

// Words returns the packed words of the tensor.
func (t *Tensor) Words() []uint32 {
	return Pack(t.Data, len(t.Data))
}
