package tensor

import "fmt"

// LanesPerWord is the number of int8 elements carried by one packed word.
const LanesPerWord = 4

// WordCount returns the number of packed words needed for count elements.
func WordCount(count int) int {
	return (count + LanesPerWord - 1) / LanesPerWord
}

// Pack4 packs four elements into one word, b0 in the low byte lane. Each
// element keeps its two's-complement bit pattern.
func Pack4(b0, b1, b2, b3 int8) uint32 {
	return uint32(uint8(b0)) |
		uint32(uint8(b1))<<8 |
		uint32(uint8(b2))<<16 |
		uint32(uint8(b3))<<24
}

// Lane returns byte lane j of word w as a signed element.
func Lane(w uint32, j int) int8 {
	return int8(uint8(w >> (8 * uint(j))))
}

// SetLane returns w with byte lane j replaced by v.
func SetLane(w uint32, j int, v int8) uint32 {
	shift := 8 * uint(j)
	return w&^(0xFF<<shift) | uint32(uint8(v))<<shift
}

// Pack serializes the first count elements into WordCount(count) words.
// Lanes past count in the last word are zero.
func Pack(elems []int8, count int) []uint32 {
	words := make([]uint32, WordCount(count))
	PackInto(words, elems, count)

	return words
}

// PackInto packs into a caller-supplied buffer and returns the number of
// words written.
func PackInto(dst []uint32, elems []int8, count int) int {
	if count > len(elems) {
		panic(fmt.Sprintf("pack %d elements from a slice of %d", count, len(elems)))
	}

	n := WordCount(count)
	if len(dst) < n {
		panic(fmt.Sprintf("pack needs %d words, buffer holds %d", n, len(dst)))
	}

	for i := 0; i < n; i++ {
		var w uint32
		for j := 0; j < LanesPerWord; j++ {
			idx := i*LanesPerWord + j
			if idx < count {
				w = SetLane(w, j, elems[idx])
			}
		}
		dst[i] = w
	}

	return n
}

// Unpack deserializes count elements from packed words.
func Unpack(words []uint32, count int) []int8 {
	out := make([]int8, count)
	UnpackInto(out, words, count)

	return out
}

// UnpackInto unpacks into a caller-supplied buffer. Elements past count are
// left untouched.
func UnpackInto(dst []int8, words []uint32, count int) {
	if len(dst) < count {
		panic(fmt.Sprintf("unpack %d elements into a buffer of %d", count, len(dst)))
	}
	if len(words) < WordCount(count) {
		panic(fmt.Sprintf("unpack %d elements from %d words", count, len(words)))
	}

	for i := 0; i < count; i++ {
		dst[i] = Lane(words[i/LanesPerWord], i%LanesPerWord)
	}
}
