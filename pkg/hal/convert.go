package hal

import (
	"encoding/binary"
	"math"
)

// decodeS16 converts little-endian 16-bit PCM into samples
func decodeS16(in []byte, out []int16) int {
	n := len(in) / 2
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(in[i*2:]))
	}
	return n
}

// decodeS32 narrows 32-bit microphone words to 16 bits by an arithmetic
// right shift, saturating at the int16 range.
func decodeS32(in []byte, out []int16, shift int) int {
	n := len(in) / 4
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		v := int32(binary.LittleEndian.Uint32(in[i*4:])) >> uint(shift)
		out[i] = saturate(v)
	}
	return n
}

func encodeS16(in []int16, out []byte) {
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
}

func encodeS32(in []int16, out []byte) {
	for i, s := range in {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(s)<<16))
	}
}

func saturate(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
