package audio

import "encoding/binary"

// Int16ToBytes encodes samples as little-endian 16-bit PCM
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian 16-bit PCM. A trailing odd byte is
// ignored.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
