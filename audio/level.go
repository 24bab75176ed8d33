package audio

import "math"

// RMS returns the root-mean-square amplitude of little-endian 16-bit signed
// samples, truncated to an integer. Buffers shorter than one full sample
// report 0. An odd trailing byte is read as a one-byte signed sample.
func RMS(pcm []byte) int {
	if len(pcm) < 2 {
		return 0
	}
	var total float64
	count := 0
	for i := 0; i < len(pcm); i += 2 {
		var s int
		if i+1 < len(pcm) {
			s = int(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		} else {
			s = int(int8(pcm[i]))
		}
		total += float64(s * s)
		count++
	}
	return int(math.Sqrt(total / float64(count)))
}
