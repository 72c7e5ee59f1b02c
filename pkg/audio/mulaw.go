package audio

// G.711 mu-law companding. Telephony transports carry 8kHz mu-law, one
// byte per sample.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// LinearToMulaw compands one 16-bit linear sample to a mu-law byte.
func LinearToMulaw(sample int16) byte {
	sign := byte(0)
	s := int(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exp := byte(7)
	for mask := 0x4000; (s&mask) == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((s >> (uint(exp) + 3)) & 0x0F)
	return ^(sign | (exp << 4) | mant)
}

// MulawToLinear expands one mu-law byte back to a 16-bit linear sample.
func MulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + mulawBias
	value <<= uint(exp)
	value -= mulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// EncodeMulaw compands a block of linear samples.
func EncodeMulaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = LinearToMulaw(s)
	}
	return out
}

// DecodeMulaw expands a block of mu-law bytes.
func DecodeMulaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = MulawToLinear(b)
	}
	return out
}
