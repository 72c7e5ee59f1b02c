package audio

// DownmixMono averages interleaved channels into a single channel.
func DownmixMono(p PCM) PCM {
	if p.Channels <= 1 {
		return p
	}
	ch := p.Channels
	n := len(p.Samples) / ch
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += int(p.Samples[i*ch+c])
		}
		out[i] = int16(sum / ch)
	}
	return PCM{Samples: out, SampleRate: p.SampleRate, Channels: 1}
}

// Resample converts mono PCM to the target rate by linear
// interpolation. Good enough for narrowband telephony output.
func Resample(p PCM, targetRate int) PCM {
	if p.SampleRate == targetRate || len(p.Samples) == 0 {
		return PCM{Samples: p.Samples, SampleRate: targetRate, Channels: p.Channels}
	}
	ratio := float64(p.SampleRate) / float64(targetRate)
	n := int(float64(len(p.Samples)) / ratio)
	if n < 1 {
		n = 1
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(p.Samples)-1 {
			out[i] = p.Samples[len(p.Samples)-1]
			continue
		}
		frac := pos - float64(j)
		a := float64(p.Samples[j])
		b := float64(p.Samples[j+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return PCM{Samples: out, SampleRate: targetRate, Channels: p.Channels}
}
