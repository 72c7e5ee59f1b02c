package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MPEG audio payload to linear PCM. The decoder
// always emits 16-bit stereo at the stream's native rate.
func DecodeMP3(b []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return PCM{}, fmt.Errorf("open mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3 stream: %w", err)
	}
	if len(raw) < 4 {
		return PCM{}, fmt.Errorf("mp3 stream produced no audio")
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return PCM{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}
