package audio

import (
	"encoding/binary"
	"fmt"
)

// PCM is decoded linear audio with its native rate and channel count.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DecodeWAV parses a RIFF/WAVE payload. The data chunk is located by
// walking chunks; headers emitted by synthesis vendors often carry
// extra chunks before data, so a fixed offset would read garbage.
func DecodeWAV(b []byte) (PCM, error) {
	if !looksLikeWAV(b) {
		return PCM{}, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		audioFormat   int
		data          []byte
	)

	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		pos += 8
		if size < 0 || pos+size > len(b) {
			size = len(b) - pos
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			audioFormat = int(binary.LittleEndian.Uint16(b[pos : pos+2]))
			channels = int(binary.LittleEndian.Uint16(b[pos+2 : pos+4]))
			sampleRate = int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(b[pos+14 : pos+16]))
		case "data":
			data = b[pos : pos+size]
		}
		pos += size
		if pos%2 == 1 {
			pos++
		}
		if data != nil && sampleRate != 0 {
			break
		}
	}

	if data == nil {
		return PCM{}, fmt.Errorf("no data chunk")
	}
	if sampleRate <= 0 || channels <= 0 {
		return PCM{}, fmt.Errorf("bad fmt chunk: rate=%d channels=%d", sampleRate, channels)
	}

	switch {
	case audioFormat == 1 && bitsPerSample == 16:
		samples := make([]int16, len(data)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		}
		return PCM{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
	case audioFormat == 7 && bitsPerSample == 8:
		return PCM{Samples: DecodeMulaw(data), SampleRate: sampleRate, Channels: channels}, nil
	default:
		return PCM{}, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", audioFormat, bitsPerSample)
	}
}

// DecodeRawPCM interprets headerless little-endian s16 audio at the
// given rate and channel count.
func DecodeRawPCM(b []byte, sampleRate, channels int) PCM {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return PCM{Samples: samples, SampleRate: sampleRate, Channels: channels}
}
