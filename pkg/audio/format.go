package audio

// Format is the container or encoding sniffed from synthesized audio.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatPCM Format = "pcm"
)

// DetectFormat sniffs the leading bytes of a vendor payload. Anything
// that is neither MP3 nor WAV is treated as headerless PCM, so the
// caller always gets a usable answer.
func DetectFormat(b []byte) Format {
	if looksLikeMP3(b) {
		return FormatMP3
	}
	if looksLikeWAV(b) {
		return FormatWAV
	}
	return FormatPCM
}

func looksLikeMP3(b []byte) bool {
	return (len(b) >= 3 && string(b[:3]) == "ID3") ||
		(len(b) >= 2 && b[0] == 0xFF && (b[1]&0xE0) == 0xE0)
}

func looksLikeWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}
