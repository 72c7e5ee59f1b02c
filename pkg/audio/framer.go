package audio

import "time"

// MulawSilence is the mu-law code for a zero sample, used to pad the
// tail frame to full size.
const MulawSilence = 0xFF

// DefaultFrameBytes is 20ms of 8kHz mu-law.
const DefaultFrameBytes = 160

// DefaultFramePace matches the playout rate of a 160-byte frame.
const DefaultFramePace = 20 * time.Millisecond

// EmitFrames slices a mu-law payload into fixed-size frames and hands
// each one to emit, sleeping pace between frames so the wire stays
// near real time (pace <= 0 disables pacing). Before every frame it
// consults aborted; once it reports true the remaining frames are
// dropped and the number of frames already sent is returned. The tail
// frame is padded with silence so every frame on the wire is the same
// length.
func EmitFrames(data []byte, frameBytes int, pace time.Duration, aborted func() bool, emit func([]byte) error) (int, error) {
	if frameBytes <= 0 {
		frameBytes = DefaultFrameBytes
	}
	sent := 0
	for off := 0; off < len(data); off += frameBytes {
		if aborted != nil && aborted() {
			return sent, nil
		}
		if sent > 0 && pace > 0 {
			time.Sleep(pace)
		}
		end := off + frameBytes
		frame := make([]byte, frameBytes)
		if end <= len(data) {
			copy(frame, data[off:end])
		} else {
			n := copy(frame, data[off:])
			for i := n; i < frameBytes; i++ {
				frame[i] = MulawSilence
			}
		}
		if err := emit(frame); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
