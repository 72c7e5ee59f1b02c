package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// ffmpegTranscode shells out to ffmpeg as the fallback path when the
// built-in decoders cannot handle a payload. Output is raw 8kHz mono
// mu-law, the same shape the built-in path produces.
func ffmpegTranscode(ctx context.Context, ffmpegPath string, data []byte, targetRate int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "mulaw",
		"-ar", fmt.Sprintf("%d", targetRate),
		"-ac", "1",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg transcode failed: %w: %s", err, stderr.String())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio")
	}
	return out, nil
}
