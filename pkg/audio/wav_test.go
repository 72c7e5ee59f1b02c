package audio

import "testing"

func TestDecodeWAVWalksChunks(t *testing.T) {
	samples := []int16{10, -10, 300, -300}
	b := buildWAV(t, samples, 22050, 1)

	pcm, err := DecodeWAV(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pcm.SampleRate != 22050 || pcm.Channels != 1 {
		t.Fatalf("got rate=%d channels=%d", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(pcm.Samples), len(samples))
	}
	for i := range samples {
		if pcm.Samples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, pcm.Samples[i], samples[i])
		}
	}
}

func TestDecodeWAVRejectsNonRIFF(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav at all")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeWAVMissingData(t *testing.T) {
	b := buildWAV(t, []int16{1}, 8000, 1)
	// Truncate away the data chunk.
	b = b[:12]
	if _, err := DecodeWAV(b); err == nil {
		t.Fatal("expected error for missing data chunk")
	}
}

func TestDecodeRawPCMOddLength(t *testing.T) {
	pcm := DecodeRawPCM([]byte{0x01, 0x00, 0x02}, 24000, 1)
	if len(pcm.Samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(pcm.Samples))
	}
	if pcm.SampleRate != 24000 {
		t.Fatalf("rate = %d", pcm.SampleRate)
	}
}
