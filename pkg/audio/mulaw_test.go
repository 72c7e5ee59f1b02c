package audio

import "testing"

func TestMulawRoundTripBounded(t *testing.T) {
	cases := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32635, -32635}
	for _, s := range cases {
		got := MulawToLinear(LinearToMulaw(s))
		diff := int(got) - int(s)
		if diff < 0 {
			diff = -diff
		}
		// mu-law quantization error grows with magnitude, worst case
		// step is about 1/16 of the segment span.
		limit := int(s)
		if limit < 0 {
			limit = -limit
		}
		limit = limit/16 + 64
		if diff > limit {
			t.Errorf("round trip %d -> %d, error %d exceeds %d", s, got, diff, limit)
		}
	}
}

func TestMulawClipsExtremes(t *testing.T) {
	hi := MulawToLinear(LinearToMulaw(32767))
	lo := MulawToLinear(LinearToMulaw(-32768))
	if hi < 30000 {
		t.Fatalf("positive extreme decoded to %d", hi)
	}
	if lo > -30000 {
		t.Fatalf("negative extreme decoded to %d", lo)
	}
}

func TestMulawQuietSamplesStayQuiet(t *testing.T) {
	for s := int16(-64); s <= 64; s++ {
		got := MulawToLinear(LinearToMulaw(s))
		diff := int(got) - int(s)
		if diff < 0 {
			diff = -diff
		}
		if diff > 8 {
			t.Fatalf("quiet sample %d decoded to %d", s, got)
		}
	}
}

func TestEncodeDecodeBlocks(t *testing.T) {
	in := []int16{0, 500, -500, 12000, -12000}
	enc := EncodeMulaw(in)
	if len(enc) != len(in) {
		t.Fatalf("encoded length %d, want %d", len(enc), len(in))
	}
	dec := DecodeMulaw(enc)
	if len(dec) != len(in) {
		t.Fatalf("decoded length %d, want %d", len(dec), len(in))
	}
}
