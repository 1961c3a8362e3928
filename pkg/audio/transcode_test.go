package audio

import (
	"bytes"
	"testing"

	"github.com/hanavoice/hana/pkg/errorsx"
)

func TestSameFormatPassThrough(t *testing.T) {
	frame := []byte{0x00, 0x7F, 0xFF, 0x80, 0x42}
	out, err := EncodeOutbound(frame, MuLaw8k, MuLaw8k)
	if err != nil {
		t.Fatalf("transcode error: %v", err)
	}
	if !bytes.Equal(out, frame) {
		t.Fatalf("pass-through must be byte-exact")
	}
}

func TestMuLawRoundTrip(t *testing.T) {
	for _, s := range []int16{0, 988, -988, 8000, -8000, 30000} {
		enc := linearToMuLaw(s)
		dec := muLawToLinear(enc)
		diff := int(dec) - int(s)
		if diff < 0 {
			diff = -diff
		}
		limit := 16 + abs(int(s))/16
		if diff > limit {
			t.Fatalf("sample %d decoded to %d (diff %d > %d)", s, dec, diff, limit)
		}
	}
}

func TestMuLawSilence(t *testing.T) {
	if enc := linearToMuLaw(0); enc != 0xFF {
		t.Fatalf("expected 0xFF for zero sample, got %#x", enc)
	}
	if dec := muLawToLinear(0xFF); dec != 0 {
		t.Fatalf("expected 0 for mu-law silence, got %d", dec)
	}
}

func TestOddPCMFrameRejected(t *testing.T) {
	_, err := DecodeInbound([]byte{1, 2, 3}, PCM24k, MuLaw8k)
	if err == nil {
		t.Fatalf("expected error for unaligned pcm frame")
	}
	if !errorsx.HasReason(err, errorsx.ReasonCodecFrame) {
		t.Fatalf("expected codec reason, got %s", errorsx.Reason(err))
	}
}

func TestTelephonyToModelLength(t *testing.T) {
	// 20ms of mu-law at 8kHz becomes 20ms of PCM16 at 16kHz.
	frame := bytes.Repeat([]byte{0xFF}, 160)
	out, err := EncodeOutbound(frame, MuLaw8k, PCM16k)
	if err != nil {
		t.Fatalf("transcode error: %v", err)
	}
	if len(out) != 160*2*2 {
		t.Fatalf("expected %d bytes, got %d", 160*2*2, len(out))
	}
}

func TestModelToTelephonyLength(t *testing.T) {
	// 24kHz PCM16 downsamples 3:1 into mu-law bytes.
	frame := make([]byte, 480*2)
	out, err := DecodeInbound(frame, PCM24k, MuLaw8k)
	if err != nil {
		t.Fatalf("transcode error: %v", err)
	}
	if len(out) != 160 {
		t.Fatalf("expected 160 bytes, got %d", len(out))
	}
}

func TestResampleRatio(t *testing.T) {
	in := []int16{0, 100, 200, 300, 400, 500}
	out := resample(in, 16000, 24000)
	if len(out) != 9 {
		t.Fatalf("expected 9 samples, got %d", len(out))
	}
	if out[0] != 0 {
		t.Fatalf("first sample must be preserved, got %d", out[0])
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
