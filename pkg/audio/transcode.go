// Package audio converts between the telephony codec (8-bit mu-law) and the
// model codec (16-bit linear PCM, little-endian) and resamples between the
// 8kHz, 16kHz and 24kHz rates the two legs negotiate.
package audio

import (
	"fmt"

	"github.com/hanavoice/hana/pkg/errorsx"
)

type Encoding string

const (
	EncodingMuLaw Encoding = "mulaw"
	EncodingPCM16 Encoding = "pcm16"
)

// Format describes one leg's audio wire format.
type Format struct {
	Encoding   Encoding
	SampleRate int
}

var (
	MuLaw8k  = Format{Encoding: EncodingMuLaw, SampleRate: 8000}
	PCM16k   = Format{Encoding: EncodingPCM16, SampleRate: 16000}
	PCM24k   = Format{Encoding: EncodingPCM16, SampleRate: 24000}
	PCM8k    = Format{Encoding: EncodingPCM16, SampleRate: 8000}
)

func (f Format) String() string {
	return fmt.Sprintf("%s_%d", f.Encoding, f.SampleRate)
}

// EncodeOutbound converts one frame from the telephony format to the model
// format. When from == to the input slice is returned untouched.
func EncodeOutbound(frame []byte, from, to Format) ([]byte, error) {
	return transcode(frame, from, to)
}

// DecodeInbound converts one frame from the model format to the telephony
// format. Symmetric to EncodeOutbound.
func DecodeInbound(frame []byte, from, to Format) ([]byte, error) {
	return transcode(frame, from, to)
}

func transcode(frame []byte, from, to Format) ([]byte, error) {
	if from == to {
		return frame, nil
	}
	samples, err := decodeSamples(frame, from.Encoding)
	if err != nil {
		return nil, err
	}
	samples = resample(samples, from.SampleRate, to.SampleRate)
	return encodeSamples(samples, to.Encoding), nil
}

func decodeSamples(frame []byte, enc Encoding) ([]int16, error) {
	switch enc {
	case EncodingMuLaw:
		out := make([]int16, len(frame))
		for i, b := range frame {
			out[i] = muLawToLinear(b)
		}
		return out, nil
	case EncodingPCM16:
		if len(frame)%2 != 0 {
			return nil, errorsx.Wrap(fmt.Errorf("pcm16 frame length %d is not sample aligned", len(frame)), errorsx.ReasonCodecFrame)
		}
		out := make([]int16, len(frame)/2)
		for i := range out {
			out[i] = int16(frame[i*2]) | int16(frame[i*2+1])<<8
		}
		return out, nil
	default:
		return nil, errorsx.Wrap(fmt.Errorf("unsupported encoding %q", enc), errorsx.ReasonCodecFrame)
	}
}

func encodeSamples(samples []int16, enc Encoding) []byte {
	switch enc {
	case EncodingMuLaw:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = linearToMuLaw(s)
		}
		return out
	default:
		out := make([]byte, len(samples)*2)
		for i, s := range samples {
			out[i*2] = byte(s)
			out[i*2+1] = byte(uint16(s) >> 8)
		}
		return out
	}
}

// resample converts between rates by linear interpolation. It handles the
// non-integer 16k/24k ratio as well as the integer 8k cases.
func resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		s0 := float64(samples[j])
		s1 := float64(samples[j+1])
		out[i] = int16(s0 + (s1-s0)*frac)
	}
	return out
}

const muLawBias = 0x84

func muLawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := int16(mantissa<<3|muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

func linearToMuLaw(sample int16) byte {
	const clip = 32635
	sign := uint8(0)
	s := int32(sample)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += muLawBias
	exponent := uint8(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := uint8((s >> (exponent + 3)) & 0x0F)
	return ^(sign | (exponent << 4) | mantissa)
}
