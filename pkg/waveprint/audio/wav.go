package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV reports a file that is not a readable RIFF/WAVE stream.
	ErrInvalidWAV = errors.New("audio: not a valid WAV file")
	// ErrUnsupportedDepth reports a PCM bit depth outside 8/16/24/32.
	ErrUnsupportedDepth = errors.New("audio: unsupported bit depth")
)

// ReadWAV decodes a WAV file into a mono float64 buffer in [-1, 1] and
// reports its sample rate. Multi-channel audio is mixed down by channel
// averaging.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	samples, err := PCMToFloat(buf.Data, depth)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	if n := buf.Format.NumChannels; n > 1 {
		samples = MixDown(samples, n)
	}
	return samples, buf.Format.SampleRate, nil
}

// PCMToFloat converts interleaved integer PCM samples to normalized
// floats, dividing by the full scale of the source depth (16-bit sample
// s maps to s/32768).
func PCMToFloat(data []int, bitDepth int) ([]float64, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedDepth, bitDepth)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v) / scale
	}
	return out, nil
}

// MixDown folds interleaved multi-channel samples to mono by averaging
// each frame's channels.
func MixDown(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
