package fingerprint

import "math"

// HammingWindow returns the n-point Hamming window
// w[i] = 0.54 - 0.46*cos(2*pi*i/(n-1)).
func HammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Frames slices the buffer into hop-aligned windows and applies the
// Hamming window to each. A buffer shorter than one window yields no
// frames; the trailing partial frame is dropped, never zero-padded.
func Frames(samples []float64, cfg Config) [][]float64 {
	w, h := cfg.WindowSize, cfg.HopSize
	if len(samples) < w {
		return nil
	}

	n := (len(samples)-w)/h + 1
	win := HammingWindow(w)

	frames := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		off := i * h
		frame := make([]float64, w)
		copy(frame, samples[off:off+w])
		for j := range frame {
			frame[j] *= win[j]
		}
		frames = append(frames, frame)
	}
	return frames
}

// Spectrogram computes the STFT magnitude field S[t][f] for
// f in [0, WindowSize/2). Magnitudes are raw |X[k]| = sqrt(re^2+im^2);
// no log scaling and no normalization is applied.
func Spectrogram(samples []float64, cfg Config) ([][]float64, error) {
	frames := Frames(samples, cfg)

	spec := make([][]float64, 0, len(frames))
	im := make([]float64, cfg.WindowSize)

	for _, frame := range frames {
		for i := range im {
			im[i] = 0
		}
		if err := FFT(frame, im); err != nil {
			return nil, err
		}

		row := make([]float64, cfg.WindowSize/2)
		for k := range row {
			row[k] = math.Sqrt(frame[k]*frame[k] + im[k]*im[k])
		}
		spec = append(spec, row)
	}
	return spec, nil
}
