package fingerprint

import "testing"

// emptySpec returns a zeroed magnitude field with the default bin count.
func emptySpec(frames int, cfg Config) [][]float64 {
	spec := make([][]float64, frames)
	for i := range spec {
		spec[i] = make([]float64, cfg.WindowSize/2)
	}
	return spec
}

func TestExtractPeaksEmptySpectrogram(t *testing.T) {
	cfg := DefaultConfig()
	if peaks := ExtractPeaks(nil, cfg); len(peaks) != 0 {
		t.Errorf("expected no peaks from nil spectrogram, got %d", len(peaks))
	}
	if peaks := ExtractPeaks([][]float64{}, cfg); len(peaks) != 0 {
		t.Errorf("expected no peaks from empty spectrogram, got %d", len(peaks))
	}
}

func TestExtractPeaksSingleSpike(t *testing.T) {
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[5][100] = 1.0

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1", len(peaks))
	}
	if peaks[0].Time != 5 || peaks[0].Freq != 100 {
		t.Errorf("peak at (%d, %d), want (5, 100)", peaks[0].Time, peaks[0].Freq)
	}
	if peaks[0].Magnitude != 1.0 {
		t.Errorf("peak magnitude %g, want 1.0", peaks[0].Magnitude)
	}
}

func TestExtractPeaksThreshold(t *testing.T) {
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[5][100] = 0.4
	spec[10][200] = 0.5 // must strictly exceed the threshold

	if peaks := ExtractPeaks(spec, cfg); len(peaks) != 0 {
		t.Errorf("sub-threshold spikes produced %d peaks", len(peaks))
	}
}

func TestExtractPeaksIgnoresOutOfBandBins(t *testing.T) {
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[5][1] = 10.0    // below the 40 Hz edge
	spec[5][1000] = 10.0 // above the 5 kHz edge

	if peaks := ExtractPeaks(spec, cfg); len(peaks) != 0 {
		t.Errorf("out-of-band spikes produced %d peaks", len(peaks))
	}
}

func TestExtractPeaksSuppressedByNeighbor(t *testing.T) {
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[5][100] = 2.0
	spec[6][105] = 1.0 // inside the radius-10 square of the stronger point

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1", len(peaks))
	}
	if peaks[0].Freq != 100 {
		t.Errorf("surviving peak at bin %d, want 100", peaks[0].Freq)
	}
}

func TestExtractPeaksTiesArePeaks(t *testing.T) {
	// Equal magnitudes inside one neighborhood: strict > is required to
	// reject, so both survive.
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[5][100] = 1.0
	spec[5][105] = 1.0

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2", len(peaks))
	}
}

func TestExtractPeaksClippedNeighborhood(t *testing.T) {
	// A peak in the first frame at the lowest searchable bin has most of
	// its neighborhood outside the array; it still qualifies.
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	lowest := cfg.FreqBin(cfg.FreqBandEdges[0])
	spec[0][lowest] = 1.0

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1", len(peaks))
	}
	if peaks[0].Time != 0 || peaks[0].Freq != lowest {
		t.Errorf("peak at (%d, %d), want (0, %d)", peaks[0].Time, peaks[0].Freq, lowest)
	}
}

func TestExtractPeaksEmissionOrder(t *testing.T) {
	// Frames ascending, bands ascending, bins ascending.
	cfg := DefaultConfig()
	spec := emptySpec(25, cfg)
	spec[3][300] = 1.0
	spec[3][50] = 1.0
	spec[7][20] = 1.0

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) != 3 {
		t.Fatalf("got %d peaks, want 3", len(peaks))
	}

	want := []struct{ t, f int }{{3, 50}, {3, 300}, {7, 20}}
	for i, w := range want {
		if peaks[i].Time != w.t || peaks[i].Freq != w.f {
			t.Errorf("peak %d at (%d, %d), want (%d, %d)",
				i, peaks[i].Time, peaks[i].Freq, w.t, w.f)
		}
	}
}

func TestBandBins(t *testing.T) {
	cfg := DefaultConfig()
	edges := bandBins(cfg)

	if len(edges) != len(cfg.FreqBandEdges) {
		t.Fatalf("got %d edges, want %d", len(edges), len(cfg.FreqBandEdges))
	}
	// round(40 * 4096 / 44100) = 4; round(5000 * 4096 / 44100) = 464
	if edges[0] != 4 {
		t.Errorf("lowest edge bin %d, want 4", edges[0])
	}
	if edges[len(edges)-1] != 464 {
		t.Errorf("highest edge bin %d, want 464", edges[len(edges)-1])
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			t.Errorf("edges not strictly ascending at %d: %v", i, edges)
		}
	}
}
