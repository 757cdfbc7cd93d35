package fingerprint

// Peak is a salient time-frequency point of the constellation.
type Peak struct {
	Time      int // STFT frame index
	Freq      int // frequency bin index
	Magnitude float64
}

// bandBins converts the configured band edges from Hz to bin indices.
func bandBins(cfg Config) []int {
	edges := make([]int, len(cfg.FreqBandEdges))
	for i, f := range cfg.FreqBandEdges {
		edges[i] = cfg.FreqBin(f)
	}
	return edges
}

// ExtractPeaks selects local maxima of the magnitude field, searched
// band by band so peaks spread across the spectrum. A point survives iff
// its magnitude exceeds PeakThreshold and no neighbor within the clipped
// square of radius PeakNeighborhood is strictly greater; ties at the
// neighborhood boundary remain peaks. Emission order is frame ascending,
// band ascending, bin ascending, which the hasher relies on.
func ExtractPeaks(spec [][]float64, cfg Config) []Peak {
	if len(spec) == 0 || len(spec[0]) == 0 {
		return nil
	}

	numFrames := len(spec)
	numBins := len(spec[0])
	edges := bandBins(cfg)

	var peaks []Peak
	for t := 0; t < numFrames; t++ {
		for b := 0; b+1 < len(edges); b++ {
			start := edges[b]
			end := edges[b+1]
			if end > numBins {
				end = numBins
			}
			for f := start; f < end; f++ {
				mag := spec[t][f]
				if mag <= cfg.PeakThreshold {
					continue
				}
				if isLocalMax(spec, t, f, cfg.PeakNeighborhood) {
					peaks = append(peaks, Peak{Time: t, Freq: f, Magnitude: mag})
				}
			}
		}
	}
	return peaks
}

func isLocalMax(spec [][]float64, t, f, radius int) bool {
	v := spec[t][f]
	numFrames := len(spec)
	numBins := len(spec[0])

	for dt := -radius; dt <= radius; dt++ {
		nt := t + dt
		if nt < 0 || nt >= numFrames {
			continue
		}
		for df := -radius; df <= radius; df++ {
			if dt == 0 && df == 0 {
				continue
			}
			nf := f + df
			if nf < 0 || nf >= numBins {
				continue
			}
			if spec[nt][nf] > v {
				return false
			}
		}
	}
	return true
}
