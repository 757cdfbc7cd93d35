package match

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/waveprintlabs/waveprint/pkg/models"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/fingerprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/storage"
)

// Store is the slice of the posting-store contract the matcher needs.
type Store interface {
	Lookup(ctx context.Context, hashes []uint64) (map[string][]models.Posting, error)
	GetSong(ctx context.Context, id string) (models.Song, error)
}

// Matcher ranks candidate songs for a query fingerprint list by
// temporal coherence: a true match shifts every anchor pair by the same
// delta between query clock and song clock, so the genuine alignment
// stands out as the dominant bin of the offset histogram.
type Matcher struct {
	store Store
	cfg   fingerprint.Config
}

func New(store Store, cfg fingerprint.Config) *Matcher {
	return &Matcher{store: store, cfg: cfg}
}

// Rank scores every candidate with at least MinMatchingHashes postings
// and returns those clearing MinConfidence, best first. An empty result
// is a value, not an error. Every (hash, time) occurrence of the query
// participates in scoring, so repeated hashes inside a long query are
// not collapsed.
func (m *Matcher) Rank(ctx context.Context, query []models.Fingerprint) ([]models.Match, error) {
	if len(query) == 0 {
		return nil, nil
	}

	qtimes := make(map[uint64][]uint32)
	hashes := make([]uint64, 0, len(query))
	for _, q := range query {
		if _, ok := qtimes[q.Hash]; !ok {
			hashes = append(hashes, q.Hash)
		}
		qtimes[q.Hash] = append(qtimes[q.Hash], q.AnchorTime)
	}

	bySong, err := m.store.Lookup(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("looking up query hashes: %w", err)
	}

	songIDs := make([]string, 0, len(bySong))
	for id := range bySong {
		songIDs = append(songIDs, id)
	}
	sort.Strings(songIDs)

	var results []models.Match
	for _, songID := range songIDs {
		postings := bySong[songID]
		if len(postings) < m.cfg.MinMatchingHashes {
			continue
		}

		confidence, offset, ok := m.score(postings, qtimes, len(query))
		if !ok || confidence < m.cfg.MinConfidence {
			continue
		}

		song, err := m.store.GetSong(ctx, songID)
		if err != nil {
			if errors.Is(err, storage.ErrSongNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolving candidate %s: %w", songID, err)
		}

		results = append(results, models.Match{
			Song:       song,
			Confidence: confidence,
			MatchCount: len(postings),
			Offset:     offset,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].MatchCount > results[j].MatchCount
	})
	return results, nil
}

// Top returns at most n ranked matches.
func (m *Matcher) Top(ctx context.Context, query []models.Fingerprint, n int) ([]models.Match, error) {
	results, err := m.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	if n < len(results) {
		results = results[:n]
	}
	return results, nil
}

// score builds the offset histogram for one candidate and measures the
// coherent mass around its dominant bin.
func (m *Matcher) score(postings []models.Posting, qtimes map[uint64][]uint32, querySize int) (float64, int32, bool) {
	hist := make(map[int32]int)
	for _, p := range postings {
		for _, tq := range qtimes[p.Hash] {
			hist[int32(p.AnchorTime)-int32(tq)]++
		}
	}
	if len(hist) == 0 {
		return 0, 0, false
	}

	deltas := make([]int32, 0, len(hist))
	for d := range hist {
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })

	// Dominant bin; ties resolve to the smallest delta.
	best := deltas[0]
	for _, d := range deltas[1:] {
		if hist[d] > hist[best] {
			best = d
		}
	}

	tolerance := int32(m.cfg.TimeDeltaTolerance)
	coherent := 0
	for _, d := range deltas {
		if d >= best-tolerance && d <= best+tolerance {
			coherent += hist[d]
		}
	}

	confidence := float64(coherent) / float64(querySize)
	if confidence > 1 {
		confidence = 1
	}
	return confidence, best, true
}
