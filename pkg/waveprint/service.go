package waveprint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/waveprintlabs/waveprint/pkg/models"
	"github.com/waveprintlabs/waveprint/pkg/utils"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/audio"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/fingerprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/match"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/storage"
)

var (
	// ErrBufferTooShort reports ingest audio shorter than one FFT window.
	ErrBufferTooShort = errors.New("waveprint: buffer shorter than one analysis window")
	// ErrDuplicateSong reports ingest audio whose content is already indexed.
	ErrDuplicateSong = errors.New("waveprint: identical audio already ingested")
)

// Interface checks for the bundled store backends.
var (
	_ PostingStore = (*storage.MemoryStore)(nil)
	_ PostingStore = (*storage.SQLiteStore)(nil)
	_ PostingStore = (*storage.BadgerStore)(nil)
)

type service struct {
	store   PostingStore
	matcher *match.Matcher
	log     Logger
	cfg     *Config

	mu          sync.Mutex
	contentSeen map[uint64]string // content hash -> song ID, this process only
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("creating default store: %w", err)
		}
	}

	return &service{
		store:       store,
		matcher:     match.New(store, cfg.Fingerprint),
		log:         cfg.Logger,
		cfg:         cfg,
		contentSeen: make(map[uint64]string),
	}, nil
}

// AddSong fingerprints a sample buffer and persists the song with its
// postings. The buffer is peak-normalized first so the absolute peak
// threshold sees consistent gain. A posting-store failure rolls the song
// record back; no partial state survives.
func (s *service) AddSong(ctx context.Context, samples []float64, title, artist, filePath string) (models.Song, error) {
	if len(samples) < s.cfg.Fingerprint.WindowSize {
		return models.Song{}, ErrBufferTooShort
	}

	norm := audio.Normalize(samples)

	sum := utils.ContentHash(norm)
	if !s.cfg.AllowDuplicates {
		s.mu.Lock()
		prior, dup := s.contentSeen[sum]
		s.mu.Unlock()
		if dup {
			s.log.Warnf("audio for %q already ingested as song %s", title, prior)
			existing, err := s.store.GetSong(ctx, prior)
			if err != nil {
				return models.Song{}, ErrDuplicateSong
			}
			return existing, ErrDuplicateSong
		}
	}

	song := models.Song{
		ID:       utils.NewID(),
		Title:    title,
		Artist:   artist,
		FilePath: filePath,
		Duration: float64(len(samples)) / float64(s.cfg.Fingerprint.SampleRate),
	}

	fps, err := fingerprint.Generate(norm, song.ID, s.cfg.Fingerprint)
	if err != nil {
		return models.Song{}, fmt.Errorf("fingerprinting %q: %w", title, err)
	}
	s.log.Infof("song %q: %d hashes from %.1fs of audio", title, len(fps), song.Duration)

	if err := s.store.InsertSong(ctx, song); err != nil {
		return models.Song{}, fmt.Errorf("registering song: %w", err)
	}

	postings := make([]models.Posting, len(fps))
	for i, fp := range fps {
		postings[i] = models.Posting{Hash: fp.Hash, AnchorTime: fp.AnchorTime}
	}
	if err := s.store.InsertPostings(ctx, song.ID, postings); err != nil {
		if delErr := s.store.DeleteSong(ctx, song.ID); delErr != nil {
			s.log.Errorf("rollback of song %s failed: %v", song.ID, delErr)
		}
		return models.Song{}, fmt.Errorf("storing postings: %w", err)
	}

	s.mu.Lock()
	s.contentSeen[sum] = song.ID
	s.mu.Unlock()

	return song, nil
}

func (s *service) AddSongFromFile(ctx context.Context, path, title, artist string) (models.Song, error) {
	samples, err := s.readAudio(path)
	if err != nil {
		return models.Song{}, err
	}
	if artist == "" && title == "" {
		artist, title = utils.ParseSongMeta(path)
	}
	return s.AddSong(ctx, samples, title, artist, path)
}

// Identify fingerprints query audio and ranks candidate songs by
// temporal coherence. Too little audio, or no candidate above the
// confidence floor, yields an empty ranking, not an error.
func (s *service) Identify(ctx context.Context, samples []float64) ([]models.Match, error) {
	norm := audio.Normalize(samples)

	fps, err := fingerprint.Generate(norm, "", s.cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting query: %w", err)
	}
	s.log.Debugf("query: %d hashes from %d samples", len(fps), len(samples))

	results, err := s.matcher.Rank(ctx, fps)
	if err != nil {
		return nil, err
	}
	s.log.Infof("query matched %d candidate(s)", len(results))
	return results, nil
}

func (s *service) IdentifyFile(ctx context.Context, path string) ([]models.Match, error) {
	samples, err := s.readAudio(path)
	if err != nil {
		return nil, err
	}
	return s.Identify(ctx, samples)
}

// readAudio decodes a WAV file and brings it to the pipeline rate.
func (s *service) readAudio(path string) ([]float64, error) {
	samples, rate, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	if rate != s.cfg.Fingerprint.SampleRate {
		samples, err = audio.Resample(samples, rate, s.cfg.Fingerprint.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return samples, nil
}

func (s *service) GetSong(ctx context.Context, id string) (models.Song, error) {
	return s.store.GetSong(ctx, id)
}

func (s *service) ListSongs(ctx context.Context) ([]models.Song, error) {
	return s.store.ListSongs(ctx)
}

func (s *service) DeleteSong(ctx context.Context, id string) error {
	if err := s.store.DeleteSong(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	for sum, songID := range s.contentSeen {
		if songID == id {
			delete(s.contentSeen, sum)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	songs, err := s.store.CountSongs(ctx)
	if err != nil {
		return Stats{}, err
	}
	postings, err := s.store.CountPostings(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Songs: songs, Postings: postings}, nil
}

func (s *service) Erase(ctx context.Context) error {
	s.mu.Lock()
	s.contentSeen = make(map[uint64]string)
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

func (s *service) Close() error {
	return s.store.Close()
}
