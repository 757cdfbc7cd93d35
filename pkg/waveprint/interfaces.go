package waveprint

import (
	"context"

	"github.com/waveprintlabs/waveprint/pkg/models"
)

// Service is the public surface of the engine: ingest reference
// recordings, identify query audio, administer the index.
type Service interface {
	AddSong(ctx context.Context, samples []float64, title, artist, filePath string) (models.Song, error)
	AddSongFromFile(ctx context.Context, path, title, artist string) (models.Song, error)
	Identify(ctx context.Context, samples []float64) ([]models.Match, error)
	IdentifyFile(ctx context.Context, path string) ([]models.Match, error)
	GetSong(ctx context.Context, id string) (models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	DeleteSong(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
	Erase(ctx context.Context) error
	Close() error
}

// PostingStore is the pluggable inverted index the engine runs against.
// InsertPostings must be atomic at song granularity: a failure leaves no
// postings behind for that song. Lookup preserves multiplicity — a
// posting stored twice returns twice — and per-song insertion order.
type PostingStore interface {
	InsertSong(ctx context.Context, song models.Song) error
	InsertPostings(ctx context.Context, songID string, postings []models.Posting) error
	Lookup(ctx context.Context, hashes []uint64) (map[string][]models.Posting, error)
	GetSong(ctx context.Context, id string) (models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	CountSongs(ctx context.Context) (int, error)
	CountPostings(ctx context.Context) (int, error)
	DeleteSong(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// Logger is the minimal leveled logger the service emits to. A
// *logrus.Logger satisfies it directly.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Stats summarizes the index.
type Stats struct {
	Songs    int
	Postings int
}
