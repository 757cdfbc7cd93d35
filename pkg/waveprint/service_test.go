package waveprint

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/waveprintlabs/waveprint/pkg/waveprint/fingerprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/storage"
)

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	opts = append([]Option{
		WithStore(storage.NewMemoryStore()),
		WithLogger(quiet),
	}, opts...)

	svc, err := NewService(opts...)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func sineWave(freq float64, seconds float64) []float64 {
	cfg := fingerprint.DefaultConfig()
	n := int(seconds * float64(cfg.SampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(cfg.SampleRate))
	}
	return samples
}

// melodyWave synthesizes Hann-enveloped 200 ms notes walking a
// register-alternating ladder; the note grid gives the constellation a
// peak roughly every nine frames, inside the pairing target zone.
func melodyWave(seconds float64, base, step, alt float64) []float64 {
	cfg := fingerprint.DefaultConfig()
	rate := float64(cfg.SampleRate)
	segN := int(0.2 * rate)
	n := int(seconds * rate)

	out := make([]float64, n)
	for i := range out {
		s := i / segN
		pos := float64(i%segN) / float64(segN)
		freq := base + step*float64(s) + alt*float64(s%2)
		env := math.Sin(math.Pi * pos)
		out[i] = env * env * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestSilenceInEmptyOut(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	silence := make([]float64, 44100)
	if _, err := svc.AddSong(ctx, silence, "Silence", "Nobody", "silence.wav"); err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Songs != 1 {
		t.Errorf("song count %d, want 1", stats.Songs)
	}
	if stats.Postings != 0 {
		t.Errorf("silence stored %d postings, want 0", stats.Postings)
	}

	matches, err := svc.Identify(ctx, silence)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("silence matched %d songs (first: %s)", len(matches), matches[0].Song.ID)
	}
}

func TestSelfMatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	audio := melodyWave(2, 500, 15, 200)
	song, err := svc.AddSong(ctx, audio, "Ladder Up", "Test Artist", "a.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	if math.Abs(song.Duration-2.0) > 0.01 {
		t.Errorf("duration %g, want 2.0", song.Duration)
	}

	matches, err := svc.Identify(ctx, audio)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("self query found no matches")
	}
	top := matches[0]
	if top.Song.ID != song.ID {
		t.Errorf("top match %s, want %s", top.Song.ID, song.ID)
	}
	if top.Confidence < 0.5 {
		t.Errorf("self-match confidence %g, want >= 0.5", top.Confidence)
	}
	if top.Offset != 0 {
		t.Errorf("self-match offset %d, want 0", top.Offset)
	}
}

func TestDistinctSongsDoNotMatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddSong(ctx, melodyWave(2, 500, 15, 200), "A", "X", "a.wav"); err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	// A melody over a disjoint register must not pass for A.
	matches, err := svc.Identify(ctx, melodyWave(2, 1900, -21, -230))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) > 0 && matches[0].Confidence >= 0.3 {
		t.Errorf("distinct song matched with confidence %g", matches[0].Confidence)
	}
}

func TestPureTonesTooSparseToMatch(t *testing.T) {
	// Steady sines pin peaks ~20 frames apart, beyond the target zone:
	// the constellation carries no pairs and the query returns empty.
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddSong(ctx, sineWave(440, 2), "A4", "X", "a4.wav"); err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	matches, err := svc.Identify(ctx, sineWave(880, 2))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("880 Hz query matched %d songs", len(matches))
	}
}

func TestTemporalOffset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := fingerprint.DefaultConfig()

	audio := melodyWave(10, 500, 15, 200)
	song, err := svc.AddSong(ctx, audio, "B", "X", "b.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	// Query with the [3s, 6s) excerpt; the dominant alignment is
	// round(3 * 44100 / 1024) = 129 frames, give or take hop jitter.
	query := audio[3*cfg.SampleRate : 6*cfg.SampleRate]
	matches, err := svc.Identify(ctx, query)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("offset query found no matches")
	}
	top := matches[0]
	if top.Song.ID != song.ID {
		t.Errorf("top match %s, want %s", top.Song.ID, song.ID)
	}
	if top.Offset < 127 || top.Offset > 131 {
		t.Errorf("dominant offset %d, want 129 +/- 2", top.Offset)
	}
}

func TestNoisyQuery(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := fingerprint.DefaultConfig()

	audio := melodyWave(10, 500, 15, 200)
	song, err := svc.AddSong(ctx, audio, "B", "X", "b.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	query := make([]float64, 3*cfg.SampleRate)
	for i := range query {
		query[i] = audio[3*cfg.SampleRate+i] + 0.0015*rng.NormFloat64()
	}

	matches, err := svc.Identify(ctx, query)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("noisy query found no matches")
	}
	top := matches[0]
	if top.Song.ID != song.ID {
		t.Errorf("top match %s, want %s", top.Song.ID, song.ID)
	}
	if top.Confidence < 0.1 {
		t.Errorf("noisy-query confidence %g, want >= 0.1", top.Confidence)
	}
}

func TestAddSongTooShort(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddSong(context.Background(), make([]float64, 1000), "Tiny", "X", "tiny.wav")
	if !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("expected ErrBufferTooShort, got %v", err)
	}
}

func TestDuplicateContentRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	audio := melodyWave(2, 500, 15, 200)
	first, err := svc.AddSong(ctx, audio, "Original", "X", "orig.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	again, err := svc.AddSong(ctx, audio, "Copy", "X", "copy.wav")
	if !errors.Is(err, ErrDuplicateSong) {
		t.Fatalf("expected ErrDuplicateSong, got %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("duplicate resolved to %s, want %s", again.ID, first.ID)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Songs != 1 {
		t.Errorf("duplicate ingest left %d songs", stats.Songs)
	}
}

func TestDuplicateContentAllowed(t *testing.T) {
	svc := newTestService(t, WithAllowDuplicates(true))
	ctx := context.Background()

	audio := melodyWave(2, 500, 15, 200)
	if _, err := svc.AddSong(ctx, audio, "One", "X", "one.wav"); err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	if _, err := svc.AddSong(ctx, audio, "Two", "X", "two.wav"); err != nil {
		t.Fatalf("second AddSong: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Songs != 2 {
		t.Errorf("got %d songs, want 2", stats.Songs)
	}
}

func TestDeleteSong(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	song, err := svc.AddSong(ctx, melodyWave(2, 500, 15, 200), "Gone", "X", "gone.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	if err := svc.DeleteSong(ctx, song.ID); err != nil {
		t.Fatalf("DeleteSong: %v", err)
	}

	if _, err := svc.GetSong(ctx, song.ID); !errors.Is(err, storage.ErrSongNotFound) {
		t.Errorf("deleted song still resolvable: %v", err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Postings != 0 {
		t.Errorf("delete left %d postings", stats.Postings)
	}
}

func TestErase(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	song, err := svc.AddSong(ctx, melodyWave(2, 500, 15, 200), "Ephemeral", "X", "e.wav")
	if err != nil {
		t.Fatalf("AddSong: %v", err)
	}

	if err := svc.Erase(ctx); err != nil {
		t.Fatalf("Erase: %v", err)
	}

	songs, err := svc.ListSongs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 0 {
		t.Errorf("%d songs remain after erase", len(songs))
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Songs != 0 || stats.Postings != 0 {
		t.Errorf("stats after erase = %+v, want zeros", stats)
	}
	if _, err := svc.GetSong(ctx, song.ID); !errors.Is(err, storage.ErrSongNotFound) {
		t.Errorf("song resolvable after erase: %v", err)
	}

	// Content-hash bookkeeping resets too: the same audio ingests again.
	if _, err := svc.AddSong(ctx, melodyWave(2, 500, 15, 200), "Ephemeral", "X", "e.wav"); err != nil {
		t.Fatalf("re-ingest after erase: %v", err)
	}
}
