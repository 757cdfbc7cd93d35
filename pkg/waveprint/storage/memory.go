package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/waveprintlabs/waveprint/pkg/models"
)

type memPosting struct {
	anchor uint32
	songID string
	seq    uint64
}

// MemoryStore is the in-process posting store. It backs tests and
// short-lived indexes; the full contract holds, including multiset
// lookup semantics and cascade deletion.
type MemoryStore struct {
	mu     sync.RWMutex
	songs  map[string]models.Song
	order  []string
	byHash map[uint64][]memPosting
	seq    uint64
	total  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		songs:  make(map[string]models.Song),
		byHash: make(map[uint64][]memPosting),
	}
}

func (m *MemoryStore) InsertSong(ctx context.Context, song models.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[song.ID]; ok {
		return ErrSongExists
	}
	m.songs[song.ID] = song
	m.order = append(m.order, song.ID)
	return nil
}

func (m *MemoryStore) InsertPostings(ctx context.Context, songID string, postings []models.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[songID]; !ok {
		return ErrUnknownSong
	}
	for _, p := range postings {
		m.seq++
		m.byHash[p.Hash] = append(m.byHash[p.Hash], memPosting{
			anchor: p.AnchorTime,
			songID: songID,
			seq:    m.seq,
		})
	}
	m.total += len(postings)
	return nil
}

func (m *MemoryStore) Lookup(ctx context.Context, hashes []uint64) (map[string][]models.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		posting models.Posting
		seq     uint64
	}
	hits := make(map[string][]hit)
	seen := make(map[uint64]bool, len(hashes))
	for _, h := range hashes {
		if seen[h] {
			continue
		}
		seen[h] = true
		for _, p := range m.byHash[h] {
			hits[p.songID] = append(hits[p.songID], hit{
				posting: models.Posting{Hash: h, AnchorTime: p.anchor},
				seq:     p.seq,
			})
		}
	}

	out := make(map[string][]models.Posting, len(hits))
	for songID, hs := range hits {
		sort.Slice(hs, func(i, j int) bool { return hs[i].seq < hs[j].seq })
		ps := make([]models.Posting, len(hs))
		for i, h := range hs {
			ps[i] = h.posting
		}
		out[songID] = ps
	}
	return out, nil
}

func (m *MemoryStore) GetSong(ctx context.Context, id string) (models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	song, ok := m.songs[id]
	if !ok {
		return models.Song{}, ErrSongNotFound
	}
	return song, nil
}

func (m *MemoryStore) ListSongs(ctx context.Context) ([]models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Song, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.songs[id])
	}
	return out, nil
}

func (m *MemoryStore) CountSongs(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.songs), nil
}

func (m *MemoryStore) CountPostings(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

func (m *MemoryStore) DeleteSong(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[id]; !ok {
		return ErrSongNotFound
	}
	delete(m.songs, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for h, ps := range m.byHash {
		kept := ps[:0]
		for _, p := range ps {
			if p.songID == id {
				m.total--
			} else {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(m.byHash, h)
		} else {
			m.byHash[h] = kept
		}
	}
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.songs = make(map[string]models.Song)
	m.order = nil
	m.byHash = make(map[uint64][]memPosting)
	m.total = 0
	return nil
}

func (m *MemoryStore) Close() error { return nil }
