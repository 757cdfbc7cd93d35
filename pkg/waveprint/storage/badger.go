package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/waveprintlabs/waveprint/pkg/models"
)

const (
	postingPrefix = 'p'
	songPrefix    = 's'
)

// BadgerStore keeps the inverted index in an embedded Badger KV
// database. Posting keys are the big-endian hash followed by a
// monotonic sequence number, so a prefix scan over one hash yields its
// postings in insertion order. Values hold "songID|anchorTime" lines.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	seq, err := db.GetSequence([]byte("!postings-seq"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("acquiring posting sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func postingKey(hash uint64, seq uint64) []byte {
	key := make([]byte, 17)
	key[0] = postingPrefix
	binary.BigEndian.PutUint64(key[1:9], hash)
	binary.BigEndian.PutUint64(key[9:17], seq)
	return key
}

func songKey(id string) []byte {
	return append([]byte{songPrefix}, id...)
}

func (b *BadgerStore) InsertSong(ctx context.Context, song models.Song) error {
	val, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("encoding song: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		key := songKey(song.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrSongExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("checking song: %w", err)
		}
		return txn.Set(key, val)
	})
}

func (b *BadgerStore) InsertPostings(ctx context.Context, songID string, postings []models.Posting) error {
	if _, err := b.GetSong(ctx, songID); err != nil {
		if errors.Is(err, ErrSongNotFound) {
			return ErrUnknownSong
		}
		return err
	}

	keys := make([][]byte, len(postings))
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for i, p := range postings {
		n, err := b.seq.Next()
		if err != nil {
			return fmt.Errorf("advancing posting sequence: %w", err)
		}
		keys[i] = postingKey(p.Hash, n)
		val := fmt.Sprintf("%s|%d", songID, p.AnchorTime)
		if err := wb.Set(keys[i], []byte(val)); err != nil {
			b.deleteKeys(keys[:i])
			return fmt.Errorf("batching posting: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		// A partial flush may have landed; the compensating delete
		// restores song-granularity atomicity.
		b.deleteKeys(keys)
		return fmt.Errorf("flushing postings: %w", err)
	}
	return nil
}

func (b *BadgerStore) deleteKeys(keys [][]byte) {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if key == nil {
			continue
		}
		if err := wb.Delete(key); err != nil {
			return
		}
	}
	_ = wb.Flush()
}

func (b *BadgerStore) Lookup(ctx context.Context, hashes []uint64) (map[string][]models.Posting, error) {
	type hit struct {
		posting models.Posting
		seq     uint64
	}
	hits := make(map[string][]hit)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		seen := make(map[uint64]bool, len(hashes))
		for _, h := range hashes {
			if seen[h] {
				continue
			}
			seen[h] = true

			prefix := postingKey(h, 0)[:9]
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				seq := binary.BigEndian.Uint64(item.Key()[9:17])
				err := item.Value(func(val []byte) error {
					songID, anchor, err := parsePostingValue(val)
					if err != nil {
						return err
					}
					hits[songID] = append(hits[songID], hit{
						posting: models.Posting{Hash: h, AnchorTime: anchor},
						seq:     seq,
					})
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up postings: %w", err)
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

func parsePostingValue(val []byte) (string, uint32, error) {
	parts := strings.SplitN(string(val), "|", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed posting value %q", val)
	}
	anchor, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed anchor time in %q: %w", val, err)
	}
	return parts[0], uint32(anchor), nil
}

func (b *BadgerStore) GetSong(ctx context.Context, id string) (models.Song, error) {
	var song models.Song
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(songKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrSongNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &song)
		})
	})
	if err != nil {
		if errors.Is(err, ErrSongNotFound) {
			return models.Song{}, err
		}
		return models.Song{}, fmt.Errorf("querying song: %w", err)
	}
	return song, nil
}

func (b *BadgerStore) ListSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{songPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var song models.Song
				if err := json.Unmarshal(val, &song); err != nil {
					return err
				}
				songs = append(songs, song)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID < songs[j].ID })
	return songs, nil
}

func (b *BadgerStore) CountSongs(ctx context.Context) (int, error) {
	return b.countPrefix([]byte{songPrefix})
}

func (b *BadgerStore) CountPostings(ctx context.Context) (int, error) {
	return b.countPrefix([]byte{postingPrefix})
}

func (b *BadgerStore) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting keys: %w", err)
	}
	return count, nil
}

func (b *BadgerStore) DeleteSong(ctx context.Context, id string) error {
	if _, err := b.GetSong(ctx, id); err != nil {
		return err
	}

	// Collect this song's posting keys, then delete them with the song
	// record (cascade).
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{postingPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		marker := []byte(id + "|")
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				if bytes.HasPrefix(val, marker) {
					keys = append(keys, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning postings: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("deleting posting: %w", err)
		}
	}
	if err := wb.Delete(songKey(id)); err != nil {
		return fmt.Errorf("deleting song: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing delete: %w", err)
	}
	return nil
}

func (b *BadgerStore) Clear(ctx context.Context) error {
	if err := b.seq.Release(); err != nil {
		return fmt.Errorf("releasing posting sequence: %w", err)
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("dropping data: %w", err)
	}
	seq, err := b.db.GetSequence([]byte("!postings-seq"), 128)
	if err != nil {
		return fmt.Errorf("re-acquiring posting sequence: %w", err)
	}
	b.seq = seq
	return nil
}

func (b *BadgerStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	_ = b.seq.Release()
	return b.db.Close()
}
