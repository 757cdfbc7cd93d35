package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/waveprintlabs/waveprint/pkg/models"
)

const insertBatchSize = 1000

type songRow struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Title     string
	Artist    string
	FilePath  string
	Duration  float64
	CreatedAt time.Time
}

func (songRow) TableName() string { return "songs" }

type postingRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Hash       int64  `gorm:"index:idx_hash;not null"`
	AnchorTime int32  `gorm:"not null"`
	SongID     string `gorm:"type:varchar(36);index:idx_song;not null"`
}

func (postingRow) TableName() string { return "postings" }

// SQLiteStore persists songs and postings in a single SQLite file. The
// posting primary key is monotonic, so lookups replay insertion order.
type SQLiteStore struct {
	orm *gorm.DB
	db  *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	orm, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	db, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := orm.AutoMigrate(&songRow{}, &postingRow{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLiteStore{orm: orm, db: db}, nil
}

func (s *SQLiteStore) InsertSong(ctx context.Context, song models.Song) error {
	var count int64
	if err := s.orm.WithContext(ctx).Model(&songRow{}).Where("id = ?", song.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking song: %w", err)
	}
	if count > 0 {
		return ErrSongExists
	}

	row := songRow{
		ID:       song.ID,
		Title:    song.Title,
		Artist:   song.Artist,
		FilePath: song.FilePath,
		Duration: song.Duration,
	}
	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating song: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertPostings(ctx context.Context, songID string, postings []models.Posting) error {
	var count int64
	if err := s.orm.WithContext(ctx).Model(&songRow{}).Where("id = ?", songID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking song: %w", err)
	}
	if count == 0 {
		return ErrUnknownSong
	}
	if len(postings) == 0 {
		return nil
	}

	rows := make([]postingRow, len(postings))
	for i, p := range postings {
		rows[i] = postingRow{
			Hash:       int64(p.Hash),
			AnchorTime: int32(p.AnchorTime),
			SongID:     songID,
		}
	}

	// One transaction per song keeps the insert atomic at song granularity.
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("inserting postings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, hashes []uint64) (map[string][]models.Posting, error) {
	out := make(map[string][]models.Posting)
	if len(hashes) == 0 {
		return out, nil
	}

	hs := make([]int64, len(hashes))
	for i, h := range hashes {
		hs[i] = int64(h)
	}

	var rows []postingRow
	if err := s.orm.WithContext(ctx).Where("hash IN ?", hs).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}

	for _, r := range rows {
		out[r.SongID] = append(out[r.SongID], models.Posting{
			Hash:       uint64(r.Hash),
			AnchorTime: uint32(r.AnchorTime),
		})
	}
	return out, nil
}

func (s *SQLiteStore) GetSong(ctx context.Context, id string) (models.Song, error) {
	var row songRow
	err := s.orm.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Song{}, ErrSongNotFound
		}
		return models.Song{}, fmt.Errorf("querying song: %w", err)
	}
	return songFromRow(row), nil
}

func (s *SQLiteStore) ListSongs(ctx context.Context) ([]models.Song, error) {
	var rows []songRow
	if err := s.orm.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	out := make([]models.Song, len(rows))
	for i, r := range rows {
		out[i] = songFromRow(r)
	}
	return out, nil
}

func (s *SQLiteStore) CountSongs(ctx context.Context) (int, error) {
	var n int64
	if err := s.orm.WithContext(ctx).Model(&songRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) CountPostings(ctx context.Context) (int, error) {
	var n int64
	if err := s.orm.WithContext(ctx).Model(&postingRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting postings: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) DeleteSong(ctx context.Context, id string) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", id).Delete(&postingRow{}).Error; err != nil {
			return fmt.Errorf("deleting postings: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&songRow{})
		if res.Error != nil {
			return fmt.Errorf("deleting song: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSongNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&postingRow{}).Error; err != nil {
			return fmt.Errorf("clearing postings: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&songRow{}).Error; err != nil {
			return fmt.Errorf("clearing songs: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func songFromRow(r songRow) models.Song {
	return models.Song{
		ID:       r.ID,
		Title:    r.Title,
		Artist:   r.Artist,
		FilePath: r.FilePath,
		Duration: r.Duration,
	}
}
