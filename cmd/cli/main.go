package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/waveprintlabs/waveprint/pkg/models"
	"github.com/waveprintlabs/waveprint/pkg/utils"
	"github.com/waveprintlabs/waveprint/pkg/waveprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/audio"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/fingerprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/storage"
)

const topMatchesToDisplay = 5

var (
	dbPath    string
	storeKind string
	verbose   bool

	log = logrus.New()
)

func init() {
	_ = godotenv.Load()

	flag.StringVar(&dbPath, "db", envOrDefault("WAVEPRINT_DB_PATH", "waveprint.sqlite3"), "posting store path (file for sqlite, directory for badger)")
	flag.StringVar(&storeKind, "store", envOrDefault("WAVEPRINT_STORE", "sqlite"), "posting store backend: sqlite or badger")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	svc, err := createService()
	if err != nil {
		log.Fatalf("opening posting store: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	command := args[0]
	rest := args[1:]

	switch command {
	case "index":
		err = handleIndex(ctx, svc, rest)
	case "add":
		err = handleAdd(ctx, svc, rest)
	case "identify":
		err = handleIdentify(ctx, svc, rest)
	case "listen":
		err = handleListen(ctx, svc, rest)
	case "list":
		err = handleList(ctx, svc)
	case "stats":
		err = printStats(ctx, svc)
	case "delete":
		err = handleDelete(ctx, svc, rest)
	case "erase":
		err = handleErase(ctx, svc)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func createService() (waveprint.Service, error) {
	opts := []waveprint.Option{waveprint.WithLogger(log)}
	switch storeKind {
	case "sqlite":
		opts = append(opts, waveprint.WithDBPath(dbPath))
	case "badger":
		store, err := storage.NewBadgerStore(dbPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, waveprint.WithStore(store))
	default:
		return nil, fmt.Errorf("unknown store backend %q", storeKind)
	}
	return waveprint.NewService(opts...)
}

func printUsage() {
	fmt.Println(`Usage: waveprint [flags] <command> [args]

Commands:
  index <dir|file>            fingerprint WAV files ("Artist - Title.wav")
  add <file> <artist> <title> fingerprint one file with explicit metadata
  identify <file>             match a WAV file against the index
  listen [seconds]            record from the microphone and identify
  list                        list indexed songs
  stats                       show index size
  delete <song-id>            remove one song and its postings
  erase                       clear the whole index

Flags:
  -db <path>      posting store location (default waveprint.sqlite3)
  -store <kind>   sqlite or badger (default sqlite)
  -v              debug logging`)
}

func handleIndex(ctx context.Context, svc waveprint.Service, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: index <dir|file>")
	}
	root := args[0]

	info, err := os.Stat(root)
	if err != nil {
		return err
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(root)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() && utils.IsWAVFile(e.Name()) {
				files = append(files, filepath.Join(root, e.Name()))
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no WAV files in %s", root)
		}
	} else {
		files = []string{root}
	}

	progress := mpb.New(mpb.WithWidth(48))
	bar := progress.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("indexing "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	indexed := 0
	for _, path := range files {
		song, err := svc.AddSongFromFile(ctx, path, "", "")
		switch {
		case errors.Is(err, waveprint.ErrDuplicateSong):
			log.Warnf("skipping %s: content already indexed as %q", path, song.Title)
		case err != nil:
			log.Errorf("skipping %s: %v", path, err)
		default:
			indexed++
		}
		bar.Increment()
	}
	progress.Wait()

	fmt.Printf("Indexed %d song(s)\n", indexed)
	return printStats(ctx, svc)
}

func handleAdd(ctx context.Context, svc waveprint.Service, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: add <file> <artist> <title>")
	}
	song, err := svc.AddSongFromFile(ctx, args[0], strings.TrimSpace(args[2]), strings.TrimSpace(args[1]))
	if err != nil {
		return err
	}
	fmt.Printf("Added %s - %s (id %s)\n", song.Artist, song.Title, song.ID)
	return nil
}

func handleIdentify(ctx context.Context, svc waveprint.Service, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: identify <file>")
	}
	matches, err := svc.IdentifyFile(ctx, args[0])
	if err != nil {
		return err
	}
	printMatches(matches)
	return nil
}

func handleListen(ctx context.Context, svc waveprint.Service, args []string) error {
	seconds := 10
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid duration %q", args[0])
		}
		seconds = n
	}

	cfg := fingerprint.DefaultConfig()
	fmt.Printf("Recording for %d seconds...\n", seconds)
	samples, err := audio.Record(ctx, seconds, cfg.SampleRate)
	if err != nil {
		return err
	}
	fmt.Println("Recording complete, identifying...")

	matches, err := svc.Identify(ctx, samples)
	if err != nil {
		return err
	}
	printMatches(matches)
	return nil
}

func printMatches(matches []models.Match) {
	if len(matches) == 0 {
		fmt.Println("No match found")
		return
	}
	if len(matches) > topMatchesToDisplay {
		matches = matches[:topMatchesToDisplay]
	}
	fmt.Println("Top matches:")
	for i, m := range matches {
		fmt.Printf("  %d. %s - %s  (confidence %.0f%%, %d matching postings)\n",
			i+1, m.Song.Artist, m.Song.Title, m.Confidence*100, m.MatchCount)
	}
}

func handleList(ctx context.Context, svc waveprint.Service) error {
	songs, err := svc.ListSongs(ctx)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		fmt.Println("No songs indexed")
		return nil
	}
	for _, song := range songs {
		fmt.Printf("%s  %s - %s  (%.1fs)\n", song.ID, song.Artist, song.Title, song.Duration)
	}
	return nil
}

func printStats(ctx context.Context, svc waveprint.Service) error {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Index: %s song(s), %s posting(s)\n",
		humanize.Comma(int64(stats.Songs)), humanize.Comma(int64(stats.Postings)))
	return nil
}

func handleDelete(ctx context.Context, svc waveprint.Service, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: delete <song-id>")
	}
	if err := svc.DeleteSong(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func handleErase(ctx context.Context, svc waveprint.Service) error {
	if err := svc.Erase(ctx); err != nil {
		return err
	}
	fmt.Println("Index cleared")
	return nil
}
