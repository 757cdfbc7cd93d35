package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/waveprintlabs/waveprint/pkg/waveprint"
)

var log = logrus.New()

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOrDefault("WAVEPRINT_ADDR", ":8080"), "listen address")
	dbPath := flag.String("db", envOrDefault("WAVEPRINT_DB_PATH", "waveprint.sqlite3"), "sqlite posting store path")
	flag.Parse()

	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	svc, err := waveprint.NewService(
		waveprint.WithDBPath(*dbPath),
		waveprint.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("opening posting store: %v", err)
	}
	defer svc.Close()

	srv := &server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/songs", srv.listSongs)
	mux.HandleFunc("POST /api/songs", srv.addSong)
	mux.HandleFunc("GET /api/songs/{id}", srv.getSong)
	mux.HandleFunc("DELETE /api/songs/{id}", srv.deleteSong)
	mux.HandleFunc("POST /api/identify", srv.identify)
	mux.HandleFunc("GET /api/stats", srv.stats)

	log.Infof("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
