package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/waveprintlabs/waveprint/pkg/models"
	"github.com/waveprintlabs/waveprint/pkg/waveprint"
	"github.com/waveprintlabs/waveprint/pkg/waveprint/storage"
)

const maxUploadBytes = 256 << 20

type server struct {
	svc waveprint.Service
}

type songResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
}

type matchResponse struct {
	Song       songResponse `json:"song"`
	Confidence float64      `json:"confidence"`
	MatchCount int          `json:"match_count"`
	Offset     int32        `json:"offset_frames"`
}

func toSongResponse(s models.Song) songResponse {
	return songResponse{ID: s.ID, Title: s.Title, Artist: s.Artist, Duration: s.Duration}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// saveUpload spools the uploaded "audio" part to a temp WAV file and
// returns its path with a cleanup func.
func saveUpload(r *http.Request) (string, func(), error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, err
	}
	part, header, err := r.FormFile("audio")
	if err != nil {
		return "", nil, err
	}
	defer part.Close()

	dir, err := os.MkdirTemp("", "waveprint-upload")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, part); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func (s *server) addSong(w http.ResponseWriter, r *http.Request) {
	path, cleanup, err := saveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cleanup()

	title := r.FormValue("title")
	artist := r.FormValue("artist")

	song, err := s.svc.AddSongFromFile(r.Context(), path, title, artist)
	switch {
	case errors.Is(err, waveprint.ErrDuplicateSong):
		writeJSON(w, http.StatusConflict, toSongResponse(song))
	case errors.Is(err, waveprint.ErrBufferTooShort):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusCreated, toSongResponse(song))
	}
}

func (s *server) identify(w http.ResponseWriter, r *http.Request) {
	path, cleanup, err := saveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cleanup()

	matches, err := s.svc.IdentifyFile(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]matchResponse, len(matches))
	for i, m := range matches {
		out[i] = matchResponse{
			Song:       toSongResponse(m.Song),
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			Offset:     m.Offset,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.svc.ListSongs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]songResponse, len(songs))
	for i, song := range songs {
		out[i] = toSongResponse(song)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) getSong(w http.ResponseWriter, r *http.Request) {
	song, err := s.svc.GetSong(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toSongResponse(song))
}

func (s *server) deleteSong(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteSong(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"songs":    stats.Songs,
		"postings": stats.Postings,
	})
}
