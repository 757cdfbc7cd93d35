package models

// Song is a reference recording registered in the posting store.
// Immutable after ingest; removed only by explicit deletion, which
// cascades to every posting carrying its ID.
type Song struct {
	ID       string  // UUID assigned at ingest
	Title    string  // Song title
	Artist   string  // Artist name
	FilePath string  // Source path the audio was ingested from
	Duration float64 // Duration in seconds
}

// Fingerprint is one emitted hash together with the frame index of its
// anchor peak. SongID is empty for query-side fingerprints.
type Fingerprint struct {
	Hash       uint64
	AnchorTime uint32 // STFT frame index of the anchor peak
	SongID     string
}

// Posting is one stored occurrence of a hash within a song.
type Posting struct {
	Hash       uint64
	AnchorTime uint32
}

// Match is one ranked candidate returned by the matcher.
type Match struct {
	Song       Song
	Confidence float64 // coherent mass over query hash count, clamped to [0,1]
	MatchCount int     // postings retrieved for this song
	Offset     int32   // dominant songTime - queryTime alignment, in frames
}
