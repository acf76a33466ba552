package matching

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// KnownAnswer pins a track to a video id.
type KnownAnswer struct {
	Artist  string `toml:"artist"`
	Title   string `toml:"title"`
	VideoID string `toml:"video_id"`
	Channel string `toml:"channel"`
}

type knownAnswersFile struct {
	Answers []KnownAnswer `toml:"answer"`
}

// KnownAnswers is an optional override consulted before any search. Safe for concurrent use;
// the table can be swapped at runtime with [KnownAnswers.Replace].
type KnownAnswers struct {
	mu      sync.RWMutex
	answers map[string]KnownAnswer
}

// NewKnownAnswers builds a table from answers.
func NewKnownAnswers(answers ...KnownAnswer) *KnownAnswers {
	k := &KnownAnswers{}
	k.Replace(answers)
	return k
}

// LoadKnownAnswers reads a TOML file of [[answer]] tables.
func LoadKnownAnswers(path string) (*KnownAnswers, error) {
	var file knownAnswersFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to load known answers: %w", err)
	}
	for i, a := range file.Answers {
		if a.VideoID == "" || a.Title == "" {
			return nil, fmt.Errorf("%w: known answer %d needs title and video_id", shared.ErrInvalidConfig, i)
		}
	}
	return NewKnownAnswers(file.Answers...), nil
}

func knownKey(artist, title string) string {
	return AggressiveNormalize(CleanArtist(artist)) + "|" + AggressiveNormalize(CleanTitle(title))
}

// Replace swaps the whole table.
func (k *KnownAnswers) Replace(answers []KnownAnswer) {
	m := make(map[string]KnownAnswer, len(answers))
	for _, a := range answers {
		m[knownKey(a.Artist, a.Title)] = a
	}
	k.mu.Lock()
	k.answers = m
	k.mu.Unlock()
}

// Len returns the number of pinned tracks.
func (k *KnownAnswers) Len() int {
	if k == nil {
		return 0
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.answers)
}

// Lookup returns the pinned match for track. A nil table never matches.
func (k *KnownAnswers) Lookup(track models.Track) (models.Found, bool) {
	if k == nil {
		return models.Found{}, false
	}
	k.mu.RLock()
	a, ok := k.answers[knownKey(track.Artist, track.Name)]
	k.mu.RUnlock()
	if !ok {
		return models.Found{}, false
	}
	return models.Found{
		VideoID:      a.VideoID,
		Title:        track.String(),
		ChannelName:  a.Channel,
		IsOfficial:   true,
		MatchedQuery: "known answer",
	}, true
}
