package matching

import (
	"strings"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/hbollon/go-edlib"
)

var (
	officialTitlePhrases = []string{"official video", "official music video", "(official", "[official"}
	officialDescPhrases  = []string{"official video", "official music video", "provided to youtube by"}

	// Titles with these terms are demoted unless the track itself carries the term.
	demoteTerms = []string{"cover", "karaoke", "reaction", "tutorial", "lesson", "nightcore", "8d audio", "sped up", "slowed"}

	stopWords = map[string]bool{"the": true, "a": true, "an": true, "of": true, "and": true, "feat": true, "ft": true}
)

// RankerConfig tunes the ranking heuristics.
type RankerConfig struct {
	// OfficialThreshold is the number of official-video indicators needed for IsOfficial.
	OfficialThreshold int
	// FallbackToFirst returns the first search result when nothing passes the relevance filter.
	FallbackToFirst bool
	// SimilarityThreshold is the Jaro-Winkler score at which a title word counts as matching a
	// query token. Values of 1 or more require exact tokens.
	SimilarityThreshold float64
}

// DefaultRankerConfig returns the recall-oriented defaults.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{OfficialThreshold: 2, FallbackToFirst: true, SimilarityThreshold: 0.85}
}

// Ranked is a scored candidate.
type Ranked struct {
	Candidate     models.Candidate
	Index         int // position in the search results
	OfficialScore int
	IsOfficial    bool
	Relevant      bool
	Demoted       bool
}

// Ranker is the Candidate Ranker. It holds no mutable state and is safe for concurrent use.
type Ranker struct {
	cfg RankerConfig
}

// NewRanker creates a ranker. A non-positive threshold falls back to the default.
func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.OfficialThreshold <= 0 {
		cfg.OfficialThreshold = DefaultRankerConfig().OfficialThreshold
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultRankerConfig().SimilarityThreshold
	}
	return &Ranker{cfg: cfg}
}

// Config returns the ranker's configuration.
func (r *Ranker) Config() RankerConfig { return r.cfg }

type trackTerms struct {
	artistTokens []string
	titleTokens  []string
	artistKeys   []string // whole artist names, spaces removed
	firstWord    string
	raw          string
}

func newTrackTerms(artist, title string) trackTerms {
	var terms trackTerms
	for _, a := range SplitArtists(artist) {
		norm := AggressiveNormalize(a)
		terms.artistTokens = append(terms.artistTokens, tokens(norm)...)
		if key := strings.ReplaceAll(norm, " ", ""); key != "" {
			terms.artistKeys = append(terms.artistKeys, key)
		}
	}
	terms.titleTokens = tokens(AggressiveNormalize(CleanTitle(title)))
	terms.firstWord = firstSignificant(AggressiveNormalize(CleanArtist(artist)))
	terms.raw = strings.ToLower(artist + " " + title)
	return terms
}

// tokens splits normalized text into words, dropping stop words unless nothing else is left.
func tokens(norm string) []string {
	words := strings.Fields(norm)
	var out []string
	for _, w := range words {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return words
	}
	return out
}

func firstSignificant(norm string) string {
	if t := tokens(norm); len(t) > 0 {
		return t[0]
	}
	return ""
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// OfficialScore counts the official-video indicators present on c.
func (r *Ranker) OfficialScore(c models.Candidate, artist string) int {
	return r.officialScore(c, newTrackTerms(artist, ""))
}

func (r *Ranker) officialScore(c models.Candidate, terms trackTerms) int {
	channel := AggressiveNormalize(c.ChannelName)
	channelKey := strings.ReplaceAll(channel, " ", "")
	title := strings.ToLower(c.Title)
	desc := strings.ToLower(c.Description)

	score := 0
	if strings.Contains(channelKey, "vevo") {
		score++
	}
	if strings.Contains(channel, "official") {
		score++
	}
	if terms.firstWord != "" && containsWord(channel, terms.firstWord) {
		score++
	}
	if containsAny(title, officialTitlePhrases) {
		score++
	}
	if containsAny(desc, officialDescPhrases) {
		score++
	}
	for _, key := range terms.artistKeys {
		if channelKey == key || channelKey == key+"vevo" || channelKey == key+"official" {
			score++
			break
		}
	}
	return score
}

func containsWord(norm, word string) bool {
	for _, w := range strings.Fields(norm) {
		if w == word {
			return true
		}
	}
	return false
}

// tokenMatch reports whether any of words matches token exactly or by Jaro-Winkler similarity.
func (r *Ranker) tokenMatch(token string, words []string) bool {
	for _, w := range words {
		if w == token {
			return true
		}
		if r.cfg.SimilarityThreshold >= 1 || len(token) < 4 || len(w) < 4 {
			continue
		}
		if sim, err := edlib.StringsSimilarity(token, w, edlib.JaroWinkler); err == nil && float64(sim) >= r.cfg.SimilarityThreshold {
			return true
		}
	}
	return false
}

func (r *Ranker) anyTokenMatch(tokens, words []string) bool {
	for _, t := range tokens {
		if r.tokenMatch(t, words) {
			return true
		}
	}
	return false
}

// relevant reports whether the candidate mentions both the artist and the title. The artist may
// appear in the video title or the channel name, since official uploads often omit it from the title.
func (r *Ranker) relevant(c models.Candidate, terms trackTerms) bool {
	titleWords := strings.Fields(AggressiveNormalize(c.Title))
	if len(terms.titleTokens) == 0 || !r.anyTokenMatch(terms.titleTokens, titleWords) {
		return false
	}
	if len(terms.artistTokens) == 0 {
		return true
	}
	if r.anyTokenMatch(terms.artistTokens, titleWords) {
		return true
	}
	return r.anyTokenMatch(terms.artistTokens, strings.Fields(AggressiveNormalize(c.ChannelName)))
}

func demoted(c models.Candidate, terms trackTerms) bool {
	title := strings.ToLower(c.Title)
	for _, term := range demoteTerms {
		if strings.Contains(title, term) && !strings.Contains(terms.raw, term) {
			return true
		}
	}
	return false
}

// Score evaluates every candidate without choosing one.
func (r *Ranker) Score(candidates []models.Candidate, artist, title string) []Ranked {
	terms := newTrackTerms(artist, title)
	scored := make([]Ranked, len(candidates))
	for i, c := range candidates {
		score := r.officialScore(c, terms)
		scored[i] = Ranked{
			Candidate:     c,
			Index:         i,
			OfficialScore: score,
			IsOfficial:    score >= r.cfg.OfficialThreshold,
			Relevant:      r.relevant(c, terms),
			Demoted:       demoted(c, terms),
		}
	}
	return scored
}

// Rank picks the best candidate for (artist, title), or nil.
//
// Among relevant candidates the order of preference is official, then not demoted, then search
// order. With no relevant candidate the first result is returned when FallbackToFirst is set.
// An empty list always yields nil.
func (r *Ranker) Rank(candidates []models.Candidate, artist, title string) *Ranked {
	if len(candidates) == 0 {
		return nil
	}

	scored := r.Score(candidates, artist, title)

	var best *Ranked
	for i := range scored {
		c := &scored[i]
		if !c.Relevant {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}

	if best == nil && r.cfg.FallbackToFirst {
		best = &scored[0]
	}
	if best == nil {
		return nil
	}

	out := *best
	return &out
}

// better reports whether a should replace the current best b. Ties keep b, preserving search order.
func better(a, b *Ranked) bool {
	if a.IsOfficial != b.IsOfficial {
		return a.IsOfficial
	}
	if a.Demoted != b.Demoted {
		return !a.Demoted
	}
	return false
}
