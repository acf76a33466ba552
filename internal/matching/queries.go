package matching

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/desertthunder/sp2yt/internal/shared"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxPrimaryQueries  = 6
	MaxAdvancedQueries = 6
)

var (
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
	bracketRe = regexp.MustCompile(`\[[^\]]*\]`)
	featRe    = regexp.MustCompile(`(?i)\s*\b(feat\.?|ft\.?|featuring)(\s|$).*$`)
	versionRe = regexp.MustCompile(`(?i)\s+-\s+.*\b(remix|mix|version|remaster(ed)?|edit|live|mono|stereo|acoustic|demo|instrumental)\b.*$`)
	splitRe   = regexp.MustCompile(`\s*(,|&|\bx\b)\s*`)
)

// QueryPlan holds the queries for both matcher passes, most specific first.
type QueryPlan struct {
	Primary  []string
	Advanced []string
}

// Pass returns the queries of pass n (0 = primary, 1 = advanced).
func (p QueryPlan) Pass(n int) []string {
	switch n {
	case 0:
		return p.Primary
	case 1:
		return p.Advanced
	default:
		return nil
	}
}

// All returns every query in priority order.
func (p QueryPlan) All() []string {
	return append(append([]string{}, p.Primary...), p.Advanced...)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripDecorations removes parenthesised and bracketed text and featuring tails.
func stripDecorations(s string) string {
	s = parenRe.ReplaceAllString(s, " ")
	s = bracketRe.ReplaceAllString(s, " ")
	s = featRe.ReplaceAllString(s, "")
	return collapse(s)
}

// SplitArtists returns each credited artist after removing featuring tails and parentheticals.
func SplitArtists(artist string) []string {
	var out []string
	for _, part := range splitRe.Split(stripDecorations(artist), -1) {
		if part = collapse(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CleanArtist returns the primary (first credited) artist.
func CleanArtist(artist string) string {
	if artists := SplitArtists(artist); len(artists) > 0 {
		return artists[0]
	}
	return collapse(artist)
}

// CleanTitle strips parentheticals, brackets, version suffixes such as "- 2011 Remaster" and
// featuring tails. A title that cleans to nothing is returned trimmed instead.
func CleanTitle(title string) string {
	cleaned := parenRe.ReplaceAllString(title, " ")
	cleaned = bracketRe.ReplaceAllString(cleaned, " ")
	cleaned = versionRe.ReplaceAllString(cleaned, "")
	cleaned = featRe.ReplaceAllString(cleaned, "")
	cleaned = collapse(strings.Trim(collapse(cleaned), "-–— "))
	if cleaned == "" {
		return collapse(title)
	}
	return cleaned
}

var diacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics maps accented letters to their base form, so "Beyoncé" becomes "Beyonce".
func FoldDiacritics(s string) string {
	out, _, err := transform.String(diacritics, s)
	if err != nil {
		return s
	}
	return out
}

// AggressiveNormalize lowercases, folds diacritics and drops every punctuation mark.
func AggressiveNormalize(s string) string {
	return shared.NormalizeText(FoldDiacritics(s))
}

type queryList struct {
	seen  map[string]struct{}
	limit int
	out   []string
}

func (q *queryList) add(parts ...string) {
	if len(q.out) >= q.limit {
		return
	}
	s := collapse(strings.Join(parts, " "))
	if s == "" || s == `""` {
		return
	}
	key := strings.ToLower(s)
	if _, ok := q.seen[key]; ok {
		return
	}
	q.seen[key] = struct{}{}
	q.out = append(q.out, s)
}

// GenerateQueries produces the ordered, deduplicated query plan for a track. The output is
// deterministic and never contains empty strings.
func GenerateQueries(artist, title string) QueryPlan {
	a := CleanArtist(artist)
	t := CleanTitle(title)
	if a == "" && t == "" {
		return QueryPlan{}
	}
	seen := make(map[string]struct{})

	primary := &queryList{seen: seen, limit: MaxPrimaryQueries}
	if t != "" {
		primary.add(a, t, "official video")
		primary.add(a, t, "official")
		primary.add(a, t, "music video")
		primary.add(a, t)
		primary.add(t, a)
		primary.add(t, "official video")
	} else {
		primary.add(a, "official video")
		primary.add(a)
	}

	advanced := &queryList{seen: seen, limit: MaxAdvancedQueries}
	if t != "" {
		if a != "" {
			advanced.add(`"` + t + `" "` + a + `"`)
		}
		if first := firstWord(a); first != "" && first != a {
			advanced.add(first, t)
		}
		for _, other := range SplitArtists(artist) {
			advanced.add(other, t)
		}
		advanced.add(AggressiveNormalize(a), AggressiveNormalize(t))
		advanced.add(AggressiveNormalize(t))
		advanced.add(t)
	}

	return QueryPlan{Primary: primary.out, Advanced: advanced.out}
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
