package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Yellow", "Yellow"},
		{"Yellow (Official Video)", "Yellow"},
		{"Under Pressure - Remastered 2011", "Under Pressure"},
		{"Old Town Road (feat. Billy Ray Cyrus) - Remix", "Old Town Road"},
		{"Stay [Live]", "Stay"},
		{"Despacito feat. Justin Bieber", "Despacito"},
		{"Bad Guy ft. Justin Bieber", "Bad Guy"},
		{"Mix Tape", "Mix Tape"},
		{"Take On Me - 2017 Remaster", "Take On Me"},
		{"  spaced   out  ", "spaced out"},
		{"(Intro)", "(Intro)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.in))
		})
	}
}

func TestCleanArtist(t *testing.T) {
	tests := []struct {
		in, want string
		split    []string
	}{
		{"Coldplay", "Coldplay", []string{"Coldplay"}},
		{"Queen & David Bowie", "Queen", []string{"Queen", "David Bowie"}},
		{"Lil Nas X, Billy Ray Cyrus", "Lil Nas X", []string{"Lil Nas X", "Billy Ray Cyrus"}},
		{"Beyoncé feat. Jay-Z", "Beyoncé", []string{"Beyoncé"}},
		{"Marshmello x Bastille", "Marshmello", []string{"Marshmello", "Bastille"}},
		{"Florence and the Machine", "Florence and the Machine", []string{"Florence and the Machine"}},
		{"Prince (Remastered)", "Prince", []string{"Prince"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanArtist(tt.in))
			assert.Equal(t, tt.split, SplitArtists(tt.in))
		})
	}
}

func TestAggressiveNormalize(t *testing.T) {
	assert.Equal(t, "beyonce halo", AggressiveNormalize("Beyoncé - Halo!"))
	assert.Equal(t, "motley crue", AggressiveNormalize("Mötley Crüe"))
	assert.Equal(t, "ac dc", AggressiveNormalize("AC/DC"))
}

func TestGenerateQueries(t *testing.T) {
	t.Run("Priority Order", func(t *testing.T) {
		plan := GenerateQueries("Coldplay", "Yellow")
		assert.Equal(t, []string{
			"Coldplay Yellow official video",
			"Coldplay Yellow official",
			"Coldplay Yellow music video",
			"Coldplay Yellow",
			"Yellow Coldplay",
			"Yellow official video",
		}, plan.Primary)
		assert.Equal(t, []string{`"Yellow" "Coldplay"`, "yellow"}, plan.Advanced)
	})

	t.Run("Cleans Before Building", func(t *testing.T) {
		plan := GenerateQueries("Queen & David Bowie", "Under Pressure - Remastered 2011")
		require.NotEmpty(t, plan.Primary)
		assert.Equal(t, "Queen Under Pressure official video", plan.Primary[0])
		assert.Contains(t, plan.Advanced, "David Bowie Under Pressure")
		assert.Contains(t, plan.Advanced, "under pressure")
	})

	t.Run("First Word Fallback", func(t *testing.T) {
		plan := GenerateQueries("Red Hot Chili Peppers", "Californication")
		assert.Contains(t, plan.Advanced, "Red Californication")
	})

	t.Run("Deterministic Without Duplicates Or Empties", func(t *testing.T) {
		inputs := [][2]string{
			{"Coldplay", "Yellow"},
			{"Queen & David Bowie", "Under Pressure"},
			{"", "Yellow"},
			{"Coldplay", ""},
			{"Beyoncé feat. Jay-Z", "Crazy In Love (feat. Jay-Z)"},
			{"A", "A"},
			{"The The", "This Is the Day"},
		}

		for _, in := range inputs {
			first := GenerateQueries(in[0], in[1])
			second := GenerateQueries(in[0], in[1])
			assert.Equal(t, first, second, "plan for %q must be stable", in)

			all := first.All()
			assert.LessOrEqual(t, len(first.Primary), MaxPrimaryQueries)
			assert.LessOrEqual(t, len(first.Advanced), MaxAdvancedQueries)

			seen := map[string]bool{}
			for _, q := range all {
				assert.NotEmpty(t, strings.TrimSpace(q), "empty query for %q", in)
				key := strings.ToLower(q)
				assert.False(t, seen[key], "duplicate query %q for %q", q, in)
				seen[key] = true
			}
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		plan := GenerateQueries("", "  ")
		assert.Empty(t, plan.All())
	})

	t.Run("Pass Selection", func(t *testing.T) {
		plan := GenerateQueries("Coldplay", "Yellow")
		assert.Equal(t, plan.Primary, plan.Pass(0))
		assert.Equal(t, plan.Advanced, plan.Pass(1))
		assert.Nil(t, plan.Pass(2))
	})
}
