package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/sp2yt/internal/matching"
	"github.com/desertthunder/sp2yt/internal/search"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/urfave/cli/v3"
)

type searchCandidate struct {
	Rank          int    `json:"rank"`
	VideoID       string `json:"video_id"`
	Title         string `json:"title"`
	Channel       string `json:"channel"`
	OfficialScore int    `json:"official_score"`
	Official      bool   `json:"official"`
	Relevant      bool   `json:"relevant"`
	Demoted       bool   `json:"demoted"`
	Chosen        bool   `json:"chosen"`
}

type searchReport struct {
	Query      string            `json:"query"`
	Status     search.Status     `json:"status"`
	Error      string            `json:"error,omitempty"`
	Candidates []searchCandidate `json:"candidates"`
}

// Search runs a single query through the search adapter and shows how the ranker scores it.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query is required", shared.ErrMissingArgument)
	}
	artist, title := cmd.String("artist"), cmd.String("title")
	if artist == "" && title == "" {
		artist, title = query, query
	}

	r.logger.Info("searching", "query", query)
	candidates, outcome := r.searchAdapter().Search(ctx, query, int(cmd.Int("limit")), cmd.Duration("timeout"))

	ranker := r.ranker()
	best := ranker.Rank(candidates, artist, title)

	report := searchReport{Query: query, Status: outcome.Status, Error: outcome.Message()}
	for _, s := range ranker.Score(candidates, artist, title) {
		report.Candidates = append(report.Candidates, searchCandidate{
			Rank:          s.Index + 1,
			VideoID:       s.Candidate.VideoID,
			Title:         s.Candidate.Title,
			Channel:       s.Candidate.ChannelName,
			OfficialScore: s.OfficialScore,
			Official:      s.IsOfficial,
			Relevant:      s.Relevant,
			Demoted:       s.Demoted,
			Chosen:        best != nil && best.Index == s.Index,
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader(fmt.Sprintf("Search: %s (%s)", query, outcome.Status))
	if report.Error != "" {
		r.writePlain("error: %s\n", report.Error)
	}
	for _, c := range report.Candidates {
		mark := " "
		if c.Chosen {
			mark = "→"
		}
		var flags string
		if c.Official {
			flags += " [official]"
		}
		if !c.Relevant {
			flags += " [irrelevant]"
		}
		if c.Demoted {
			flags += " [demoted]"
		}
		r.writePlain("%s %2d. %s  %s (%s) score=%d%s\n", mark, c.Rank, c.VideoID, c.Title, c.Channel, c.OfficialScore, flags)
	}
	if best == nil {
		r.writePlainln("No candidate chosen.")
	}
	return nil
}

// Queries prints the query plan generated for an artist and title.
func (r *Runner) Queries(ctx context.Context, cmd *cli.Command) error {
	artist := cmd.StringArg("artist")
	title := cmd.StringArg("title")
	if artist == "" && title == "" {
		return fmt.Errorf("%w: artist or title is required", shared.ErrMissingArgument)
	}

	plan := matching.GenerateQueries(artist, title)
	if cmd.Bool("json") {
		return r.writeJSON(map[string][]string{"primary": plan.Primary, "advanced": plan.Advanced}, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", artist, title))
	r.writePlain("Primary:\n")
	for i, q := range plan.Primary {
		r.writePlain("  %d. %s\n", i+1, q)
	}
	r.writePlain("Advanced:\n")
	for i, q := range plan.Advanced {
		r.writePlain("  %d. %s\n", i+1, q)
	}
	return nil
}
