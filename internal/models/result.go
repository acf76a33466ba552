package models

import (
	"encoding/json"
	"fmt"
)

// Reason classifies why a track could not be matched.
type Reason string

const (
	ReasonNoCandidates Reason = "no_candidates" // every query returned zero results
	ReasonAllRejected  Reason = "all_rejected"  // candidates existed but none passed ranking
	ReasonTimeout      Reason = "timeout"       // queries or the track budget timed out
	ReasonError        Reason = "error"         // transport failures or a job-level stop
)

// Found is the populated variant of a successful match.
type Found struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	IsOfficial   bool   `json:"is_official"`
	MatchedQuery string `json:"matched_query"`
}

// NotFound is the populated variant of a failed match.
type NotFound struct {
	Reason    Reason `json:"reason"`
	LastError string `json:"last_error,omitempty"`
}

// MatchResult is the terminal outcome for one Track. Exactly one of the variants is non-nil.
//
// Construct values with [NewFound] or [NewNotFound]; the zero value is not a valid result.
type MatchResult struct {
	found    *Found
	notFound *NotFound
}

// NewFound returns a MatchResult holding the Found variant.
func NewFound(f Found) MatchResult {
	return MatchResult{found: &f}
}

// NewNotFound returns a MatchResult holding the NotFound variant.
func NewNotFound(reason Reason, lastError string) MatchResult {
	return MatchResult{notFound: &NotFound{Reason: reason, LastError: lastError}}
}

// IsFound reports whether the result is the Found variant.
func (m MatchResult) IsFound() bool { return m.found != nil }

// IsZero reports whether no variant has been set.
func (m MatchResult) IsZero() bool { return m.found == nil && m.notFound == nil }

// Found returns a copy of the Found variant.
func (m MatchResult) Found() (Found, bool) {
	if m.found == nil {
		return Found{}, false
	}
	return *m.found, true
}

// NotFound returns a copy of the NotFound variant.
func (m MatchResult) NotFound() (NotFound, bool) {
	if m.notFound == nil {
		return NotFound{}, false
	}
	return *m.notFound, true
}

// VideoID is a convenience accessor returning "" for failures.
func (m MatchResult) VideoID() string {
	if m.found == nil {
		return ""
	}
	return m.found.VideoID
}

// Reason returns the failure reason, or "" for a Found result.
func (m MatchResult) Reason() Reason {
	if m.notFound == nil {
		return ""
	}
	return m.notFound.Reason
}

type matchResultJSON struct {
	Status string `json:"status"`
	*Found
	*NotFound
}

// MarshalJSON flattens the populated variant next to a "status" discriminator.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	switch {
	case m.found != nil:
		return json.Marshal(matchResultJSON{Status: "found", Found: m.found})
	case m.notFound != nil:
		return json.Marshal(matchResultJSON{Status: "not_found", NotFound: m.notFound})
	default:
		return nil, fmt.Errorf("match result has no variant")
	}
}

// UnmarshalJSON restores the variant named by the "status" discriminator.
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Status {
	case "found":
		var f Found
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*m = NewFound(f)
	case "not_found":
		var nf NotFound
		if err := json.Unmarshal(data, &nf); err != nil {
			return err
		}
		*m = MatchResult{notFound: &nf}
	default:
		return fmt.Errorf("unknown match result status %q", raw.Status)
	}
	return nil
}

// TrackResult joins a MatchResult with the Track it resolves.
type TrackResult struct {
	Index  int         `json:"index"`
	Track  Track       `json:"track"`
	Result MatchResult `json:"result"`
}
