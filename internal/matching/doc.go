// package matching resolves a single track to a video.
//
// The pieces compose leaf to root:
//
//  1. [GenerateQueries] turns (artist, title) into an ordered [QueryPlan]
//  2. [Ranker] scores a candidate list and picks the best match
//  3. [KnownAnswers] short-circuits tracks with a pinned video id
//  4. [Matcher] drives queries through the search adapter and ranker under a per-track budget
//
// Nothing in this package returns an error for a per-track failure; every path resolves to a
// [models.MatchResult].
package matching
