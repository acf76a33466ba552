// Package models defines the value types that flow through the matching pipeline.
//
// The types fall into three groups:
//
//  1. Inputs and ephemeral search data
//     - [Track] : a (song name, artist) pair read from a source playlist
//     - [Candidate] : one normalized video from a single search query
//
//  2. Terminal per-track outcomes
//     - [MatchResult] : tagged variant holding exactly one of [Found] or [NotFound]
//
//  3. Job state exposed to callers
//     - [JobStatus], [Stats], [Snapshot] : lifecycle, counters and point-in-time copies
//
// Mutable job records live in package tasks; everything here is safe to copy.
package models
