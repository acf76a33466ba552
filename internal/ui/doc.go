// Package ui implements a terminal progress monitor for a conversion using bubbletea's Elm architecture.
//
// The monitor has two views:
//  1. [ProgressView] : live batch progress fed by the orchestrator's [tasks.ProgressUpdate] channel
//  2. [ResultView] : final counters, watch URLs and a filterable list of per-track results
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the Msg union type.
// The conversion itself runs in a goroutine started by Init; progress is read from its channel one update per command,
// so a slow terminal never blocks the orchestrator (which drops updates rather than wait).
//
// Keyboard navigation uses vim-style bindings (j/k, /, esc, q) with contextual help from charmbracelet/bubbles/help.
package ui
