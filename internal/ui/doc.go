// Package ui renders CLI output with lipgloss: a color palette, bordered tables
// for playlists and unavailable videos, and one-line sync progress.
package ui
