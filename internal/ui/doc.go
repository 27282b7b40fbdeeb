// Package ui renders deployment outcomes for people reading a terminal.
//
// Structured telemetry keeps flowing through zap; the printers here only
// produce the short summary shown at the end of a console run.
package ui
