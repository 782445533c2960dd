// Package ui formats human-readable console output.
//
// Command lifecycle events become short sentences on the console logger while
// structured telemetry keeps flowing through zap. Run summaries, such as the
// configuration banner and the list of created pull requests, are rendered
// through a shared.Reporter.
package ui
