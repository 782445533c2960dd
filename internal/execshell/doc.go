// Package execshell runs external tools for gitcaptain.
//
// ShellExecutor wraps a CommandRunner with structured logging, per-command
// timeouts and lifecycle observers. OSCommandRunner is the os/exec backed
// runner used outside of tests.
package execshell
