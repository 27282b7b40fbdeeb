// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec through OSCommandRunner, logs every invocation via
// ShellExecutor (structured zap fields or human-readable sentences built by
// CommandMessageFormatter), and reports non-zero exits as CommandFailedError so
// git and the platform CLI can be driven and mocked uniformly.
package execshell
