// Package vcs exposes the version-control port used by deployments and its
// git implementation.
//
// Client shells out to git through execshell, so every clone, commit and push
// is logged with credentials masked. A command that exits non-zero is returned
// as an OperationError wrapping execshell.CommandFailedError; LatestShortHash
// and LookupCommit instead report a negative answer for those failures.
package vcs
