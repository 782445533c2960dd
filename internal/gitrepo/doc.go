// Package gitrepo contains helpers for interrogating and manipulating git repositories.
//
// RepositoryManager drives the git CLI for branch, pull, push, staging and
// history operations. Inspector reads worktree status in-process through
// go-git, and ParseRemoteURL turns remote URLs into host and namespace parts.
package gitrepo
