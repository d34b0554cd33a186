// Package watch provides the recursive file watch loop of the dev loop.
//
// A [Session] scans its root directory once, silently, and then reports
// each relevant filesystem mutation exactly once. Sessions are not
// debounced: the coordinator stops a session before acting on its first
// event, so later events of the same burst are dropped with the session.
//
// Dotfiles such as .env are reported like any other file. Only .git and
// node_modules directories are skipped, along with chmod-only events and
// editor swap or backup files.
package watch
