// Package main hosts the frcvideos CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon, reports status, and exposes the
// auto-rename associations, durable jobs and runtime settings. Commands that
// change matcher state go through the daemon's HTTP API when it is reachable
// so connected clients see the update; otherwise they operate on the SQLite
// database directly, serialized with the daemon by the pass lock file.
package main
