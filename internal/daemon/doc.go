// Package daemon coordinates the long-running frcvideos process.
//
// It ties the association store, the durable job runner, the matcher's
// periodic scan loop and the HTTP API into a single lifecycle, using a
// flock-based lock file to prevent multiple instances from matching the same
// video directory. Matching and renaming logic lives in autorename; the
// daemon only decides when passes run and how long components live.
package daemon
