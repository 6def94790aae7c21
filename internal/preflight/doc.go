// Package preflight provides readiness checks for the filesystem paths,
// binaries, and remote services the auto-rename daemon depends on.
//
// The daemon runs RunAll at startup and logs each failed check; the CLI
// "frcvideos status" command renders the same results as a table. A failed
// check never stops the daemon: passes simply make no progress until the
// operator fixes the environment.
package preflight
