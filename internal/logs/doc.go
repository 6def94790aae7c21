// Package logs reads the daemon log file for the CLI.
//
// Reads are bounded: Last keeps only the requested number of lines in
// memory, and Follow polls from a byte offset so a long-running viewer
// never rescans the whole file. Each daemon run writes a fresh log and
// repoints frcvideos.log at it, so Follow restarts from the top when the
// file it is watching shrinks or is replaced.
package logs
