// Package daemonctl locates and stops a running frcvideos daemon.
//
// The daemon holds an advisory lock in the data directory for its whole
// lifetime and records its PID beside it. Running probes that lock, and
// Stop signals the recorded PID, escalating to SIGKILL when the lock is
// still held after the grace period.
package daemonctl
