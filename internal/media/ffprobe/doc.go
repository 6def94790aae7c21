// Package ffprobe runs ffprobe to read container metadata from recordings.
//
// Inspect decodes the full JSON report; Prober wraps it for the matcher,
// which only needs a duration and must skip files above a size cap instead
// of handing multi-gigabyte captures to ffprobe.
package ffprobe
