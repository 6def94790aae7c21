// Package autorename binds freshly recorded match videos to competition
// matches and renames them once the binding is confident.
//
// A Matcher pass lists {label}/{file} entries under the video directory,
// records one Association per file, and classifies each unmatched
// association against the event's scored matches by start time and video
// duration. Associations are processed oldest recording first so the
// per-label ordering high-water-mark only moves forward within a pass.
// STRONG associations get a deferred rename job on the durable queue, keyed
// by association identity so rescheduling replaces rather than duplicates.
// The Executor runs that job, re-reading the association so the name it
// applies is the one current at execution time.
//
// Associations are never deleted; status and status reason form the audit
// trail an operator reviews through the API or CLI.
package autorename
