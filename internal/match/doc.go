// Package match models competition match identifiers.
//
// A MatchKey is parsed from The Blue Alliance key format
// ({year}{event}_{level}{set}m{match}) together with the event's playoffs
// format, which changes how playoff matches are ordered. Ordering is total
// within an event: for any two keys exactly one is after the other unless
// they are equal. The package also owns the human-readable match names used
// for renamed video files so automatic and manual renames agree.
package match
