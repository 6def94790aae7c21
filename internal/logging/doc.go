// Package logging builds the slog loggers used across frcvideos.
//
// New and NewFromConfig assemble a console or JSON handler on stdout and,
// when a log file is configured, tee every record into a JSON file so the
// daemon's history can be grepped after the fact. Attribute helpers and the
// Field constants keep keys consistent between packages: event_key,
// file_path and match_key identify the association a line is about, and
// decision_type/decision_result/decision_reason record why the matcher
// classified a file the way it did.
package logging
