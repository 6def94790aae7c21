// Package database opens the frcvideos SQLite database and applies the
// embedded schema migrations.
//
// Every durable record lives in one file under the data directory:
// auto-rename associations, per-label ordering metadata, runtime settings,
// and the job queue. Packages own their tables and share the connection
// returned by Open. Helpers here cover the conventions those packages rely
// on: RFC3339Nano timestamps, NULL-for-empty columns, and bounded retries
// when SQLite reports a busy database.
package database
