// Package tablesync runs the configured tables through the sheet workflows
// one at a time: replacing sheet contents from local files, exporting
// sheets back to files, attaching files, and removing staging sheets that
// an interrupted replacement left behind. Every run is recorded in a
// SQLite journal.
package tablesync
