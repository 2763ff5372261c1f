// Package sheetops implements sheet-level workflows on top of the sheets
// client: emptying a sheet and replacing a sheet's rows with the contents of
// a local spreadsheet file.
//
// Replacement stages the file as a temporary sheet named TMP_<name>, clears
// the target, moves the staged rows across and deletes the staging sheet.
// The target's columns are never changed. Nothing is rolled back: a failure
// after staging leaves the staging sheet behind and is reported as a
// *StagingError so the caller can record it for later cleanup.
package sheetops
