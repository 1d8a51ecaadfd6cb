// Package archive makes point-in-time copies of a store data file.
//
// Snapshots are compressed based on destination file extension
// (.zst, .br, .gz or none) and written atomically: a crash mid-way
// leaves either the previous file or nothing, never a partial one.
// Remote stores snapshots in S3-compatible storage.
package archive
