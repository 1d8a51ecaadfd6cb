// Package siser implements a simple, human-readable framing format for
// append-only files.
//
// A frame is a header line followed by the payload:
//
//	--- ${size} ${timestamp_in_unix_epoch_ms} ${name}\n
//	${payload}
//
// Timestamp is omitted when writing with Writer.NoTimestamp and name is
// optional. For readability a '\n' is appended after the payload if it
// doesn't already end with one; the reader accounts for it.
//
// Frames are self-delimiting so a file of frames can be read sequentially
// without any external metadata, and a reader reports the byte position
// of every frame so that callers can index frames by offset and seek
// back to them.
//
// The payload is usually a Body: ordered key/value lines
//
//	key: value\n
//
// Values that are empty, long (> 120 bytes) or contain bytes outside of
// printable ASCII are written in a size-prefixed form:
//
//	key:+${len}\n
//	${value}\n
package siser
