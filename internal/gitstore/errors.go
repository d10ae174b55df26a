package gitstore

import "errors"

// ErrNotFound is returned when a commit, tree, blob, or ref does not
// exist. The resolver maps this to ENOENT.
var ErrNotFound = errors.New("gitstore: not found")

// ErrIO is returned when the underlying repository could not be read
// for reasons other than the object simply not existing (corrupt pack,
// disk I/O failure, unreadable loose object). The resolver maps this
// to EIO.
var ErrIO = errors.New("gitstore: io error")
