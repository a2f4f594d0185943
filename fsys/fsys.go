// Copyright The Flatcache Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fsys defines the narrow filesystem contract the cache engine is
// written against, together with Local, the reference implementation backed
// by the local disk.
//
// The contract deliberately exposes advisory locking and non-blocking lock
// attempts: the cache directory is shared between independent processes, so
// per-file locks are the only coordination mechanism available. Callers are
// expected to re-check Exists after a failed Delete before treating the
// failure as fatal; a file vanishing between two calls is the steady state
// under concurrent invalidation, not an exceptional condition.
package fsys

import (
	"errors"
	"os"
	"time"
)

// ErrWouldBlock is returned by read operations when a non-blocking lock
// attempt could not acquire the lock immediately.
var ErrWouldBlock = errors.New("fsys: lock would block")

// ErrUnsupported is returned when the platform or implementation cannot
// provide the requested primitive (e.g. disk space queries on a stub).
var ErrUnsupported = errors.New("fsys: operation not supported")

// MetadataError indicates that a single stat field could not be read. It is
// non-fatal by contract: callers leave the corresponding metadata field
// absent instead of failing the whole call.
type MetadataError struct {
	// Path is the file whose metadata was requested.
	Path string

	// Field names the attribute that could not be read, e.g. "atime".
	Field string

	// Err is the underlying cause, if any.
	Err error
}

func (e *MetadataError) Error() string {
	msg := "fsys: cannot read " + e.Field + " of " + e.Path
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Interaction is the set of filesystem primitives the cache engine consumes.
//
// Every fallible call distinguishes "genuinely failed" from "target vanished
// concurrently" at the call site via a follow-up Exists check, not inside the
// primitive itself.
type Interaction interface {
	// Exists reports whether path refers to an existing file or directory.
	Exists(path string) bool

	// IsDirectory reports whether path refers to an existing directory.
	IsDirectory(path string) bool

	// Delete removes the file or empty directory at path.
	Delete(path string) error

	// Write replaces the contents of path with data, creating the file if
	// needed. When lock is set an exclusive advisory lock is taken for the
	// duration of the write; with nonBlocking set a held lock is reported
	// via wouldBlock=true instead of waiting. When perm is non-nil the file
	// mode is set to perm XOR umask after the write.
	Write(path string, data []byte, perm *os.FileMode, umask os.FileMode, lock, nonBlocking bool) (wouldBlock bool, err error)

	// ReadFirstLine returns the content of path up to (and excluding) the
	// first newline, or the entire content if it contains none. Locking
	// semantics mirror Write with a shared lock; a non-blocking attempt that
	// cannot lock returns ErrWouldBlock.
	ReadFirstLine(path string, lock, nonBlocking bool) (string, error)

	// ReadAll returns the entire content of path. Locking semantics mirror
	// ReadFirstLine.
	ReadAll(path string, lock, nonBlocking bool) ([]byte, error)

	// Touch sets the modification time of path to now.
	Touch(path string, now time.Time) error

	// LastModifiedTime, LastAccessedTime, CreatedTime and Filesize each
	// return a single stat attribute, failing with *MetadataError when the
	// attribute is unavailable. Times are Unix seconds.
	LastModifiedTime(path string) (int64, error)
	LastAccessedTime(path string) (int64, error)
	CreatedTime(path string) (int64, error)
	Filesize(path string) (int64, error)

	// ClearStatCache drops any cached stat results the implementation holds.
	ClearStatCache()

	// AvailableBytes and TotalBytes report free and total space of the
	// filesystem containing dir.
	AvailableBytes(dir string) (int64, error)
	TotalBytes(dir string) (int64, error)

	// CreateDirectory creates the directory at path. With recursive set,
	// missing parents are created with perm and the umask is ignored.
	// Otherwise a single directory is created and its mode is immediately
	// set to perm XOR umask, regardless of the process umask. A directory
	// that already exists is never an error: concurrent creation of the
	// same shard directory by another process is expected.
	CreateDirectory(path string, perm os.FileMode, recursive bool, umask os.FileMode) error
}
