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

package fsys

import (
	"bytes"
	"io"
	"os"
	"time"
)

// defaultFilePerm is the mode used for newly created record files when no
// explicit file permission is configured.
const defaultFilePerm os.FileMode = 0600

// Local implements Interaction on top of the local disk, using advisory
// flock locks for cross-process coordination.
//
// NOTE: advisory locking and stat-time resolution depend on the platform and
// the underlying filesystem. On non-unix builds locking is a no-op and disk
// space queries are unsupported; see local_other.go.
type Local struct{}

// compile-time interface check
var _ Interaction = Local{}

func (Local) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (Local) IsDirectory(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.IsDir()
}

func (Local) Delete(path string) error {
	return os.Remove(path)
}

func (Local) Write(path string, data []byte, perm *os.FileMode, umask os.FileMode, lock, nonBlocking bool) (wouldBlock bool, err error) {
	// Open without O_TRUNC: truncation happens only after the lock is held,
	// so a reader holding a shared lock never observes a half-written file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if lock {
		acquired, lockErr := flockFile(f, true, nonBlocking)
		if lockErr != nil {
			return false, lockErr
		}
		if !acquired {
			return true, nil
		}
		defer funlockFile(f)
	}

	if err := f.Truncate(0); err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		return false, err
	}

	if perm != nil {
		if err := f.Chmod(*perm ^ umask); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (Local) ReadFirstLine(path string, lock, nonBlocking bool) (line string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if lock {
		acquired, lockErr := flockFile(f, false, nonBlocking)
		if lockErr != nil {
			return "", lockErr
		}
		if !acquired {
			return "", ErrWouldBlock
		}
		defer funlockFile(f)
	}

	// Records start with a short header line; one bounded read is enough in
	// practice, but keep reading until a newline shows up or EOF.
	var buf bytes.Buffer
	chunk := make([]byte, 512)
	for {
		n, readErr := f.Read(chunk)
		if n > 0 {
			if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
				buf.Write(chunk[:i])
				return buf.String(), nil
			}
			buf.Write(chunk[:n])
		}
		if readErr == io.EOF {
			return buf.String(), nil
		}
		if readErr != nil {
			return "", readErr
		}
	}
}

func (Local) ReadAll(path string, lock, nonBlocking bool) (data []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if lock {
		acquired, lockErr := flockFile(f, false, nonBlocking)
		if lockErr != nil {
			return nil, lockErr
		}
		if !acquired {
			return nil, ErrWouldBlock
		}
		defer funlockFile(f)
	}

	return io.ReadAll(f)
}

func (Local) Touch(path string, now time.Time) error {
	return os.Chtimes(path, now, now)
}

func (Local) LastModifiedTime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, &MetadataError{Path: path, Field: "mtime", Err: err}
	}
	return fi.ModTime().Unix(), nil
}

func (Local) Filesize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, &MetadataError{Path: path, Field: "size", Err: err}
	}
	return fi.Size(), nil
}

func (Local) LastAccessedTime(path string) (int64, error) {
	return statAccessTime(path)
}

func (Local) CreatedTime(path string) (int64, error) {
	return statCreateTime(path)
}

// ClearStatCache is a no-op: Local does not cache stat results. It is part
// of the contract for implementations that do, e.g. caching layers over
// networked filesystems.
func (Local) ClearStatCache() {}

func (Local) AvailableBytes(dir string) (int64, error) {
	return diskAvailableBytes(dir)
}

func (Local) TotalBytes(dir string) (int64, error) {
	return diskTotalBytes(dir)
}

func (Local) CreateDirectory(path string, perm os.FileMode, recursive bool, umask os.FileMode) error {
	if recursive {
		if err := os.MkdirAll(path, perm); err != nil && !os.IsExist(err) {
			return err
		}
		return nil
	}
	if err := os.Mkdir(path, perm^umask); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	// Mkdir modes are filtered by the process umask; set the requested mode
	// explicitly so each level carries exactly the configured permission.
	return os.Chmod(path, perm^umask)
}
