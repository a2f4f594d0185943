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

//go:build linux || darwin

package fsys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// holdLock takes an exclusive flock through an independent descriptor, as a
// second process would.
func holdLock(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	})
	return f
}

func TestLocalWriteWouldBlock(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	holdLock(t, path)

	wouldBlock, err := fs.Write(path, []byte("v"), nil, 0, true, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !wouldBlock {
		t.Fatal("expected wouldBlock while lock is held elsewhere")
	}

	// the contended file must not have been touched
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected blocked write to leave file untouched, got %q", got)
	}
}

func TestLocalReadWouldBlock(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	if _, err := fs.Write(path, []byte("header\npayload"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	holdLock(t, path)

	if _, err := fs.ReadFirstLine(path, true, true); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if _, err := fs.ReadAll(path, true, true); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
}

func TestLocalStatTimes(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	if _, err := fs.Write(path, []byte("v"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := fs.LastAccessedTime(path); err != nil {
		t.Fatalf("expected atime, got %v", err)
	}
	if _, err := fs.CreatedTime(path); err != nil {
		t.Fatalf("expected ctime, got %v", err)
	}
}

func TestLocalDiskSpace(t *testing.T) {
	fs := Local{}
	dir := t.TempDir()

	total, err := fs.TotalBytes(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	avail, err := fs.AvailableBytes(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total <= 0 {
		t.Fatalf("expected positive total, got %d", total)
	}
	if avail < 0 || avail > total {
		t.Fatalf("expected 0 <= available <= total, got %d of %d", avail, total)
	}
}
