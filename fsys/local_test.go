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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalWriteRead(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	content := []byte("1700000000\npayload with\nnewlines")

	wouldBlock, err := fs.Write(path, content, nil, 0, true, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if wouldBlock {
		t.Fatal("uncontended write reported wouldBlock")
	}

	t.Run("ReadAll", func(t *testing.T) {
		got, err := fs.ReadAll(path, true, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Fatalf("expected %q, got %q", content, got)
		}
	})

	t.Run("ReadFirstLine", func(t *testing.T) {
		line, err := fs.ReadFirstLine(path, true, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if line != "1700000000" {
			t.Fatalf("expected header line, got %q", line)
		}
	})

	t.Run("ReadFirstLineNoNewline", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "headerless")
		if _, err := fs.Write(p, []byte("only-content"), nil, 0, false, false); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		line, err := fs.ReadFirstLine(p, false, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if line != "only-content" {
			t.Fatalf("expected whole content, got %q", line)
		}
	})
}

func TestLocalWriteTruncatesPrevious(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")

	if _, err := fs.Write(path, []byte("a much longer first version"), nil, 0, true, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := fs.Write(path, []byte("short"), nil, 0, true, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := fs.ReadAll(path, false, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestLocalWritePermission(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	perm := os.FileMode(0640)

	if _, err := fs.Write(path, []byte("v"), &perm, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fi.Mode().Perm() != 0640 {
		t.Fatalf("expected mode 0640, got %o", fi.Mode().Perm())
	}
}

func TestLocalDeleteAndExists(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")

	if _, err := fs.Write(path, []byte("v"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !fs.Exists(path) {
		t.Fatal("expected file to exist")
	}
	if err := fs.Delete(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fs.Exists(path) {
		t.Fatal("expected file to be gone")
	}
	if err := fs.Delete(path); err == nil {
		t.Fatal("expected error deleting missing file")
	}
}

func TestLocalIsDirectory(t *testing.T) {
	fs := Local{}
	dir := t.TempDir()
	path := filepath.Join(dir, "entry.cache")
	if _, err := fs.Write(path, []byte("v"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !fs.IsDirectory(dir) {
		t.Fatal("expected directory")
	}
	if fs.IsDirectory(path) {
		t.Fatal("expected file, not directory")
	}
	if fs.IsDirectory(filepath.Join(dir, "missing")) {
		t.Fatal("expected missing path to not be a directory")
	}
}

func TestLocalCreateDirectory(t *testing.T) {
	fs := Local{}

	t.Run("single with explicit mode", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "shard")
		if err := fs.CreateDirectory(dir, 0750, false, 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		fi, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fi.Mode().Perm() != 0750 {
			t.Fatalf("expected mode 0750, got %o", fi.Mode().Perm())
		}
	})

	t.Run("already exists is not an error", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "shard")
		if err := fs.CreateDirectory(dir, 0700, false, 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := fs.CreateDirectory(dir, 0700, false, 0); err != nil {
			t.Fatalf("concurrent-create race must be tolerated, got %v", err)
		}
	})

	t.Run("recursive", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b", "c")
		if err := fs.CreateDirectory(dir, 0700, true, 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !fs.IsDirectory(dir) {
			t.Fatal("expected nested directory to exist")
		}
	})

	t.Run("umask xor", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "shard")
		if err := fs.CreateDirectory(dir, 0777, false, 0027); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		fi, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fi.Mode().Perm() != 0750 {
			t.Fatalf("expected mode 0750, got %o", fi.Mode().Perm())
		}
	})
}

func TestLocalTouch(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	if _, err := fs.Write(path, []byte("v"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	then := time.Unix(1500000000, 0)
	if err := fs.Touch(path, then); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	mtime, err := fs.LastModifiedTime(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mtime != then.Unix() {
		t.Fatalf("expected mtime %d, got %d", then.Unix(), mtime)
	}
}

func TestLocalMetadataErrors(t *testing.T) {
	fs := Local{}
	missing := filepath.Join(t.TempDir(), "missing")

	for name, call := range map[string]func(string) (int64, error){
		"mtime": fs.LastModifiedTime,
		"size":  fs.Filesize,
	} {
		if _, err := call(missing); err == nil {
			t.Fatalf("expected %s error for missing file", name)
		} else {
			var metaErr *MetadataError
			if !errors.As(err, &metaErr) {
				t.Fatalf("expected *MetadataError for %s, got %v", name, err)
			}
		}
	}
}

func TestLocalFilesize(t *testing.T) {
	fs := Local{}
	path := filepath.Join(t.TempDir(), "entry.cache")
	if _, err := fs.Write(path, []byte("12345"), nil, 0, false, false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	size, err := fs.Filesize(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if size != 5 {
		t.Fatalf("expected size 5, got %d", size)
	}
}
