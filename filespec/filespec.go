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

// Package filespec derives the sharded on-disk path stem for a cache key.
//
// A file spec is the directory path plus filename, without suffix, under
// which a key's record and tag files live:
//
//	cacheDir/[<nsPrefix><hh>/]...<nsPrefix><key>
//
// Shard directories bound the number of files per directory. They are
// derived by splitting the hex MD5 digest of the raw key into dirLevel
// two-character segments, one nesting level per segment, each carrying the
// namespace prefix. For a fixed (cacheDir, namespace, separator, dirLevel)
// the spec is a pure, deterministic function of the key.
package filespec

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"sync"
)

// MaxDirLevel is the deepest supported shard nesting: an MD5 digest yields
// sixteen two-character hex segments.
const MaxDirLevel = 16

// Resolver computes file specs. It memoizes exactly the most recently
// resolved input tuple as a hot-path optimization for repeated operations on
// the same key; the memo carries no correctness weight and any call with
// different inputs recomputes from scratch.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	mu   sync.Mutex
	last *resolution
}

type resolution struct {
	namespace string
	separator string
	cacheDir  string
	key       string
	dirLevel  int
	spec      string
}

// Resolve returns the path stem for key. Namespace may be empty, meaning no
// namespace; otherwise namespace and separator together form the filename
// prefix applied to the shard directories and the final filename.
func (r *Resolver) Resolve(namespace, separator, cacheDir, key string, dirLevel int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l := r.last; l != nil &&
		l.key == key && l.dirLevel == dirLevel &&
		l.namespace == namespace && l.separator == separator && l.cacheDir == cacheDir {
		return l.spec
	}

	prefix := ""
	if namespace != "" {
		prefix = namespace + separator
	}

	dir := cacheDir
	if dirLevel > 0 {
		sum := md5.Sum([]byte(key))
		digest := hex.EncodeToString(sum[:])
		level := dirLevel
		if level > MaxDirLevel {
			level = MaxDirLevel
		}
		for i := 0; i < level; i++ {
			dir = filepath.Join(dir, prefix+digest[2*i:2*i+2])
		}
	}

	spec := filepath.Join(dir, prefix+key)
	r.last = &resolution{
		namespace: namespace,
		separator: separator,
		cacheDir:  cacheDir,
		key:       key,
		dirLevel:  dirLevel,
		spec:      spec,
	}
	return spec
}
