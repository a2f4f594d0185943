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

package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flatcache/flatcache-go/record"
)

// Bulk operations sweep the shard tree via glob patterns. They collect
// per-item failures instead of aborting: the boolean result is the success
// summary and the error, when non-nil, aggregates the non-fatal failures.
// Files vanishing between listing and processing are expected (another
// process may be clearing concurrently) and are skipped, never escalated.

// globEscape neutralizes glob metacharacters by bracket-wrapping them, so
// configurable separators, suffixes and prefixes can be embedded in
// patterns literally.
func globEscape(s string) string {
	if !strings.ContainsAny(s, `*?[`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteRune('[')
			b.WriteRune(r)
			b.WriteRune(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// shardPattern builds a glob over the shard tree: dirLevel nested
// directories named <nsPrefix>*, then fileName. nsPrefix must already be
// glob-escaped.
func shardPattern(o Options, nsPrefix, fileName string) string {
	pat := o.CacheDir
	for i := 0; i < o.DirLevel; i++ {
		pat = filepath.Join(pat, nsPrefix+"*")
	}
	return filepath.Join(pat, fileName)
}

// tagPathFor maps a record file path to its sibling tag file path.
func tagPathFor(recordPath string, o Options) string {
	return strings.TrimSuffix(recordPath, "."+o.Suffix) + "." + o.TagSuffix
}

// ClearExpired removes every expired record (and its tag file) under the
// current namespace. Only record headers are read. Delete failures are
// re-validated against existence before being counted; a record already
// removed by a racing process only triggers orphaned-tag cleanup.
func (e *Engine) ClearExpired() (bool, error) {
	o := e.Options()
	e.fs.ClearStatCache()
	nsPrefix := globEscape(o.namespacePrefix())
	matches, err := filepath.Glob(shardPattern(o, nsPrefix, nsPrefix+"*."+globEscape(o.Suffix)))
	if err != nil {
		return false, err
	}

	now := e.clock.Now()
	var errs []error
	for _, rec := range matches {
		line, err := e.fs.ReadFirstLine(rec, o.FileLocking, false)
		if err != nil {
			if e.fs.Exists(rec) {
				errs = append(errs, fmt.Errorf("read header of %s: %w", rec, err))
			} else {
				_ = e.fs.Delete(tagPathFor(rec, o))
			}
			continue
		}
		expiry, err := record.ParseHeader(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rec, err))
			continue
		}
		if !record.IsExpired(expiry, now) {
			continue
		}

		if err := e.fs.Delete(rec); err != nil && e.fs.Exists(rec) {
			errs = append(errs, fmt.Errorf("delete %s: %w", rec, err))
			continue
		}
		tag := tagPathFor(rec, o)
		if err := e.fs.Delete(tag); err != nil && e.fs.Exists(tag) {
			errs = append(errs, fmt.Errorf("delete %s: %w", tag, err))
		}
	}

	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

// ClearByNamespace removes every file belonging to namespace, whatever its
// suffix. An empty namespace is a programmer error: wiping the whole store
// by accident must be structurally impossible.
func (e *Engine) ClearByNamespace(namespace string) (bool, error) {
	if namespace == "" {
		return false, &ConfigurationError{Msg: "clear by namespace requires a non-empty namespace"}
	}
	o := e.Options()
	nsPrefix := globEscape(namespace + o.NamespaceSeparator)
	return e.deleteMatches(shardPattern(o, nsPrefix, nsPrefix+"*.*"))
}

// ClearByPrefix removes every file under the current namespace whose key
// starts with prefix, whatever its suffix. An empty prefix is rejected for
// the same reason as in ClearByNamespace.
func (e *Engine) ClearByPrefix(prefix string) (bool, error) {
	if prefix == "" {
		return false, &ConfigurationError{Msg: "clear by prefix requires a non-empty prefix"}
	}
	o := e.Options()
	nsPrefix := globEscape(o.namespacePrefix())
	return e.deleteMatches(shardPattern(o, nsPrefix, nsPrefix+globEscape(prefix)+"*.*"))
}

func (e *Engine) deleteMatches(pattern string) (bool, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return false, err
	}
	var errs []error
	for _, path := range matches {
		if err := e.fs.Delete(path); err != nil && e.fs.Exists(path) {
			errs = append(errs, fmt.Errorf("delete %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

// ClearByTags removes every entry under the current namespace matching
// tags: with disjunction set, entries carrying at least one of the
// requested tags; otherwise entries carrying all of them. An empty tag list
// is a no-op success. Tag files vanishing mid-scan are skipped.
func (e *Engine) ClearByTags(tags []string, disjunction bool) (bool, error) {
	if len(tags) == 0 {
		return true, nil
	}

	o := e.Options()
	nsPrefix := globEscape(o.namespacePrefix())
	matches, err := filepath.Glob(shardPattern(o, nsPrefix, nsPrefix+"*."+globEscape(o.TagSuffix)))
	if err != nil {
		return false, err
	}

	var errs []error
	for _, tagFile := range matches {
		data, err := e.fs.ReadAll(tagFile, o.FileLocking, false)
		if err != nil {
			if e.fs.Exists(tagFile) {
				errs = append(errs, fmt.Errorf("read %s: %w", tagFile, err))
			}
			continue
		}

		entryTags := splitTags(data)
		missing := 0
		for _, t := range tags {
			found := false
			for _, have := range entryTags {
				if have == t {
					found = true
					break
				}
			}
			if !found {
				missing++
			}
		}

		var remove bool
		if disjunction {
			remove = missing < len(tags)
		} else {
			remove = missing == 0
		}
		if !remove {
			continue
		}

		if err := e.fs.Delete(tagFile); err != nil && e.fs.Exists(tagFile) {
			errs = append(errs, fmt.Errorf("delete %s: %w", tagFile, err))
			continue
		}
		rec := strings.TrimSuffix(tagFile, "."+o.TagSuffix) + "." + o.Suffix
		if e.fs.Exists(rec) {
			if err := e.fs.Delete(rec); err != nil && e.fs.Exists(rec) {
				errs = append(errs, fmt.Errorf("delete %s: %w", rec, err))
			}
		}
	}

	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

// Flush deletes everything under the cache root regardless of namespace,
// depth-first so directories are empty by the time they are removed.
func (e *Engine) Flush() (bool, error) {
	o := e.Options()
	errs := e.removeTree(o.CacheDir)
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

func (e *Engine) removeTree(dir string) []error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, path := range matches {
		if e.fs.IsDirectory(path) {
			errs = append(errs, e.removeTree(path)...)
		}
		if err := e.fs.Delete(path); err != nil && e.fs.Exists(path) {
			errs = append(errs, fmt.Errorf("flush %s: %w", path, err))
		}
	}
	return errs
}

// Optimize removes now-empty shard directories under the current namespace
// prefix. It is pure housekeeping: non-empty directories and directories of
// other namespaces are left alone.
func (e *Engine) Optimize() (bool, error) {
	o := e.Options()
	if o.DirLevel <= 0 {
		return true, nil
	}
	e.removeEmptyShardDirs(o.CacheDir, globEscape(o.namespacePrefix()), o.DirLevel)
	return true, nil
}

func (e *Engine) removeEmptyShardDirs(dir, nsPrefix string, depth int) {
	matches, err := filepath.Glob(filepath.Join(dir, nsPrefix+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if !e.fs.IsDirectory(path) {
			continue
		}
		if depth > 1 {
			e.removeEmptyShardDirs(path, nsPrefix, depth-1)
		}
		// fails on non-empty directories, which is the point
		_ = e.fs.Delete(path)
	}
}
