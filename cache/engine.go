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

// Package cache implements a persistent, file-backed key/value store: keys
// map to individual record files under a sharded directory tree, with
// expiration, tag-based bulk invalidation, namespace isolation and safe
// concurrent access from multiple independent processes.
//
// The cache directory is shared state. Any process may create or delete any
// file matching the naming convention; correctness relies on per-file
// advisory locks plus a re-checking delete discipline: every delete failure
// is validated against a follow-up existence check before it is escalated,
// because files vanishing mid-operation is the expected steady state under
// concurrent invalidation, not an error.
package cache

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/flatcache/flatcache-go/filespec"
	"github.com/flatcache/flatcache-go/fsys"
	"github.com/flatcache/flatcache-go/record"
)

// defaultDirPerm is used for recursive shard directory creation when no
// explicit directory permission is configured.
const defaultDirPerm = 0700

// Engine is the cache store. All methods are safe for concurrent use within
// a process; cross-process safety is provided by the fsys locking and delete
// discipline.
type Engine struct {
	mu         sync.Mutex
	opts       Options
	caps       *Capabilities
	totalBytes *int64

	fs       fsys.Interaction
	clock    Clock
	ser      Serializer
	resolver filespec.Resolver
}

// EngineOption configures dependencies at construction time.
type EngineOption func(*Engine)

// WithFilesystem replaces the filesystem layer, e.g. with a fake in tests or
// a stat-caching implementation for networked filesystems.
func WithFilesystem(fs fsys.Interaction) EngineOption {
	return func(e *Engine) { e.fs = fs }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithSerializer selects how values are converted to payload bytes. The
// default is RawSerializer, the pass-through mode.
func WithSerializer(s Serializer) EngineOption {
	return func(e *Engine) { e.ser = s }
}

// New validates opts, ensures the cache directory exists and returns an
// engine. Configuration errors, including a namespace too long for the
// filename budget, abort construction.
func New(opts Options, engineOpts ...EngineOption) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:  opts,
		fs:    fsys.Local{},
		clock: SystemClock,
		ser:   RawSerializer{},
	}
	for _, opt := range engineOpts {
		opt(e)
	}

	caps, err := computeCapabilities(opts, e.ser)
	if err != nil {
		return nil, err
	}
	e.caps = &caps

	if err := e.fs.CreateDirectory(opts.CacheDir, defaultDirPerm, true, 0); err != nil {
		return nil, err
	}
	return e, nil
}

// ApplyOptions validates and installs new options, synchronously
// invalidating the capabilities and total-space memos.
func (e *Engine) ApplyOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	caps, err := computeCapabilities(opts, e.ser)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = opts
	e.caps = &caps
	e.totalBytes = nil
	return nil
}

// Capabilities returns the derived store capabilities, memoized until the
// next ApplyOptions.
func (e *Engine) Capabilities() Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.caps
}

// Options returns a snapshot of the current options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// paths resolves the record and tag file paths for key under o.
func (e *Engine) paths(o Options, key string) (recordPath, tagPath string) {
	spec := e.resolver.Resolve(o.Namespace, o.NamespaceSeparator, o.CacheDir, key, o.DirLevel)
	return spec + "." + o.Suffix, spec + "." + o.TagSuffix
}

// Has reports whether key holds a fresh entry. Only the record header is
// read, never the payload. An expired entry is removed on discovery and
// reported as absent; an unreadable or concurrently removed record is
// absent; a record with a malformed header is an error.
func (e *Engine) Has(key string) (bool, error) {
	o := e.Options()
	rec, tag := e.paths(o, key)

	if !e.fs.Exists(rec) {
		return false, nil
	}
	line, err := e.fs.ReadFirstLine(rec, o.FileLocking, false)
	if err != nil {
		return false, nil
	}
	expiry, err := record.ParseHeader(line)
	if err != nil {
		return false, err
	}

	if record.IsExpired(expiry, e.clock.Now()) {
		if err := e.fs.Delete(rec); err != nil && e.fs.Exists(rec) {
			return false, err
		}
		_ = e.fs.Delete(tag)
		return false, nil
	}
	return true, nil
}

// GetRaw returns the stored payload bytes for key without running the
// serializer. The second return is false when the key is absent or expired.
func (e *Engine) GetRaw(key string) ([]byte, bool, error) {
	ok, err := e.Has(key)
	if err != nil || !ok {
		return nil, false, err
	}

	o := e.Options()
	rec, _ := e.paths(o, key)
	data, err := e.fs.ReadAll(rec, o.FileLocking, false)
	if err != nil {
		if !e.fs.Exists(rec) {
			return nil, false, nil
		}
		return nil, false, err
	}

	_, payload, err := record.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Get reads the entry for key into value through the serializer. A
// deserialization failure is surfaced as a *record.MalformedError.
func (e *Engine) Get(key string, value any) (bool, error) {
	payload, ok, err := e.GetRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := e.ser.Unmarshal(payload, value); err != nil {
		return false, &record.MalformedError{Reason: "payload deserialization", Err: err}
	}
	return true, nil
}

// GetWithToken is Get plus a token for CheckAndSet. The token is the record
// file's modification time concatenated with its size, a weak fingerprint
// at filesystem timestamp granularity rather than a content hash.
func (e *Engine) GetWithToken(key string, value any) (token string, ok bool, err error) {
	ok, err = e.Get(key, value)
	if err != nil || !ok {
		return "", ok, err
	}

	o := e.Options()
	rec, _ := e.paths(o, key)
	token, err = e.casToken(rec)
	if err != nil {
		if !e.fs.Exists(rec) {
			return "", false, nil
		}
		return "", false, err
	}
	return token, true, nil
}

func (e *Engine) casToken(recordPath string) (string, error) {
	mtime, err := e.fs.LastModifiedTime(recordPath)
	if err != nil {
		return "", err
	}
	size, err := e.fs.Filesize(recordPath)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(mtime, 10) + strconv.FormatInt(size, 10), nil
}

// Set stores value under key with the store TTL, replacing any previous
// entry and its tags.
func (e *Engine) Set(key string, value any) (bool, error) {
	return e.SetWithTags(key, value, nil)
}

// SetWithTags stores value under key and attaches tags. The write tries a
// non-blocking exclusive lock first so uncontended writers never wait; if
// the lock would block, the write retries in blocking mode. The previous tag
// file is deleted unconditionally: tags must never reference content they
// were not written with.
func (e *Engine) SetWithTags(key string, value any, tags []string) (bool, error) {
	o := e.Options()
	payload, err := e.ser.Marshal(value)
	if err != nil {
		return false, err
	}

	rec, tag := e.paths(o, key)
	if err := e.prepareDirectories(o, rec); err != nil {
		return false, err
	}

	data := record.Encode(payload, o.TTL, e.clock.Now())
	if err := e.writeFile(o, rec, data); err != nil {
		return false, err
	}

	if err := e.fs.Delete(tag); err != nil && e.fs.Exists(tag) {
		return false, err
	}
	if len(tags) > 0 {
		if err := e.writeFile(o, tag, []byte(strings.Join(tags, "\n"))); err != nil {
			return false, err
		}
	}
	return true, nil
}

// writeFile writes through the fsys layer with the non-blocking-first lock
// escalation.
func (e *Engine) writeFile(o Options, path string, data []byte) error {
	wouldBlock, err := e.fs.Write(path, data, o.FilePermission, o.Umask, o.FileLocking, true)
	if err != nil {
		return err
	}
	if wouldBlock {
		_, err = e.fs.Write(path, data, o.FilePermission, o.Umask, o.FileLocking, false)
	}
	return err
}

// CheckAndSet writes value only if the entry's current token equals token.
// The comparison is optimistic concurrency with a coarse fingerprint: two
// writes landing within the same filesystem timestamp granularity and
// producing the same byte length alias to the same token. That weakness is
// part of the contract; see GetWithToken.
func (e *Engine) CheckAndSet(token, key string, value any) (bool, error) {
	ok, err := e.Has(key)
	if err != nil || !ok {
		return false, err
	}

	o := e.Options()
	rec, _ := e.paths(o, key)
	current, err := e.casToken(rec)
	if err != nil {
		if !e.fs.Exists(rec) {
			return false, nil
		}
		return false, err
	}
	if current != token {
		return false, nil
	}
	return e.Set(key, value)
}

// Touch updates the record's modification time without rewriting content.
// The expiry header is untouched: touching does not extend an entry's life.
func (e *Engine) Touch(key string) (bool, error) {
	ok, err := e.Has(key)
	if err != nil || !ok {
		return false, err
	}

	o := e.Options()
	rec, _ := e.paths(o, key)
	if err := e.fs.Touch(rec, e.clock.Now()); err != nil {
		if !e.fs.Exists(rec) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the entry for key. The result reflects the record file
// only; the tag file is removed best-effort. Removing an absent key returns
// false without error.
func (e *Engine) Remove(key string) (bool, error) {
	o := e.Options()
	rec, tag := e.paths(o, key)

	if !e.fs.Exists(rec) {
		return false, nil
	}
	if err := e.fs.Delete(rec); err != nil {
		if !e.fs.Exists(rec) {
			// lost the race to another remover
			return false, nil
		}
		return false, err
	}
	_ = e.fs.Delete(tag)
	return true, nil
}

// GetTags returns the tags attached to key. The second return mirrors Has;
// a present entry without a tag file has no tags.
func (e *Engine) GetTags(key string) ([]string, bool, error) {
	ok, err := e.Has(key)
	if err != nil || !ok {
		return nil, false, err
	}

	o := e.Options()
	_, tag := e.paths(o, key)
	if !e.fs.Exists(tag) {
		return nil, true, nil
	}
	data, err := e.fs.ReadAll(tag, o.FileLocking, false)
	if err != nil {
		if !e.fs.Exists(tag) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return splitTags(data), true, nil
}

// splitTags decodes a tag file: newline-joined tag strings, no header.
func splitTags(data []byte) []string {
	s := strings.TrimRight(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Metadata is a read-only snapshot of filesystem attributes for an entry's
// record file. Every field except Filespec is individually optional: an
// attribute the platform cannot provide is nil, it does not fail the call.
type Metadata struct {
	Filespec string

	Atime *int64
	Ctime *int64
	Mtime *int64
	Size  *int64
}

// GetMetadata returns metadata for key, or nil if the key is absent or
// expired. Unavailable attributes are skipped, not escalated.
func (e *Engine) GetMetadata(key string) (*Metadata, error) {
	ok, err := e.Has(key)
	if err != nil || !ok {
		return nil, err
	}

	o := e.Options()
	rec, _ := e.paths(o, key)
	md := &Metadata{Filespec: strings.TrimSuffix(rec, "."+o.Suffix)}

	if v, err := e.fs.LastAccessedTime(rec); err == nil {
		md.Atime = &v
	}
	if v, err := e.fs.CreatedTime(rec); err == nil {
		md.Ctime = &v
	}
	if v, err := e.fs.LastModifiedTime(rec); err == nil {
		md.Mtime = &v
	}
	if v, err := e.fs.Filesize(rec); err == nil {
		md.Size = &v
	}
	return md, nil
}

// AvailableSpace reports the free bytes of the filesystem holding the cache
// directory.
func (e *Engine) AvailableSpace() (int64, error) {
	o := e.Options()
	return e.fs.AvailableBytes(o.CacheDir)
}

// TotalSpace reports the total bytes of the filesystem holding the cache
// directory, memoized until the next ApplyOptions.
func (e *Engine) TotalSpace() (int64, error) {
	e.mu.Lock()
	if e.totalBytes != nil {
		total := *e.totalBytes
		e.mu.Unlock()
		return total, nil
	}
	dir := e.opts.CacheDir
	e.mu.Unlock()

	total, err := e.fs.TotalBytes(dir)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.totalBytes = &total
	e.mu.Unlock()
	return total, nil
}

// GetMulti reads several keys, bypassing the serializer; absent keys are
// simply missing from the result map.
func (e *Engine) GetMulti(keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		payload, ok, err := e.GetRaw(key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = payload
		}
	}
	return out, nil
}

// SetMulti stores several values; it stops at the first failure.
func (e *Engine) SetMulti(values map[string]any) (bool, error) {
	for key, value := range values {
		if ok, err := e.Set(key, value); !ok {
			return false, err
		}
	}
	return true, nil
}

// prepareDirectories creates the shard directories for recordPath per the
// configured depth and permissions. With an explicit permission and depth
// greater than one, directories are created one segment at a time and
// chmodded individually: a recursive create under the process umask cannot
// reliably apply a distinct permission per level on multi-threaded hosts.
func (e *Engine) prepareDirectories(o Options, recordPath string) error {
	if o.DirLevel <= 0 {
		return nil
	}
	dir := filepath.Dir(recordPath)
	if e.fs.Exists(dir) {
		return nil
	}

	if o.DirPermission == nil {
		return e.fs.CreateDirectory(dir, defaultDirPerm, true, 0)
	}
	if o.DirLevel == 1 {
		return e.fs.CreateDirectory(dir, *o.DirPermission, false, o.Umask)
	}

	// Walk up to the first existing ancestor, then descend creating and
	// permission-setting each level.
	var missing []string
	cur := dir
	for cur != o.CacheDir && !e.fs.Exists(cur) {
		missing = append(missing, cur)
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := e.fs.CreateDirectory(missing[i], *o.DirPermission, false, o.Umask); err != nil {
			return err
		}
	}
	return nil
}
